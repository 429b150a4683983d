package handlers

import (
	"net/http"

	"designbridge/internal/domain"
)

type presetDTO struct {
	Preset string `json:"preset"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type presetsResponse struct {
	Presets []presetDTO `json:"presets"`
	Formats []string    `json:"formats"`
}

// Presets lists the aspect ratio presets and export formats accepted by the
// export endpoints.
func (a *App) Presets(w http.ResponseWriter, r *http.Request) {
	presets := domain.Presets()
	out := presetsResponse{Presets: make([]presetDTO, 0, len(presets))}
	for _, p := range presets {
		out.Presets = append(out.Presets, presetDTO{Preset: p.Preset, Width: p.Width, Height: p.Height})
	}
	for _, f := range domain.ExportFormats() {
		out.Formats = append(out.Formats, string(f))
	}
	a.json(w, http.StatusOK, out)
}
