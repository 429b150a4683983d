package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// VariantKind tells the orchestrator whether a resize step precedes the export.
type VariantKind string

const (
	VariantOriginal VariantKind = "original"
	VariantResize   VariantKind = "resize"
)

const (
	minDimension = 40
	maxDimension = 8000
)

// Variant is one requested output shape of an export request.
type Variant struct {
	Kind   VariantKind `json:"kind"`
	Preset string      `json:"preset,omitempty"`
	Width  int         `json:"width,omitempty"`
	Height int         `json:"height,omitempty"`
}

type dimensions struct {
	width  int
	height int
}

var presets = map[string]dimensions{
	"9:16": {1080, 1920},
	"1:1":  {1080, 1080},
	"16:9": {1920, 1080},
	"4:3":  {1440, 1080},
	"4:5":  {1080, 1350},
}

// Presets returns the supported aspect ratio presets in a stable order.
func Presets() []Variant {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Variant, 0, len(names))
	for _, name := range names {
		d := presets[name]
		out = append(out, Variant{Kind: VariantResize, Preset: name, Width: d.width, Height: d.height})
	}
	return out
}

// ParseVariant understands "original", a preset such as "9:16" and custom
// sizes written as "1200x628".
func ParseVariant(s string) (Variant, error) {
	token := strings.ToLower(strings.TrimSpace(s))
	switch {
	case token == "" || token == "original" || token == "orig":
		return Variant{Kind: VariantOriginal}, nil
	case strings.Contains(token, ":"):
		v := Variant{Kind: VariantResize, Preset: token}
		return v.Normalize()
	case strings.Contains(token, "x"):
		parts := strings.SplitN(token, "x", 2)
		w, errW := strconv.Atoi(parts[0])
		h, errH := strconv.Atoi(parts[1])
		if errW != nil || errH != nil {
			return Variant{}, &InvalidInputError{Input: s, Reason: "custom size must look like 1200x628"}
		}
		v := Variant{Kind: VariantResize, Width: w, Height: h}
		return v.Normalize()
	default:
		return Variant{}, &InvalidInputError{Input: s, Reason: "unknown variant"}
	}
}

// Normalize resolves presets to dimensions and validates custom sizes.
func (v Variant) Normalize() (Variant, error) {
	kind := VariantKind(strings.ToLower(strings.TrimSpace(string(v.Kind))))
	if kind == "" {
		if v.Preset == "" && v.Width == 0 && v.Height == 0 {
			kind = VariantOriginal
		} else {
			kind = VariantResize
		}
	}
	switch kind {
	case VariantOriginal:
		return Variant{Kind: VariantOriginal}, nil
	case VariantResize:
	default:
		return Variant{}, &InvalidInputError{Input: string(v.Kind), Reason: "variant kind must be original or resize"}
	}
	preset := strings.TrimSpace(v.Preset)
	if preset != "" {
		d, ok := presets[preset]
		if !ok {
			return Variant{}, &InvalidInputError{Input: preset, Reason: "unknown aspect ratio preset"}
		}
		return Variant{Kind: VariantResize, Preset: preset, Width: d.width, Height: d.height}, nil
	}
	if v.Width < minDimension || v.Width > maxDimension || v.Height < minDimension || v.Height > maxDimension {
		return Variant{}, &InvalidInputError{
			Input:  fmt.Sprintf("%dx%d", v.Width, v.Height),
			Reason: fmt.Sprintf("custom size must be between %d and %d pixels per side", minDimension, maxDimension),
		}
	}
	return Variant{Kind: VariantResize, Width: v.Width, Height: v.Height}, nil
}

// Label is the user facing name of the variant.
func (v Variant) Label() string {
	switch {
	case v.Kind == VariantOriginal:
		return "original"
	case v.Preset != "":
		return v.Preset
	default:
		return fmt.Sprintf("%dx%d", v.Width, v.Height)
	}
}

// Code is the filesystem-safe label used inside storage keys.
func (v Variant) Code() string {
	switch {
	case v.Kind == VariantOriginal:
		return "orig"
	case v.Preset != "":
		return strings.ReplaceAll(v.Preset, ":", "x")
	default:
		return fmt.Sprintf("%dx%d", v.Width, v.Height)
	}
}

// ExportFormat is the file type requested from the export job.
type ExportFormat string

const (
	FormatPNG ExportFormat = "png"
	FormatJPG ExportFormat = "jpg"
	FormatPDF ExportFormat = "pdf"
	FormatMP4 ExportFormat = "mp4"
	FormatGIF ExportFormat = "gif"
)

// ExportFormats lists the supported formats, default first.
func ExportFormats() []ExportFormat {
	return []ExportFormat{FormatPNG, FormatJPG, FormatPDF, FormatMP4, FormatGIF}
}

// ParseExportFormat defaults to PNG for an empty value.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatPNG, nil
	case "jpeg":
		return FormatJPG, nil
	case FormatPNG, FormatJPG, FormatPDF, FormatMP4, FormatGIF:
		return f, nil
	default:
		return "", &InvalidInputError{Input: s, Reason: "unsupported export format"}
	}
}

// ContentType returns the MIME type of the exported files.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatJPG:
		return "image/jpeg"
	case FormatPDF:
		return "application/pdf"
	case FormatMP4:
		return "video/mp4"
	case FormatGIF:
		return "image/gif"
	default:
		return "image/png"
	}
}

// Extension returns the file extension without the leading dot.
func (f ExportFormat) Extension() string {
	if f == "" {
		return string(FormatPNG)
	}
	return string(f)
}

// ExportRequest is one user initiated unit of work. Each variant becomes an
// independent job chain.
type ExportRequest struct {
	DesignID string
	Variants []Variant
	Format   ExportFormat
}

// NewExportRequest validates raw user input before any network traffic.
func NewExportRequest(design string, variants []Variant, format string) (ExportRequest, error) {
	id, err := ParseDesignID(design)
	if err != nil {
		return ExportRequest{}, err
	}
	f, err := ParseExportFormat(format)
	if err != nil {
		return ExportRequest{}, err
	}
	if len(variants) == 0 {
		variants = []Variant{{Kind: VariantOriginal}}
	}
	normalized := make([]Variant, 0, len(variants))
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		n, err := v.Normalize()
		if err != nil {
			return ExportRequest{}, err
		}
		// Variants share one storage folder, so equal codes would collide.
		if _, dup := seen[n.Code()]; dup {
			return ExportRequest{}, &InvalidInputError{Input: n.Label(), Reason: "variant requested more than once"}
		}
		seen[n.Code()] = struct{}{}
		normalized = append(normalized, n)
	}
	return ExportRequest{DesignID: id, Variants: normalized, Format: f}, nil
}
