package designapi

import "designbridge/internal/domain"

// ResizeBody is the payload of POST /v1/resizes.
type ResizeBody struct {
	DesignID   string     `json:"design_id"`
	DesignType designType `json:"design_type"`
}

type designType struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ExportBody is the payload of POST /v1/exports.
type ExportBody struct {
	DesignID string       `json:"design_id"`
	Format   exportFormat `json:"format"`
}

type exportFormat struct {
	Type string `json:"type"`
}

// NewResizeBody builds a custom-size resize payload for designID.
func NewResizeBody(designID string, width, height int) ResizeBody {
	return ResizeBody{
		DesignID:   designID,
		DesignType: designType{Type: "custom", Width: width, Height: height},
	}
}

// NewExportBody builds an export payload covering every page of designID.
func NewExportBody(designID string, format domain.ExportFormat) ExportBody {
	return ExportBody{
		DesignID: designID,
		Format:   exportFormat{Type: format.Extension()},
	}
}
