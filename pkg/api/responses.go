package api

import (
	"github.com/tsforge/tsforge/pkg/binformat"
	"github.com/tsforge/tsforge/pkg/models"
)

// FileInfo is the JSON projection of models.File returned by GET
// /files/{id}, using the field names original_source's routes/files.py
// exposes (spec.md §6).
type FileInfo struct {
	ID              string  `json:"id"`
	Folder          string  `json:"folder"`
	UseBinaryFormat bool    `json:"useBinaryFormat"`
	TotalPoints     int64   `json:"totalPoints"`
	XType           string  `json:"xType"`
	XFormat         string  `json:"xFormat,omitempty"`
	XMin            float64 `json:"xMin"`
	XMax            float64 `json:"xMax"`
	Parsing         string  `json:"parsing"`
}

func toFileInfo(f *models.File) FileInfo {
	return FileInfo{
		ID:              f.ID,
		Folder:          f.Folder,
		UseBinaryFormat: f.UseBinaryFormat,
		TotalPoints:     f.TotalPoints,
		XType:           string(f.XType),
		XFormat:         f.XFormat,
		XMin:            f.XMin,
		XMax:            f.XMax,
		Parsing:         string(f.Parsing),
	}
}

// GetFileResponse is GET /files/{id}'s body: the file record plus its
// data, which is the overview array for binary-format files and the
// full parsed columns for small JSON-only files (spec.md §6).
type GetFileResponse struct {
	FileInfo FileInfo                    `json:"fileInfo"`
	Data     []binformat.OverviewChannel `json:"data"`
}

// UploadResponse is POST /files's body (spec.md §6: "returns done").
type UploadResponse struct {
	Status string `json:"status"`
	FileID string `json:"fileId"`
}

// ReparseResponse is PUT /files/reparse's body.
type ReparseResponse struct {
	Status      string `json:"status"`
	FilesQueued int    `json:"filesQueued"`
}
