package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/tsforge/tsforge/pkg/binformat"
	"github.com/tsforge/tsforge/pkg/models"
	"github.com/tsforge/tsforge/pkg/queue"
)

// uploadFileHandler handles POST /files: persist the raw upload under
// cfg.DataDir, register the file row, enqueue a parse task, and respond
// once the queue accepted it (spec.md §6).
func (s *Server) uploadFileHandler(c *echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing form field \"file\""})
	}
	folder := c.FormValue("data")
	if folder == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing form field \"data\" (folder id)"})
	}
	user := c.FormValue("user")

	raw, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not open upload"})
	}
	defer raw.Close()

	rawID := uuid.NewString()
	rawPath := filepath.Join(s.cfg.DataDir, "raw", rawID+filepath.Ext(fh.Filename))
	if err := os.MkdirAll(filepath.Dir(rawPath), 0o755); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not prepare storage"})
	}
	out, err := os.Create(rawPath)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not store upload"})
	}
	defer out.Close()
	if _, err := io.Copy(out, raw); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not store upload"})
	}

	f := &models.File{
		Folder:       folder,
		RawPath:      rawPath,
		Parsing:      models.ParsingUploading,
		LastModifier: user,
	}
	if err := s.files.Create(c.Request().Context(), f); err != nil {
		return httpError(c, err)
	}

	if _, err := s.queue.Enqueue(c.Request().Context(), map[string]string{
		queue.FieldFileID: f.ID,
	}); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fmt.Sprintf("enqueue failed: %v", err)})
	}
	if err := s.files.UpdateParsingStatus(c.Request().Context(), f.ID, models.ParsingQueued); err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, UploadResponse{Status: "done", FileID: f.ID})
}

// getFileHandler handles GET /files/{id}: the file record plus its data,
// the overview array for binary-format files or the full parsed columns
// for small JSON-only files (spec.md §6).
func (s *Server) getFileHandler(c *echo.Context) error {
	id := c.Param("id")
	f, err := s.files.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(c, err)
	}

	resp := GetFileResponse{FileInfo: toFileInfo(f)}
	if f.Parsing != models.ParsingParsed {
		return c.JSON(http.StatusOK, resp)
	}

	if f.UseBinaryFormat {
		ov, err := binformat.ReadOverview(f.OverviewPath)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not read overview"})
		}
		resp.Data = ov.Data
	} else {
		cols, err := binformat.ReadFullJSON(f.JSONPath)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not read parsed data"})
		}
		resp.Data = make([]binformat.OverviewChannel, len(cols))
		for i, col := range cols {
			resp.Data[i] = binformat.OverviewChannel{X: col.X, Name: col.Name, Unit: col.Unit, Color: col.Color, Data: col.Data}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// reparseHandler handles PUT /files/reparse: re-enqueue every file in a
// folder and mark it queued (spec.md §6, §9's reparse decision — files
// are not deleted first, CompleteParse overwrites in place on success).
func (s *Server) reparseHandler(c *echo.Context) error {
	var req ReparseRequest
	if err := c.Bind(&req); err != nil || req.FolderID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing folderId"})
	}

	files, err := s.files.ListByFolder(c.Request().Context(), req.FolderID)
	if err != nil {
		return httpError(c, err)
	}

	queued := 0
	for _, f := range files {
		if _, err := s.queue.Enqueue(c.Request().Context(), map[string]string{
			queue.FieldFileID: f.ID,
		}); err != nil {
			continue
		}
		if err := s.files.UpdateParsingStatus(c.Request().Context(), f.ID, models.ParsingQueued); err != nil {
			continue
		}
		queued++
	}

	return c.JSON(http.StatusOK, ReparseResponse{Status: "done", FilesQueued: queued})
}
