package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"medley/internal/server/config"
	"medley/internal/server/database"
	"medley/internal/server/notify"
	"medley/internal/server/service"
)

// Handler contains the HTTP handlers for the medley API.
type Handler struct {
	svc *service.IngestService
	hub *notify.Hub
	db  *database.DB
	cfg *config.Config
}

// NewHandler creates a new handler with its dependencies.
func NewHandler(svc *service.IngestService, hub *notify.Hub, db *database.DB, cfg *config.Config) *Handler {
	return &Handler{svc: svc, hub: hub, db: db, cfg: cfg}
}

// HandleUpload handles POST /api/upload.
//
// Accepts a multipart form with a "username" value and any number of file
// parts; a part's filename may carry a relative subfolder path. The batch
// response is successful once every file has been attempted, even if some
// failed: callers inspect the per-file results for partial failures.
func (h *Handler) HandleUpload(c echo.Context) error {
	username := c.FormValue("username")
	if username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "username is required",
		})
	}
	if err := service.ValidateUsername(username); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": err.Error(),
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "invalid multipart form",
		})
	}

	var headers []*multipart.FileHeader
	for _, field := range form.File {
		headers = append(headers, field...)
	}
	if len(headers) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "no files in upload batch",
		})
	}

	// Oversize parts are a request-level rejection, before any pipeline work.
	for _, fh := range headers {
		if fh.Size > h.cfg.MaxFileSize {
			return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
				"error": fmt.Sprintf("file %s exceeds the %d byte limit", fh.Filename, h.cfg.MaxFileSize),
			})
		}
	}

	batch := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error": "failed to read uploaded file",
			})
		}
		defer src.Close()

		batch = append(batch, service.UploadFile{
			Name:         partFilename(fh),
			DeclaredType: fh.Header.Get("Content-Type"),
			Data:         src,
		})
	}

	results := h.svc.Ingest(c.Request().Context(), username, batch)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"results": results,
	})
}

// HandleListFiles handles GET /api/files?username=&q=&type=.
// Returns the user's records in insertion order; q narrows by filename
// substring, type by detected-type prefix.
func (h *Handler) HandleListFiles(c echo.Context) error {
	username := c.QueryParam("username")
	if username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "username is required",
		})
	}

	records, err := h.svc.List(c.Request().Context(), username, c.QueryParam("q"), c.QueryParam("type"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidUser) {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to query files",
		})
	}

	return c.JSON(http.StatusOK, records)
}

// HandleArchive handles GET /api/archive/:username.
// Streams a zip of the namespace's entire storage tree.
func (h *Handler) HandleArchive(c echo.Context) error {
	username := c.Param("username")
	if err := service.ValidateUsername(username); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": err.Error(),
		})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/zip")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.zip"`, username))

	if err := h.svc.Archive(username, res); err != nil {
		if errors.Is(err, service.ErrNamespaceNotFound) {
			res.Header().Del(echo.HeaderContentDisposition)
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "user namespace not found",
			})
		}
		// Headers may already be on the wire; all we can do is log.
		slog.Error("archive stream failed", "user", username, "error", err)
		return nil
	}
	return nil
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// partFilename extracts the filename of a multipart part, preserving any
// relative subfolder path. multipart.FileHeader.Filename has directories
// stripped, so the raw Content-Disposition header is consulted first.
func partFilename(fh *multipart.FileHeader) string {
	if cd := fh.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	return fh.Filename
}
