package server

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"fable/pkg/flipbook"
	"fable/pkg/utils"
)

// POST /api/create-flipbook-from-pdf
func (s *Server) handlePostFlipbookFromPDF(c echo.Context) error {
	fh, err := c.FormFile("pdf")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no pdf file uploaded")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable pdf upload")
	}
	defer closeUpload(f)

	url, err := s.Flipbooks.Publish(c.Request().Context(), f, fh.Filename)
	if err != nil {
		return flipbookError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"flipbookUrl": url,
	})
}

type flipbookFromURLReq struct {
	PreviewURL string `json:"previewUrl"`
}

// POST /api/create-flipbook-from-url
func (s *Server) handlePostFlipbookFromURL(c echo.Context) error {
	var req flipbookFromURLReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.PreviewURL = strings.TrimSpace(req.PreviewURL)
	if req.PreviewURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "previewUrl is required")
	}

	ctx := c.Request().Context()
	var url string
	var err error

	// A preview we host ourselves is read from disk; anything else is
	// fetched and re-uploaded.
	if id, ok := previewID(req.PreviewURL); ok {
		path, found := s.Previews.Path(id)
		if !found {
			return echo.NewHTTPError(http.StatusNotFound, "preview not found or expired")
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			log.Error("failed opening preview file", "id", id, "error", openErr)
			return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed reading preview", openErr.Error()))
		}
		defer f.Close()
		url, err = s.Flipbooks.Publish(ctx, f, id+".pdf")
	} else {
		url, err = s.Flipbooks.PublishURL(ctx, req.PreviewURL)
	}
	if err != nil {
		return flipbookError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"flipbookUrl": url,
	})
}

// GET /api/check-flipbook-status/:id
func (s *Server) handleGetFlipbookStatus(c echo.Context) error {
	st, err := s.Flipbooks.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return flipbookError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  st.State,
		"details": st,
	})
}

func previewID(url string) (string, bool) {
	const marker = "/api/pdf-preview/"
	idx := strings.Index(url, marker)
	if idx == -1 {
		return "", false
	}
	id := url[idx+len(marker):]
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", false
	}
	return id, true
}

func flipbookError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, flipbook.ErrTimedOut):
		log.Warn("flipbook polling gave up", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("flipbook conversion timed out", err.Error()))
	case errors.Is(err, flipbook.ErrNoJobID):
		log.Error("flipbook upload returned no job id")
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("unexpected flipbook response", err.Error()))
	default:
		log.Error("flipbook request failed", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("flipbook request failed", err.Error()))
	}
}
