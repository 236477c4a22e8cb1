package server

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"fable/pkg/book"
	"fable/pkg/story"
	"fable/pkg/utils"
)

type pdfReq struct {
	StoryData story.StoryData `json:"storyData"`
	ImageURLs []string        `json:"imageUrls"`
	StoryName string          `json:"storyName"`
}

func (r *pdfReq) document() *book.Document {
	chapters := make([]book.Chapter, len(r.StoryData.Chapters))
	for i, ch := range r.StoryData.Chapters {
		chapters[i] = book.Chapter{Heading: ch.Name, Body: ch.Content, ImageURL: ch.ImageURL}
		if chapters[i].ImageURL == "" && i < len(r.ImageURLs) {
			chapters[i].ImageURL = r.ImageURLs[i]
		}
	}
	title := r.StoryName
	if title == "" {
		title = "Untitled Story"
	}
	return book.New(title, chapters)
}

func bindPDFReq(c echo.Context) (*pdfReq, error) {
	var req pdfReq
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if len(req.StoryData.Chapters) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "storyData is required")
	}
	return &req, nil
}

// POST /api/pdf — fully buffered, exact content length, download headers.
func (s *Server) handlePostPDF(c echo.Context) error {
	req, err := bindPDFReq(c)
	if err != nil {
		return err
	}

	data, err := req.document().Bytes(c.Request().Context())
	if err != nil {
		log.Error("pdf assembly failed", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("pdf assembly failed", err.Error()))
	}

	filename := utils.SanitizeFilename(strings.TrimSpace(req.StoryName))
	if filename == "" {
		filename = "story"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", data)
}

// POST /api/generate-pdf — streamed straight into the response body.
func (s *Server) handlePostGeneratePDF(c echo.Context) error {
	req, err := bindPDFReq(c)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/pdf")
	c.Response().WriteHeader(http.StatusOK)
	if err := req.document().Build(c.Request().Context(), c.Response()); err != nil {
		// Headers are gone; all we can do is log and drop the connection.
		log.Error("streamed pdf assembly failed", "error", err)
		return err
	}
	return nil
}

// POST /api/generate-pdf-preview — render, persist, hand back a link.
func (s *Server) handlePostPDFPreview(c echo.Context) error {
	req, err := bindPDFReq(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.StoryName) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "storyName is required")
	}

	data, err := req.document().Bytes(c.Request().Context())
	if err != nil {
		log.Error("pdf assembly failed", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("pdf assembly failed", err.Error()))
	}

	id, err := s.Previews.Put(data)
	if err != nil {
		log.Error("failed storing preview", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed storing preview", err.Error()))
	}
	log.Info("preview stored", "id", id, "bytes", len(data))

	return c.JSON(http.StatusOK, map[string]string{
		"previewId":  id,
		"previewUrl": "/api/pdf-preview/" + id,
	})
}

// GET /api/pdf-preview/:id
func (s *Server) handleGetPDFPreview(c echo.Context) error {
	path, ok := s.Previews.Path(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "preview not found or expired")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/pdf")
	return c.File(path)
}
