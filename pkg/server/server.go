package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"fable/pkg/flipbook"
	"fable/pkg/preview"
	"fable/pkg/story"
)

type Server struct {
	Echo      *echo.Echo
	Stories   *story.Service
	Previews  *preview.Store
	Flipbooks *flipbook.Client
	Ctx       context.Context
}

func NewServer(ctx context.Context, stories *story.Service, previews *preview.Store, flipbooks *flipbook.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	s := &Server{
		Echo:      e,
		Stories:   stories,
		Previews:  previews,
		Flipbooks: flipbooks,
		Ctx:       ctx,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)

	api := s.Echo.Group("/api")

	// story pipeline
	api.POST("/chat", s.handlePostChat)
	api.POST("/regenerate-story", s.handlePostRegenerateStory)
	api.POST("/regenerate-image", s.handlePostRegenerateImage)
	api.POST("/describe-image", s.handlePostDescribeImage)
	api.POST("/generate-story-from-image", s.handlePostStoryFromImage)

	// document assembly
	api.POST("/pdf", s.handlePostPDF)
	api.POST("/generate-pdf", s.handlePostGeneratePDF)
	api.POST("/generate-pdf-preview", s.handlePostPDFPreview)
	api.GET("/pdf-preview/:id", s.handleGetPDFPreview)

	// flipbook publication
	api.POST("/create-flipbook-from-pdf", s.handlePostFlipbookFromPDF)
	api.POST("/create-flipbook-from-url", s.handlePostFlipbookFromURL)
	api.GET("/check-flipbook-status/:id", s.handleGetFlipbookStatus)
}

func (s *Server) handleGetRoot(c echo.Context) error {
	return c.JSON(200, map[string]string{
		"service": "Fable Story API",
		"status":  "ok",
	})
}

func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.Previews != nil {
		s.Previews.Close()
	}
	return s.Echo.Shutdown(ctx)
}
