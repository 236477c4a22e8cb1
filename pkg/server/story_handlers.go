package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"fable/pkg/story"
	"fable/pkg/utils"
)

const (
	defaultChapters = 5
	maxChapters     = 20
	defaultMaxWords = 200
	minWords        = 50
	maxWords        = 1000

	maxUploadBytes = 25 << 20
	maxErrorDetail = 2000
)

type chatReq struct {
	Message            string `json:"message"`
	NumChapters        int    `json:"numChapters"`
	MaxWordsPerChapter int    `json:"maxWordsPerChapter"`
}

// POST /api/chat
func (s *Server) handlePostChat(c echo.Context) error {
	var req chatReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	chapters, words := clampStoryBounds(req.NumChapters, req.MaxWordsPerChapter)

	res, err := s.Stories.Compose(c.Request().Context(), req.Message, chapters, words)
	if err != nil {
		return storyError(c, err)
	}
	return c.JSON(http.StatusOK, storyResponse(res))
}

type regenerateStoryReq struct {
	Story            string `json:"story"`
	RegeneratePrompt string `json:"regeneratePrompt"`
}

// POST /api/regenerate-story
func (s *Server) handlePostRegenerateStory(c echo.Context) error {
	var req regenerateStoryReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if strings.TrimSpace(req.Story) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "story is required")
	}

	text, changes, err := s.Stories.Regenerate(c.Request().Context(), req.Story, req.RegeneratePrompt)
	if err != nil {
		return storyError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"newStory": text,
		"changes":  changes,
	})
}

type regenerateImageReq struct {
	Summary          string `json:"summary"`
	RegeneratePrompt string `json:"regeneratePrompt"`
}

// POST /api/regenerate-image
func (s *Server) handlePostRegenerateImage(c echo.Context) error {
	var req regenerateImageReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if strings.TrimSpace(req.Summary) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "summary is required")
	}

	url, err := s.Stories.RegenerateImage(c.Request().Context(), req.Summary, req.RegeneratePrompt)
	if err != nil {
		return storyError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"newImageUrl": url})
}

// POST /api/describe-image
func (s *Server) handlePostDescribeImage(c echo.Context) error {
	data, mime, err := readUpload(c, "image")
	if err != nil {
		return err
	}

	description, err := s.Stories.Describe(c.Request().Context(), data, mime)
	if err != nil {
		return storyError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"description": description})
}

// POST /api/generate-story-from-image
func (s *Server) handlePostStoryFromImage(c echo.Context) error {
	data, mime, err := readUpload(c, "image")
	if err != nil {
		return err
	}
	chapters, words := clampStoryBounds(
		formInt(c, "numChapters"),
		formInt(c, "maxWordsPerChapter"),
	)

	ctx := c.Request().Context()
	description, err := s.Stories.Describe(ctx, data, mime)
	if err != nil {
		return storyError(c, err)
	}
	log.Info("image described, composing story", "paragraphs", len(utils.Paragraphs(description)))

	res, err := s.Stories.Compose(ctx, description, chapters, words)
	if err != nil {
		return storyError(c, err)
	}
	body := storyResponse(res)
	body["description"] = description
	return c.JSON(http.StatusOK, body)
}

// --- helpers ---

func clampStoryBounds(chapters, words int) (int, int) {
	if chapters <= 0 {
		chapters = defaultChapters
	}
	if chapters > maxChapters {
		chapters = maxChapters
	}
	if words <= 0 {
		words = defaultMaxWords
	}
	if words < minWords {
		words = minWords
	}
	if words > maxWords {
		words = maxWords
	}
	return chapters, words
}

func formInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.FormValue(name))
	if err != nil {
		return 0
	}
	return v
}

// readUpload pulls one multipart file into memory; the multipart temp
// files echo spools are removed when the request handler returns.
func readUpload(c echo.Context, field string) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "no "+field+" file uploaded")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "unreadable "+field+" upload")
	}
	defer closeUpload(f)

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "unreadable "+field+" upload")
	}
	return data, fh.Header.Get("Content-Type"), nil
}

func closeUpload(f multipart.File) {
	if err := f.Close(); err != nil {
		log.Warn("failed closing upload", "error", err)
	}
}

// storyResponse flattens a composed story into the wire shape: the flat
// chapterN keys plus summary, image URLs, and the derived name.
func storyResponse(res *story.Result) map[string]any {
	out := map[string]any{}
	if bin, err := json.Marshal(res.Story); err == nil {
		_ = json.Unmarshal(bin, &out)
	}
	out["summary"] = res.Summary
	out["imageUrls"] = res.Story.ImageURLs()
	out["storyName"] = res.Name
	return out
}

// storyError maps pipeline failures onto the 500 error body, keeping the
// raw model output in details when parsing was the problem.
func storyError(c echo.Context, err error) error {
	var pe *story.ParseError
	if errors.As(err, &pe) {
		log.Error("unusable model output", "error", pe.Err)
		return c.JSON(http.StatusInternalServerError,
			utils.ErrJSON(pe.Error(), utils.LimitStr(pe.Raw, maxErrorDetail)))
	}
	if errors.Is(err, story.ErrDescriptionTooShort) {
		log.Error("image description too short")
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON(err.Error(), nil))
	}
	log.Error("story pipeline failure", "error", err)
	return c.JSON(http.StatusInternalServerError, utils.ErrJSON("generation failed", err.Error()))
}
