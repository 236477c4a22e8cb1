package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"fable/pkg/inference"
	"fable/pkg/retry"
	"fable/pkg/schema"
	"fable/pkg/utils"
)

// ErrDescriptionTooShort reports a vision reply with fewer than the
// required five paragraphs, as opposed to no reply at all.
var ErrDescriptionTooShort = errors.New("description too short: fewer than 5 paragraphs")

const minDescriptionParagraphs = 5

// Service runs the story pipeline: text generation, per-chapter
// summarization and illustration, and image description.
type Service struct {
	Inferencer inference.Inferencer
	Images     inference.ImageGenerator

	// Retry applies uniformly to every chat completion; image generation
	// fails fast.
	Retry retry.Policy

	// ImageInterval paces the per-chapter image fan-out.
	ImageInterval time.Duration
}

func New(inf inference.Inferencer, images inference.ImageGenerator) *Service {
	return &Service{
		Inferencer:    inf,
		Images:        images,
		Retry:         retry.Policy{MaxAttempts: 3, BaseDelay: time.Second},
		ImageInterval: time.Second,
	}
}

// Result is a fully composed story: chapters with images, an overall
// summary, and a derived title.
type Result struct {
	Story   StoryData
	Summary string
	Name    string
}

// Generate asks the model for a chapters-structured story and parses it.
func (s *Service) Generate(ctx context.Context, prompt string, chapters, maxWords int) (StoryData, error) {
	system := storySystemPrompt(chapters, maxWords)

	budget := int64(chapters*maxWords*3 + 512)
	if n, err := utils.CountTokens(system + prompt); err == nil {
		budget += int64(n)
	}
	params := &openai.ChatCompletionNewParams{
		MaxCompletionTokens: openai.Int(budget),
		ResponseFormat:      schema.StoryResponseFormat(),
	}

	out, err := retry.Do(ctx, s.Retry, func(ctx context.Context) (string, error) {
		return s.Inferencer.Complete(ctx, params, system, prompt)
	})
	if err != nil {
		return StoryData{}, fmt.Errorf("story generation failed: %w", err)
	}

	story, err := Parse(out, chapters)
	if err != nil {
		return StoryData{}, err
	}
	return story, nil
}

// Summarize produces a prose summary of an arbitrary text blob.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	out, err := retry.Do(ctx, s.Retry, func(ctx context.Context) (string, error) {
		return s.Inferencer.Complete(ctx, nil, summarizePrompt, text)
	})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Regenerate rewrites a story under the given instructions and reports the
// word-level changes alongside the new text.
func (s *Service) Regenerate(ctx context.Context, text, instructions string) (string, []utils.WordDelta, error) {
	user := fmt.Sprintf("Instructions: %s\n\nStory:\n%s", instructions, text)
	out, err := retry.Do(ctx, s.Retry, func(ctx context.Context) (string, error) {
		return s.Inferencer.Complete(ctx, nil, regeneratePrompt, user)
	})
	if err != nil {
		return "", nil, fmt.Errorf("story regeneration failed: %w", err)
	}
	out = strings.TrimSpace(out)
	return out, utils.DiffWords(text, out), nil
}

// RegenerateImage produces a fresh illustration for a chapter summary,
// optionally steered by extra instructions. Fail fast, no retry.
func (s *Service) RegenerateImage(ctx context.Context, summary, instructions string) (string, error) {
	prompt := summary
	if instructions != "" {
		prompt += "\n" + instructions
	}
	return s.Images.Generate(ctx, prompt)
}

// Describe narrates an uploaded image in at least five paragraphs.
func (s *Service) Describe(ctx context.Context, image []byte, mime string) (string, error) {
	out, err := retry.Do(ctx, s.Retry, func(ctx context.Context) (string, error) {
		return s.Inferencer.Describe(ctx, image, mime, describePrompt)
	})
	if err != nil {
		return "", fmt.Errorf("image description failed: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("empty description")
	}
	if len(utils.Paragraphs(out)) < minDescriptionParagraphs {
		return "", ErrDescriptionTooShort
	}
	return out, nil
}

// Illustrate summarizes every chapter and generates its image, fanned out
// with a request-scoped join. Each chapter keeps its own summary and URL.
func (s *Service) Illustrate(ctx context.Context, story *StoryData) error {
	eg, egCtx := errgroup.WithContext(ctx)
	limiter := rate.NewLimiter(rate.Every(s.ImageInterval), 2)

	for i := range story.Chapters {
		ch := &story.Chapters[i]
		eg.Go(func() error {
			summary, err := retry.Do(egCtx, s.Retry, func(ctx context.Context) (string, error) {
				return s.Inferencer.Complete(ctx, nil, chapterImagePrompt, ch.Content)
			})
			if err != nil {
				return fmt.Errorf("chapter %q summary failed: %w", ch.Name, err)
			}
			ch.Summary = strings.TrimSpace(summary)

			if err := limiter.Wait(egCtx); err != nil {
				return err
			}
			url, err := s.Images.Generate(egCtx, ch.Summary)
			if err != nil {
				return fmt.Errorf("chapter %q image failed: %w", ch.Name, err)
			}
			ch.ImageURL = url
			return nil
		})
	}
	return eg.Wait()
}

// Compose runs the full pipeline: generate, illustrate every chapter,
// summarize the whole, and derive a title.
func (s *Service) Compose(ctx context.Context, prompt string, chapters, maxWords int) (*Result, error) {
	story, err := s.Generate(ctx, prompt, chapters, maxWords)
	if err != nil {
		return nil, err
	}
	log.Info("story generated", "chapters", len(story.Chapters))

	res := &Result{Story: story}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		summary, err := s.Summarize(egCtx, res.Story.Text())
		if err != nil {
			return err
		}
		res.Summary = summary
		return nil
	})
	eg.Go(func() error {
		return s.Illustrate(egCtx, &res.Story)
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res.Name = Name(res.Summary)
	log.Info("story composed", "name", res.Name, "chapters", len(res.Story.Chapters))
	return res, nil
}
