package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fable/pkg/schema"
	"fable/pkg/utils"
)

// Chapter pairs a chapter's text with the summary and illustration derived
// from it, so nothing relies on index alignment across separate lists.
type Chapter struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Summary  string `json:"summary,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// StoryData is an ordered chapter list. On the wire it keeps the flat
// chapter1/chapter1Name key shape clients already speak.
type StoryData struct {
	Chapters []Chapter
}

// ParseError reports a model reply that came back but was unusable. Raw
// retains the offending text for diagnostics.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unusable story response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (s StoryData) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, ch := range s.Chapters {
		if i > 0 {
			b.WriteByte(',')
		}
		content, err := json.Marshal(ch.Content)
		if err != nil {
			return nil, err
		}
		name, err := json.Marshal(ch.Name)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, `"chapter%d":%s,"chapter%dName":%s`, i+1, content, i+1, name)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func (s *StoryData) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	s.Chapters = nil
	for i := 1; ; i++ {
		content, ok := flat[fmt.Sprintf("chapter%d", i)]
		if !ok {
			break
		}
		name := flat[fmt.Sprintf("chapter%dName", i)]
		if name == "" {
			name = fmt.Sprintf("Chapter %d", i)
		}
		s.Chapters = append(s.Chapters, Chapter{Name: name, Content: content})
	}
	return nil
}

// Text joins all chapter bodies in order, separated by blank lines.
func (s StoryData) Text() string {
	parts := make([]string, 0, len(s.Chapters))
	for _, ch := range s.Chapters {
		parts = append(parts, ch.Content)
	}
	return strings.Join(parts, "\n\n")
}

// ImageURLs lists the chapter image URLs in chapter order.
func (s StoryData) ImageURLs() []string {
	urls := make([]string, len(s.Chapters))
	for i, ch := range s.Chapters {
		urls[i] = ch.ImageURL
	}
	return urls
}

// Parse sanitizes and decodes a model reply into chapters. wantChapters > 0
// enforces that the model produced exactly the chapters it was asked for.
// Both the structured chapters-array shape and the legacy flat chapterN
// shape are accepted.
func Parse(raw string, wantChapters int) (StoryData, error) {
	cleaned := utils.CleanJSON(utils.StripControl(raw))

	var story StoryData
	var plan schema.StoryPlan
	if err := json.Unmarshal([]byte(cleaned), &plan); err == nil && len(plan.Chapters) > 0 {
		for _, ch := range plan.Chapters {
			story.Chapters = append(story.Chapters, Chapter{Name: ch.Name, Content: ch.Content})
		}
	} else if err := json.Unmarshal([]byte(cleaned), &story); err != nil || len(story.Chapters) == 0 {
		if err == nil {
			err = errors.New("no chapters found")
		}
		return StoryData{}, &ParseError{Raw: raw, Err: err}
	}

	if wantChapters > 0 && len(story.Chapters) != wantChapters {
		return StoryData{}, &ParseError{
			Raw: raw,
			Err: fmt.Errorf("expected %d chapters, got %d", wantChapters, len(story.Chapters)),
		}
	}
	return story, nil
}
