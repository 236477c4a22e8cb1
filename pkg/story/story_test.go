package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"

	"fable/pkg/retry"
)

type fakeInferencer struct {
	describeReply string
	completeErr   error
	completes     int
}

func (f *fakeInferencer) Complete(_ context.Context, _ *openai.ChatCompletionNewParams, system, user string) (string, error) {
	f.completes++
	if f.completeErr != nil {
		return "", f.completeErr
	}
	switch {
	case strings.Contains(system, "storyteller"):
		return `{"chapters":[{"name":"Dawn","content":"First light.\n\nA door opens."},{"name":"Dusk","content":"Last light."}]}`, nil
	case system == chapterImagePrompt:
		return "scene: " + user, nil
	default:
		return "A keeper tends a lonely lighthouse.", nil
	}
}

func (f *fakeInferencer) Describe(context.Context, []byte, string, string) (string, error) {
	return f.describeReply, nil
}

type fakeImages struct {
	err error
}

func (f *fakeImages) Generate(_ context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://img.example/" + fmt.Sprint(len(prompt)), nil
}

func testService(inf *fakeInferencer) *Service {
	s := New(inf, &fakeImages{})
	s.Retry = retry.Policy{MaxAttempts: 1}
	s.ImageInterval = time.Millisecond
	return s
}

func TestParseFlatShape(t *testing.T) {
	raw := "```json\n{\"chapter1\":\"Once upon a time.\",\"chapter1Name\":\"Begin\x00nings\",\"chapter2\":\"The end.\",\"chapter2Name\":\"Endings\"}\n```"
	got, err := Parse(raw, 2)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(got.Chapters))
	}
	if got.Chapters[0].Name != "Beginnings" || got.Chapters[1].Name != "Endings" {
		t.Errorf("names = %q, %q", got.Chapters[0].Name, got.Chapters[1].Name)
	}
	if got.Chapters[0].Content != "Once upon a time." {
		t.Errorf("content = %q", got.Chapters[0].Content)
	}
}

func TestParseChaptersArray(t *testing.T) {
	raw := `{"chapters":[{"name":"One","content":"a"},{"name":"Two","content":"b"},{"name":"Three","content":"c"}]}`
	got, err := Parse(raw, 3)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.Chapters) != 3 || got.Chapters[2].Name != "Three" {
		t.Fatalf("unexpected chapters: %+v", got.Chapters)
	}
}

func TestParseMalformedRetainsRaw(t *testing.T) {
	raw := `{"chapters": [{"name": "Trunc`
	_, err := Parse(raw, 2)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ParseError", err)
	}
	if pe.Raw != raw {
		t.Errorf("Raw = %q, want original input", pe.Raw)
	}
}

func TestParseChapterCountMismatch(t *testing.T) {
	raw := `{"chapters":[{"name":"Only","content":"one"}]}`
	_, err := Parse(raw, 3)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ParseError", err)
	}
	if !strings.Contains(pe.Error(), "expected 3 chapters") {
		t.Errorf("err = %v, want chapter count message", err)
	}
}

func TestStoryDataRoundTrip(t *testing.T) {
	in := StoryData{Chapters: []Chapter{
		{Name: "Begin", Content: "a"},
		{Name: "End", Content: "b"},
	}}
	bin, err := in.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var out StoryData
	if err := out.UnmarshalJSON(bin); err != nil {
		t.Fatal(err)
	}
	if len(out.Chapters) != 2 || out.Chapters[0].Name != "Begin" || out.Chapters[1].Content != "b" {
		t.Fatalf("round trip mismatch: %+v", out.Chapters)
	}
}

func TestDescribeRejectsShortReplies(t *testing.T) {
	inf := &fakeInferencer{describeReply: "one\n\ntwo\n\nthree"}
	_, err := testService(inf).Describe(context.Background(), []byte{1}, "image/png")
	if !errors.Is(err, ErrDescriptionTooShort) {
		t.Fatalf("err = %v, want ErrDescriptionTooShort", err)
	}

	inf.describeReply = "one\n\ntwo\n\nthree\n\nfour\n\nfive"
	got, err := testService(inf).Describe(context.Background(), []byte{1}, "image/png")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if got != inf.describeReply {
		t.Errorf("description = %q", got)
	}
}

func TestComposePairsChaptersWithImages(t *testing.T) {
	res, err := testService(&fakeInferencer{}).Compose(context.Background(), "a story", 2, 100)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(res.Story.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(res.Story.Chapters))
	}
	for i, ch := range res.Story.Chapters {
		if ch.Summary != "scene: "+ch.Content {
			t.Errorf("chapter %d summary %q not derived from its own content", i, ch.Summary)
		}
		if ch.ImageURL == "" {
			t.Errorf("chapter %d has no image", i)
		}
	}
	if res.Summary == "" || res.Name == "" {
		t.Errorf("summary/name missing: %q, %q", res.Summary, res.Name)
	}
}

func TestComposePropagatesImageFailure(t *testing.T) {
	s := testService(&fakeInferencer{})
	s.Images = &fakeImages{err: errors.New("paint dry")}
	if _, err := s.Compose(context.Background(), "a story", 2, 100); err == nil {
		t.Fatal("expected error")
	}
}

func TestRegenerateReportsChanges(t *testing.T) {
	inf := &fakeInferencer{}
	s := testService(inf)
	text, deltas, err := s.Regenerate(context.Background(), "old text", "make it new")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if text == "" || len(deltas) == 0 {
		t.Fatalf("text %q deltas %v", text, deltas)
	}
}
