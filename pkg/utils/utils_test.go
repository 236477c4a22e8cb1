package utils

import (
	"strings"
	"testing"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"padded", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanJSON(tt.in); got != tt.want {
				t.Errorf("CleanJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripControl(t *testing.T) {
	in := "{\"a\":\"b\x00c\x1fd\"}\n"
	want := "{\"a\":\"bcd\"}\n"
	if got := StripControl(in); got != want {
		t.Errorf("StripControl = %q, want %q", got, want)
	}
}

func TestParagraphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"single", "one block", 1},
		{"three", "a\n\nb\n\nc", 3},
		{"blank runs", "a\n\n\n\nb", 2},
		{"crlf", "a\r\n\r\nb", 2},
		{"whitespace only block", "a\n\n   \n\nb", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Paragraphs(tt.in); len(got) != tt.want {
				t.Errorf("Paragraphs(%q) = %d blocks, want %d", tt.in, len(got), tt.want)
			}
		})
	}
}

func TestDiffWords(t *testing.T) {
	deltas := DiffWords("the quick fox", "the slow fox")
	var removed, inserted []string
	for _, d := range deltas {
		switch d.Op {
		case -1:
			removed = append(removed, d.Text)
		case +1:
			inserted = append(inserted, d.Text)
		}
	}
	if strings.Join(removed, "") != "quick" {
		t.Errorf("removed = %v, want [quick]", removed)
	}
	if strings.Join(inserted, "") != "slow" {
		t.Errorf("inserted = %v, want [slow]", inserted)
	}
}
