package story

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"stopwords filtered", "The quick brown fox is fast", "quick brown fox"},
		{"empty", "", ""},
		{"all stopwords", "the and of", ""},
		{"fewer than three", "Lonely lighthouse", "Lonely lighthouse"},
		{"case insensitive", "THE Quick brown fox", "Quick brown fox"},
		{"punctuation trimmed", "A storm, wild and loud, came", "storm, wild loud,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.in); got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
