package book

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func pngServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildChapterOrder(t *testing.T) {
	srv := pngServer(t)
	doc := New("A Tiny Tale", []Chapter{
		{Heading: "Dawn", Body: "First light.\n\nA door opens.", ImageURL: srv.URL + "/1.png"},
		{Heading: "Dusk", Body: "Last light.", ImageURL: srv.URL + "/2.png"},
	})
	doc.Compress = false

	out, err := doc.Bytes(context.Background())
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output does not look like a PDF")
	}

	// With compression off the content streams carry literal text.
	first := bytes.Index(out, []byte("(Dawn)"))
	second := bytes.Index(out, []byte("(Dusk)"))
	body := bytes.Index(out, []byte("(First light.)"))
	if first == -1 || second == -1 {
		t.Fatalf("chapter headings missing: Dawn=%d Dusk=%d", first, second)
	}
	if first > second {
		t.Errorf("chapter order wrong: Dawn at %d after Dusk at %d", first, second)
	}
	if body != -1 && body < first {
		t.Errorf("chapter body appears before its heading")
	}
}

func TestBuildBufferedMatchesStreamed(t *testing.T) {
	srv := pngServer(t)
	doc := New("Same Twice", []Chapter{{Heading: "One", Body: "text", ImageURL: srv.URL}})

	buffered, err := doc.Bytes(context.Background())
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	var streamed bytes.Buffer
	if err := doc.Build(context.Background(), &streamed); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(buffered) == 0 || len(streamed.Bytes()) == 0 {
		t.Fatal("empty output")
	}
}

func TestBuildPlaceholderOnBadImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	doc := New("Broken Art", []Chapter{
		{Heading: "Alone", Body: "No picture today.", ImageURL: srv.URL + "/missing.png"},
	})
	doc.Compress = false

	out, err := doc.Bytes(context.Background())
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Contains(out, []byte("(illustration unavailable)")) {
		t.Error("placeholder text missing from document")
	}
}

func TestFitBox(t *testing.T) {
	tests := []struct {
		name         string
		w, h         float64
		boxW, boxH   float64
		wantW, wantH float64
	}{
		{"wide image", 200, 100, 100, 100, 100, 50},
		{"tall image", 100, 200, 100, 100, 50, 100},
		{"exact", 100, 100, 100, 100, 100, 100},
		{"upscale", 10, 5, 100, 100, 100, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := fitBox(tt.w, tt.h, tt.boxW, tt.boxH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("fitBox = %v, %v, want %v, %v", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}
