package book

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"

	"github.com/gen2brain/webp"
)

const maxImageBytes = 20 << 20

// fetchPNG downloads a chapter image and normalizes it to PNG for
// embedding. Sources may be png, jpeg, gif, or webp.
func (d *Document) fetchPNG(ctx context.Context, url string) ([]byte, error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("image read failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		// Fallback: webp is not wired into image.Decode.
		var err2 error
		img, err2 = webp.Decode(bytes.NewReader(raw))
		if err2 != nil {
			return nil, fmt.Errorf("failed to decode image (generic: %v, webp: %v)", err, err2)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
