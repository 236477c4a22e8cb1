package flipbook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"fable/pkg/retry"
	"fable/pkg/utils"
)

// State is the lifecycle of a hosted conversion job.
type State string

const (
	StateSubmitted  State = "submitted"
	StateProcessing State = "processing"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

var (
	// ErrNoJobID reports an upload reply that came back without a job id.
	ErrNoJobID = errors.New("flipbook response missing job id")

	// ErrTimedOut is the local decision to stop polling; the job itself
	// may still finish upstream.
	ErrTimedOut = errors.New("flipbook not ready before polling gave up")
)

// Status is one snapshot of a conversion job.
type Status struct {
	ID    string `json:"id"`
	State State  `json:"state"`
	Hash  string `json:"hash"`
	Error string `json:"error,omitempty"`
}

// Client talks to the external flipbook hosting API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	PollInterval time.Duration
	PollLimit    int

	// Sleep is the wait between polls; tests inject an immediate one.
	Sleep func(ctx context.Context, d time.Duration) error

	// Retry applies to on-demand status lookups, independent of polling.
	Retry retry.Policy
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		HTTP:         &http.Client{Timeout: 2 * time.Minute},
		PollInterval: 5 * time.Second,
		PollLimit:    10,
		Sleep:        sleepCtx,
		Retry:        retry.Policy{MaxAttempts: 3, BaseDelay: time.Second},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Upload submits a document and returns the job id it was assigned.
func (c *Client) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", utils.SanitizeFilename(filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", fmt.Errorf("flipbook upload read failed: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/documents", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	var reply Status
	if err := c.do(req, &reply); err != nil {
		return "", fmt.Errorf("flipbook upload failed: %w", err)
	}
	if reply.ID == "" {
		return "", ErrNoJobID
	}
	return reply.ID, nil
}

// Status looks up a job, retrying rate-limited lookups up to three times.
func (c *Client) Status(ctx context.Context, id string) (Status, error) {
	return retry.Do(ctx, c.Retry, func(ctx context.Context) (Status, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/documents/"+id, nil)
		if err != nil {
			return Status{}, err
		}
		req.Header.Set("Authorization", "Bearer "+c.APIKey)

		var st Status
		if err := c.do(req, &st); err != nil {
			return Status{}, fmt.Errorf("flipbook status failed: %w", err)
		}
		return st, nil
	})
}

// Publish uploads a document and polls until it is ready, returning the
// public view URL. Exhausting the poll budget yields ErrTimedOut.
func (c *Client) Publish(ctx context.Context, r io.Reader, filename string) (string, error) {
	id, err := c.Upload(ctx, r, filename)
	if err != nil {
		return "", err
	}
	log.Info("flipbook submitted", "id", id)

	for attempt := 1; attempt <= c.PollLimit; attempt++ {
		if err := c.Sleep(ctx, c.PollInterval); err != nil {
			return "", err
		}
		st, err := c.Status(ctx, id)
		if err != nil {
			return "", err
		}
		switch st.State {
		case StateReady:
			log.Info("flipbook ready", "id", id, "polls", attempt)
			return c.ViewURL(st.Hash), nil
		case StateFailed:
			return "", fmt.Errorf("flipbook conversion failed: %s", st.Error)
		}
		log.Debug("flipbook still processing", "id", id, "poll", attempt, "state", st.State)
	}
	return "", fmt.Errorf("%w: job %s after %d polls", ErrTimedOut, id, c.PollLimit)
}

// PublishURL fetches a previously hosted document and republishes it.
func (c *Client) PublishURL(ctx context.Context, srcURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching source document failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching source document returned %s", resp.Status)
	}

	name := srcURL[strings.LastIndex(srcURL, "/")+1:]
	if name == "" {
		name = "document.pdf"
	}
	return c.Publish(ctx, resp.Body, name)
}

// ViewURL builds the public page-turning URL for a finished job.
func (c *Client) ViewURL(hash string) string {
	return fmt.Sprintf("%s/view/%s", c.BaseURL, hash)
}

// do runs a request and decodes the JSON reply, translating 429 into the
// shared rate-limit error so retry policies treat every upstream alike.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &retry.RateLimitError{Err: fmt.Errorf("%s: rate limited", req.URL.Path)}
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %s", resp.Status, utils.LimitStr(string(detail), 512))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
