package inference

import (
	"context"

	"github.com/openai/openai-go/v3"
)

// Inferencer runs text and vision chat completions against one provider.
type Inferencer interface {
	Complete(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
	Describe(ctx context.Context, image []byte, mime, instruction string) (string, error)
}

// ImageGenerator turns a prompt into a hosted image URL.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
