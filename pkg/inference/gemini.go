package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// GeminiInferencer is the alternate text/vision provider. Image generation
// stays on the OpenAI client; Gemini only covers chat completions here.
type GeminiInferencer struct {
	client *genai.Client
	apiKey string
	model  string
}

func NewGeminiInferencer(apiKey string, model string) (*GeminiInferencer, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &GeminiInferencer{
		client: client,
		apiKey: apiKey,
		model:  model,
	}, nil
}

func (o *GeminiInferencer) ChangeConfig(config *genai.ClientConfig) {
	client, err := genai.NewClient(context.Background(), config)
	if err != nil {
		return
	}
	o.client = client
}

// Complete sends text to Gemini and returns the output.
func (o *GeminiInferencer) Complete(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleModel),
		MaxOutputTokens:   int32(cmp.Or(params.MaxCompletionTokens.Value, 4096)),
	}
	if params.ResponseFormat.OfJSONSchema != nil {
		config.ResponseMIMEType = "application/json"
	}

	result, err := o.client.Models.GenerateContent(
		ctx,
		cmp.Or(params.Model, o.model),
		genai.Text(user),
		config,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return result.Text(), nil
}

// Describe sends inline image bytes to Gemini with the given instruction.
func (o *GeminiInferencer) Describe(ctx context.Context, image []byte, mime, instruction string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	parts := []*genai.Part{
		genai.NewPartFromText(instruction),
		genai.NewPartFromBytes(image, cmp.Or(mime, "image/png")),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := o.client.Models.GenerateContent(ctx, o.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to describe image: %w", err)
	}
	return result.Text(), nil
}
