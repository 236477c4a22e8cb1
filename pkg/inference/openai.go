package inference

import (
	"cmp"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"fable/pkg/retry"
)

// OpenAIInferencer implements Inferencer and ImageGenerator using OpenAI's
// official Go SDK.
type OpenAIInferencer struct {
	client     *openai.Client
	apiKey     string
	model      string
	imageModel string
}

// NewOpenAIInferencer creates a new inferencer instance using OpenAI client.
func NewOpenAIInferencer(apiKey, model, imageModel string) *OpenAIInferencer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIInferencer{
		client:     &client,
		apiKey:     apiKey,
		model:      cmp.Or(model, "gpt-4o-mini"),
		imageModel: cmp.Or(imageModel, string(openai.ImageModelDallE3)),
	}
}

func (o *OpenAIInferencer) ChangeBaseURL(baseURL string) {
	client := openai.NewClient(
		option.WithAPIKey(o.apiKey),
		option.WithBaseURL(baseURL),
	)
	o.client = &client
}

func (o *OpenAIInferencer) SetModel(model string) {
	o.model = model
}

// Complete sends text to the chat completion endpoint and returns the output.
func (o *OpenAIInferencer) Complete(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	} else {
		params = &(*params)
	}
	params.Model = cmp.Or(params.Model, o.model)
	params.Messages = []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Role: "system",
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.Opt[string]{Value: system},
				},
			}},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Role: "user",
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: param.Opt[string]{Value: user},
				},
			},
		},
	}

	params.MaxCompletionTokens = openai.Int(cmp.Or(params.MaxCompletionTokens.Value, 4096*4))
	params.Temperature = openai.Float(cmp.Or(params.Temperature.Value, 0.7))
	params.TopP = openai.Float(cmp.Or(params.TopP.Value, 1.0))

	resp, err := o.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		return "", translateErr(fmt.Errorf("openai inference error: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	if resp.Choices[0].Message.Content == "" {
		return "", errors.New("empty completion content")
	}

	return resp.Choices[0].Message.Content, nil
}

// Describe sends an inline base64 image to a vision-capable completion.
func (o *OpenAIInferencer) Describe(ctx context.Context, image []byte, mime, instruction string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", cmp.Or(mime, "image/png"), base64.StdEncoding.EncodeToString(image))

	params := openai.ChatCompletionNewParams{
		Model:               o.model,
		MaxCompletionTokens: openai.Int(4096),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Role: "user",
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							{
								OfText: &openai.ChatCompletionContentPartTextParam{Text: instruction},
							},
							{
								OfImageURL: &openai.ChatCompletionContentPartImageParam{
									ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL},
								},
							},
						},
					},
				},
			},
		},
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", translateErr(fmt.Errorf("openai vision error: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate requests exactly one 1024x1024 image and returns its hosted URL.
func (o *OpenAIInferencer) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(o.imageModel),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return "", translateErr(fmt.Errorf("openai image error: %w", err))
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("no image returned")
	}
	return resp.Data[0].URL, nil
}

// translateErr lifts HTTP 429 into retry.RateLimitError, carrying the
// provider's Retry-After hint when present.
func translateErr(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		return err
	}
	var after time.Duration
	if apiErr.Response != nil {
		if v := apiErr.Response.Header.Get("Retry-After"); v != "" {
			if secs, convErr := strconv.Atoi(v); convErr == nil && secs > 0 {
				after = time.Duration(secs) * time.Second
			}
		}
	}
	return &retry.RateLimitError{RetryAfter: after, Err: err}
}
