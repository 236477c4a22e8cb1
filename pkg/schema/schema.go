package schema

import (
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
)

// ChapterPlan is one chapter as the model emits it.
type ChapterPlan struct {
	Name    string `json:"name" jsonschema_description:"Short chapter title"`
	Content string `json:"content" jsonschema_description:"Chapter body text, paragraphs separated by blank lines"`
}

// StoryPlan is the full structured story reply.
type StoryPlan struct {
	Chapters []ChapterPlan `json:"chapters"`
}

func generateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

var StoryPlanSchema = generateSchema[StoryPlan]()

// StoryResponseFormat constrains chat completions to emit a StoryPlan.
func StoryResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	p := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "story_plan",
		Description: openai.String("A story split into named chapters"),
		Schema:      StoryPlanSchema,
		Strict:      openai.Bool(true),
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: p},
	}
}
