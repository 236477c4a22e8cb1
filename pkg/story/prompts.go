package story

import "fmt"

const summarizePrompt = `You are a concise editor. Summarize the story you are given in a single prose paragraph. Mention the main characters and the arc of events. Reply with the summary only, no preamble.`

const chapterImagePrompt = `You are writing a prompt for an illustrator. Summarize the following chapter as one vivid visual scene in at most three sentences. Describe what is seen, not what is felt. Reply with the scene only.`

const describePrompt = `Describe this image as the opening of a story. Write at least 5 paragraphs of flowing narrative prose, separated by blank lines. Cover the setting, the characters or subjects, the mood, and what might happen next. Do not mention that you are looking at an image.`

const regeneratePrompt = `You are rewriting a story chapter by chapter. Apply the reader's instructions to the story you are given while keeping its chapter structure and overall length. Reply with the rewritten story text only.`

func storySystemPrompt(chapters, maxWords int) string {
	return fmt.Sprintf(`You are a storyteller. Write a story with exactly %d chapters. Each chapter must have a short evocative name and a body of at most %d words, with paragraphs separated by blank lines. Reply with a single JSON object of the form {"chapters":[{"name":"...","content":"..."}]} and nothing else.`, chapters, maxWords)
}
