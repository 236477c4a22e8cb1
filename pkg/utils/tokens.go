package utils

import (
	"github.com/pkoukk/tiktoken-go"
)

// CountTokens estimates the token cost of text under the cl100k-family
// encodings shared by the chat models we target.
func CountTokens(text string) (int, error) {
	tkm, err := tiktoken.EncodingForModel("gpt-4-0613")
	if err != nil {
		return 0, err
	}
	return len(tkm.Encode(text, nil, nil)), nil
}
