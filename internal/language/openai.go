package language

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAITranslator is the production Translator, backed by a chat model.
type OpenAITranslator struct {
	client *openai.Client
	model  string
}

func NewOpenAITranslator(apiKey, model string) *OpenAITranslator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAITranslator{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// format guard: the model must return the translation and nothing else
const translateGuard = `You are a translation step.
Translate the user text from %s to %s.
Return ONLY the translated text.
No commentary, no quotes, no labels.`

func (c *OpenAITranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: "system", Content: fmt.Sprintf(translateGuard, from, to)},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		logrus.WithError(err).Warn("translator call failed")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("translator returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
