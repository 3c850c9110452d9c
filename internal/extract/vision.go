package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// visionPrompt asks for a faithful transcription, not a summary. Question
// numbering must survive for the segmenter.
const visionPrompt = `Transcribe every piece of text in this examination question paper exactly as printed. Keep question numbers and sub-part labels like (a), (b). Output plain text only, one line per printed line. Do not summarize, translate, or add commentary.`

// Vision is a multimodal OCR provider. Unlike the job-based specialist, it
// takes the document inline, base64-encoded, in a single request.
type Vision struct {
	client *openai.Client
	model  string
}

func NewVision(apiKey, model string) *Vision {
	if model == "" {
		model = openai.GPT4o
	}
	return &Vision{client: openai.NewClient(apiKey), model: model}
}

func (v *Vision) Name() string { return "vision" }

func (v *Vision) Attempt(ctx context.Context, data []byte, name string) (string, error) {
	mime := http.DetectContentType(data)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     v.model,
		MaxTokens: 8192,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
