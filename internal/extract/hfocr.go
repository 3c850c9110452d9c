package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHFBaseURL = "https://router.huggingface.co/models"

// HFOCR calls a HuggingFace-hosted OCR model with a single inline request.
// It is the cheapest, least reliable rung of the waterfall and usually runs
// last.
type HFOCR struct {
	APIKey  string
	Model   string
	BaseURL string // overridable for tests
	Client  *http.Client
}

func NewHFOCR(apiKey, model string) *HFOCR {
	if model == "" {
		model = "microsoft/trocr-large-printed"
	}
	return &HFOCR{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: defaultHFBaseURL,
		Client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (h *HFOCR) Name() string { return "hf-ocr" }

func (h *HFOCR) Attempt(ctx context.Context, data []byte, name string) (string, error) {
	reqBody, err := json.Marshal(map[string]string{
		"inputs": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s", h.BaseURL, h.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+h.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hf api error: %d - %s", resp.StatusCode, body)
	}
	return parseHFText(body)
}

// parseHFText accepts the two response shapes the router produces:
// [{"generated_text": "..."}] or {"text": "..."}.
func parseHFText(body []byte) (string, error) {
	var generated []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &generated); err == nil && len(generated) > 0 {
		var parts []string
		for _, g := range generated {
			if g.GeneratedText != "" {
				parts = append(parts, g.GeneratedText)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n"), nil
		}
	}

	var single struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &single); err == nil && single.Text != "" {
		return single.Text, nil
	}
	return "", fmt.Errorf("unrecognized response shape: %s", body)
}
