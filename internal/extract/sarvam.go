package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ==========================================
// Sarvam Document Intelligence OCR
// ==========================================
//
// Job-based API flow:
// 1. Create job   → POST {base}
// 2. Get upload URL → POST {base}/upload-files
// 3. Upload bytes → PUT <presigned_url>
// 4. Start job    → POST {base}/{job_id}/start
// 5. Poll status  → GET {base}/{job_id}/status
// 6. Download     → POST {base}/{job_id}/download-files
// 7. Parse ZIP of markdown pages into plain text

const defaultSarvamBaseURL = "https://api.sarvam.ai/doc-digitization/job/v1"

// Sarvam is the document-OCR specialist provider. Its protocol is a stateful
// handshake: the document is uploaded for a job handle first, then processed
// by reference.
type Sarvam struct {
	APIKey  string
	BaseURL string // overridable for tests
	Client  *http.Client

	// PollInterval between job status checks. The job itself is bounded by
	// the chain's per-attempt context deadline.
	PollInterval time.Duration
}

func NewSarvam(apiKey string) *Sarvam {
	return &Sarvam{
		APIKey:       apiKey,
		BaseURL:      defaultSarvamBaseURL,
		Client:       &http.Client{Timeout: 60 * time.Second},
		PollInterval: 3 * time.Second,
	}
}

func (s *Sarvam) Name() string { return "sarvam" }

func (s *Sarvam) Attempt(ctx context.Context, data []byte, name string) (string, error) {
	if s.APIKey == "" {
		return "", fmt.Errorf("sarvam API key not configured")
	}
	fileName := filepath.Base(name)

	jobID, err := s.createJob(ctx)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	uploadURL, err := s.uploadURL(ctx, jobID, fileName)
	if err != nil {
		return "", fmt.Errorf("get upload URL: %w", err)
	}

	if err := s.upload(ctx, uploadURL, data); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	if err := s.startJob(ctx, jobID); err != nil {
		return "", fmt.Errorf("start job: %w", err)
	}

	if err := s.awaitCompletion(ctx, jobID); err != nil {
		return "", err
	}

	downloadURL, err := s.downloadURL(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("get download URL: %w", err)
	}

	return s.downloadAndParse(ctx, downloadURL)
}

func (s *Sarvam) request(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("api-subscription-key", s.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.Client.Do(req)
}

func (s *Sarvam) createJob(ctx context.Context) (string, error) {
	resp, err := s.request(ctx, http.MethodPost, s.BaseURL, map[string]interface{}{
		"job_parameters": map[string]string{
			"language":      "en-IN",
			"output_format": "md",
		},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var result struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.JobID == "" {
		return "", fmt.Errorf("response carried no job_id")
	}
	return result.JobID, nil
}

func (s *Sarvam) uploadURL(ctx context.Context, jobID, fileName string) (string, error) {
	resp, err := s.request(ctx, http.MethodPost, s.BaseURL+"/upload-files", map[string]interface{}{
		"job_id": jobID,
		"files":  []string{fileName},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return firstURL(body, "upload_urls")
}

// firstURL digs a presigned URL out of a response whose URL map values may be
// plain strings or nested {"url": ...} objects.
func firstURL(body []byte, key string) (string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	urlsRaw, ok := raw[key]
	if !ok {
		return "", fmt.Errorf("no %s in response", key)
	}

	var simple map[string]string
	if err := json.Unmarshal(urlsRaw, &simple); err == nil {
		for _, u := range simple {
			return u, nil
		}
	}

	var nested map[string]map[string]interface{}
	if err := json.Unmarshal(urlsRaw, &nested); err == nil {
		for _, val := range nested {
			if u, ok := val["url"].(string); ok {
				return u, nil
			}
		}
	}
	return "", fmt.Errorf("could not extract URL from %s", key)
}

func (s *Sarvam) upload(ctx context.Context, uploadURL string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return nil
}

func (s *Sarvam) startJob(ctx context.Context, jobID string) error {
	resp, err := s.request(ctx, http.MethodPost, fmt.Sprintf("%s/%s/start", s.BaseURL, jobID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return nil
}

func (s *Sarvam) awaitCompletion(ctx context.Context, jobID string) error {
	statusURL := fmt.Sprintf("%s/%s/status", s.BaseURL, jobID)
	for {
		resp, err := s.request(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return err
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var status struct {
			JobState     string `json:"job_state"`
			ErrorMessage string `json:"error_message"`
		}
		if err := json.Unmarshal(body, &status); err != nil {
			return fmt.Errorf("parse status: %w", err)
		}

		switch status.JobState {
		case "Completed", "PartiallyCompleted":
			return nil
		case "Failed":
			msg := status.ErrorMessage
			if msg == "" {
				msg = "unknown error"
			}
			return fmt.Errorf("job %s failed: %s", jobID, msg)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.PollInterval):
		}
	}
}

func (s *Sarvam) downloadURL(ctx context.Context, jobID string) (string, error) {
	resp, err := s.request(ctx, http.MethodPost, fmt.Sprintf("%s/%s/download-files", s.BaseURL, jobID), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return firstURL(body, "download_urls")
}

// downloadAndParse fetches the output ZIP and joins its markdown/text pages,
// in filename order, into one plain-text document.
func (s *Sarvam) downloadAndParse(ctx context.Context, downloadURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("download status %d: %s", resp.StatusCode, body)
	}

	zipData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("download body: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return "", fmt.Errorf("open output zip: %w", err)
	}

	type page struct {
		name string
		text string
	}
	var pages []page
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(content)); text != "" {
			pages = append(pages, page{name: f.Name, text: text})
		}
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("output zip contained no text")
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].name < pages[j].name })

	var texts []string
	for _, p := range pages {
		texts = append(texts, stripMarkdown(p.text))
	}
	return strings.Join(texts, "\n"), nil
}

var (
	mdHeaderRe = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdLinkRe   = regexp.MustCompile(`\[([^\]]+)\]\([^\)]+\)`)
)

// stripMarkdown removes basic markdown formatting so the segmenter sees
// plain question text.
func stripMarkdown(text string) string {
	text = mdHeaderRe.ReplaceAllString(text, "")
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "*", "")
	return strings.TrimSpace(text)
}
