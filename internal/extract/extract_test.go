package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var longText = strings.Repeat("What is the constitutional basis of judicial review in India? ", 4)

type fakeStrategy struct {
	name  string
	text  string
	err   error
	calls int32
	block bool // wait for ctx cancellation instead of returning
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Attempt(ctx context.Context, data []byte, name string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

// ========== Chain ==========

func TestChain_AdequateNativeSkipsProviders(t *testing.T) {
	native := &fakeStrategy{name: "native", text: longText}
	p1 := &fakeStrategy{name: "p1"}
	p2 := &fakeStrategy{name: "p2"}

	res := NewChain(native, p1, p2).Extract(context.Background(), []byte("doc"), "a.pdf")
	if !res.Adequate || res.Method != "native" {
		t.Errorf("result = %+v, want adequate native", res)
	}
	if p1.calls != 0 || p2.calls != 0 {
		t.Errorf("providers called %d/%d times, want zero OCR calls", p1.calls, p2.calls)
	}
}

func TestChain_InadequateNativeTriesEveryProviderInOrder(t *testing.T) {
	native := &fakeStrategy{name: "native", text: "too short"}
	p1 := &fakeStrategy{name: "p1", err: fmt.Errorf("unavailable")}
	p2 := &fakeStrategy{name: "p2", text: "still too short"}
	p3 := &fakeStrategy{name: "p3", text: longText}

	res := NewChain(native, p1, p2, p3).Extract(context.Background(), []byte("doc"), "a.pdf")
	if !res.Adequate || res.Method != "p3" {
		t.Errorf("result = %+v, want adequate p3", res)
	}
	for _, p := range []*fakeStrategy{p1, p2, p3} {
		if p.calls != 1 {
			t.Errorf("provider %s called %d times, want 1", p.name, p.calls)
		}
	}
}

func TestChain_ExhaustedWaterfallReturnsNone(t *testing.T) {
	native := &fakeStrategy{name: "native", text: ""}
	p1 := &fakeStrategy{name: "p1", err: fmt.Errorf("down")}
	p2 := &fakeStrategy{name: "p2", text: "short"}

	res := NewChain(native, p1, p2).Extract(context.Background(), []byte("doc"), "a.pdf")
	if res.Adequate || res.Method != MethodNone || res.Text != "" {
		t.Errorf("result = %+v, want empty none/inadequate", res)
	}
	if p1.calls != 1 || p2.calls != 1 {
		t.Errorf("every provider must be attempted before declaring none, got %d/%d", p1.calls, p2.calls)
	}
}

func TestChain_OversizedDocumentSkipsOCR(t *testing.T) {
	native := &fakeStrategy{name: "native", text: "faint text layer"}
	p1 := &fakeStrategy{name: "p1", text: longText}

	chain := NewChain(native, p1)
	chain.MaxOCRBytes = 8
	res := chain.Extract(context.Background(), []byte("this exceeds the ceiling"), "big.pdf")

	if p1.calls != 0 {
		t.Errorf("oversized documents must not escalate to OCR, provider called %d times", p1.calls)
	}
	if res.Adequate {
		t.Error("inadequate native output must stay inadequate")
	}
	if res.Method != "native" || res.Text != "faint text layer" {
		t.Errorf("result = %+v, want native-only output", res)
	}
}

func TestChain_SlowProviderTimedOutIndividually(t *testing.T) {
	native := &fakeStrategy{name: "native", text: ""}
	slow := &fakeStrategy{name: "slow", block: true}
	good := &fakeStrategy{name: "good", text: longText}

	chain := NewChain(native, slow, good)
	chain.AttemptTimeout = 20 * time.Millisecond

	start := time.Now()
	res := chain.Extract(context.Background(), []byte("doc"), "a.pdf")
	if time.Since(start) > 2*time.Second {
		t.Fatal("a hung provider must not block the waterfall")
	}
	if !res.Adequate || res.Method != "good" {
		t.Errorf("result = %+v, want the next provider to succeed", res)
	}
}

// ========== Adequate ==========

func TestAdequate_Threshold(t *testing.T) {
	if Adequate("short") {
		t.Error("short text should be inadequate")
	}
	if !Adequate(longText) {
		t.Error("long text should be adequate")
	}
	// Whitespace padding must not fake adequacy.
	if Adequate("a" + strings.Repeat(" \n\t", 200)) {
		t.Error("whitespace-padded text should be inadequate")
	}
}

// ========== Native ==========

func TestNative_HTMLBlockText(t *testing.T) {
	html := `<html><body>
	<script>ignore();</script>
	<h1>Mains 2021 GS Paper II</h1>
	<p>1. What are the constitutional limitations on the legislative powers of states?</p>
	<p>2. How does the collegium system affect judicial appointments in practice?</p>
	</body></html>`

	text, err := Native{}.Attempt(context.Background(), []byte(html), "paper.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(text, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (heading + 2 questions): %q", len(lines), text)
	}
	if strings.Contains(text, "ignore()") {
		t.Error("script content must be stripped")
	}
	if !strings.HasPrefix(lines[1], "1.") || !strings.HasPrefix(lines[2], "2.") {
		t.Errorf("question lines lost their markers: %q", lines)
	}
}

func TestNative_GarbledPDFReportsError(t *testing.T) {
	_, err := Native{}.Attempt(context.Background(), []byte("%PDF-1.7 not really a pdf"), "bad.pdf")
	if err == nil {
		t.Error("expected an error for a garbled PDF body")
	}
}

// ========== Sarvam ==========

func sarvamZip(t *testing.T, pages map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range pages {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	zw.Close()
	return buf.Bytes()
}

func TestSarvam_FullHandshake(t *testing.T) {
	var statusCalls int32
	var uploaded []byte

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /{$}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-1"})
	})
	mux.HandleFunc("POST /upload-files", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JobID string   `json:"job_id"`
			Files []string `json:"files"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.JobID != "job-1" || len(req.Files) != 1 {
			t.Errorf("upload-files request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]map[string]string{
			"upload_urls": {req.Files[0]: srv.URL + "/blob"},
		})
	})
	mux.HandleFunc("PUT /blob", func(w http.ResponseWriter, r *http.Request) {
		uploaded, _ = io.ReadAll(r.Body)
	})
	mux.HandleFunc("POST /job-1/start", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("GET /job-1/status", func(w http.ResponseWriter, r *http.Request) {
		state := "Processing"
		if atomic.AddInt32(&statusCalls, 1) >= 2 {
			state = "Completed"
		}
		json.NewEncoder(w).Encode(map[string]string{"job_state": state})
	})
	mux.HandleFunc("POST /job-1/download-files", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]map[string]string{
			"download_urls": {"out.zip": srv.URL + "/output.zip"},
		})
	})
	zipBytes := sarvamZip(t, map[string]string{
		"page_001.md": "# Page 1\n\n**1.** What is the basic structure doctrine?",
		"page_002.md": "**2.** Explain the anti-defection law?",
	})
	mux.HandleFunc("GET /output.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	s := NewSarvam("test-key")
	s.BaseURL = srv.URL
	s.PollInterval = time.Millisecond

	text, err := s.Attempt(context.Background(), []byte("pdf-bytes"), "https://upsc.gov.in/GS-2-2023.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(uploaded) != "pdf-bytes" {
		t.Errorf("uploaded body = %q, want the document bytes", uploaded)
	}
	if !strings.Contains(text, "1. What is the basic structure doctrine?") {
		t.Errorf("markdown not stripped: %q", text)
	}
	if !strings.Contains(text, "2. Explain the anti-defection law?") {
		t.Errorf("second page missing: %q", text)
	}
	if atomic.LoadInt32(&statusCalls) < 2 {
		t.Errorf("status polled %d times, want at least 2", statusCalls)
	}
}

func TestSarvam_FailedJob(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-2"})
	})
	var srv *httptest.Server
	mux.HandleFunc("POST /upload-files", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]map[string]string{
			"upload_urls": {"a.pdf": srv.URL + "/blob"},
		})
	})
	mux.HandleFunc("PUT /blob", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("POST /job-2/start", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("{}")) })
	mux.HandleFunc("GET /job-2/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"job_state": "Failed", "error_message": "unreadable scan"})
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	s := NewSarvam("test-key")
	s.BaseURL = srv.URL
	s.PollInterval = time.Millisecond

	_, err := s.Attempt(context.Background(), []byte("pdf"), "a.pdf")
	if err == nil || !strings.Contains(err.Error(), "unreadable scan") {
		t.Errorf("expected the job failure message, got %v", err)
	}
}

func TestSarvam_NoKey(t *testing.T) {
	s := NewSarvam("")
	if _, err := s.Attempt(context.Background(), []byte("pdf"), "a.pdf"); err == nil {
		t.Error("expected error without an API key")
	}
}

// ========== firstURL ==========

func TestFirstURL_NestedShape(t *testing.T) {
	body := []byte(`{"upload_urls": {"a.pdf": {"url": "https://blob.example/x", "headers": {}}}}`)
	got, err := firstURL(body, "upload_urls")
	if err != nil || got != "https://blob.example/x" {
		t.Errorf("firstURL = %q, %v", got, err)
	}
}

// ========== HFOCR ==========

func TestHFOCR_GeneratedTextShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer hf-key" {
			t.Errorf("auth header = %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]string{{"generated_text": "1. What is a writ?"}})
	}))
	defer srv.Close()

	h := NewHFOCR("hf-key", "some/model")
	h.BaseURL = srv.URL

	text, err := h.Attempt(context.Background(), []byte("img"), "a.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "1. What is a writ?" {
		t.Errorf("text = %q", text)
	}
}

func TestParseHFText_Shapes(t *testing.T) {
	if got, err := parseHFText([]byte(`{"text": "hello there"}`)); err != nil || got != "hello there" {
		t.Errorf("object shape: %q, %v", got, err)
	}
	if _, err := parseHFText([]byte(`"nonsense"`)); err == nil {
		t.Error("unrecognized shapes should error")
	}
}
