package cover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"moodguard/internal/apperr"
	"moodguard/internal/config"
)

// Converter is the remote voice conversion service.
type Converter interface {
	Submit(ctx context.Context, audioPath, model string) (string, error)
	Status(ctx context.Context, jobID string) (Status, error)
	DownloadURL(ctx context.Context, jobID string) (string, error)
}

// HTTPConverter talks to the voice-clone REST API with a bearer key.
type HTTPConverter struct {
	baseURL        string
	submitTimeout  time.Duration
	requestTimeout time.Duration
	HTTPClient     *http.Client
}

func NewHTTPConverter(cfg config.CoverConfig) *HTTPConverter {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"})
	return &HTTPConverter{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		submitTimeout:  time.Duration(cfg.SubmitTimeoutSeconds) * time.Second,
		requestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		HTTPClient:     oauth2.NewClient(context.Background(), src),
	}
}

func (c *HTTPConverter) Submit(ctx context.Context, audioPath, model string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", apperr.E(apperr.Internal, "cover.submit", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.mp3")
	if err != nil {
		return "", apperr.E(apperr.Internal, "cover.submit", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", apperr.E(apperr.Internal, "cover.submit", err)
	}
	if err := mw.WriteField("model", model); err != nil {
		return "", apperr.E(apperr.Internal, "cover.submit", err)
	}
	if err := mw.Close(); err != nil {
		return "", apperr.E(apperr.Internal, "cover.submit", err)
	}

	ctx, cancel := withTimeout(ctx, c.submitTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice-clone/cover", &body)
	if err != nil {
		return "", apperr.E(apperr.Internal, "cover.submit", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(req, &out); err != nil {
		return "", apperr.E(apperr.ExternalService, "cover.submit", err)
	}
	if out.JobID == "" {
		return "", apperr.New(apperr.ExternalService, "cover.submit", "response carried no job id")
	}
	return out.JobID, nil
}

func (c *HTTPConverter) Status(ctx context.Context, jobID string) (Status, error) {
	ctx, cancel := withTimeout(ctx, c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voice-clone/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return StatusFailed, apperr.E(apperr.Internal, "cover.status", err)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(req, &out); err != nil {
		return StatusFailed, apperr.E(apperr.ExternalService, "cover.status", err)
	}
	switch Status(out.Status) {
	case StatusCompleted, StatusFailed, StatusProcessing:
		return Status(out.Status), nil
	case "":
		return StatusFailed, nil
	default:
		return StatusProcessing, nil
	}
}

func (c *HTTPConverter) DownloadURL(ctx context.Context, jobID string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voice-clone/download/"+url.PathEscape(jobID), nil)
	if err != nil {
		return "", apperr.E(apperr.Internal, "cover.download", err)
	}
	var out struct {
		DownloadURL string `json:"download_url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", apperr.E(apperr.ExternalService, "cover.download", err)
	}
	if out.DownloadURL == "" {
		return "", apperr.New(apperr.ExternalService, "cover.download", "response carried no download url")
	}
	return out.DownloadURL, nil
}

func (c *HTTPConverter) do(req *http.Request, out any) error {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
