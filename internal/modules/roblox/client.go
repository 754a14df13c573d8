package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"moodguard/internal/apperr"
	"moodguard/internal/config"
)

// Client calls the Roblox Open Cloud endpoints for one universe.
type Client struct {
	baseURL    string
	universeID string
	configured bool
	timeout    time.Duration
	limiter    *rate.Limiter
	HTTPClient *http.Client
}

// apiKeyTransport stamps the Open Cloud key on every request.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("x-api-key", t.key)
	return t.base.RoundTrip(clone)
}

func NewClient(cfg config.RobloxConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		universeID: cfg.UniverseID,
		configured: cfg.APIKey != "" || cfg.AccessToken != "",
		timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
	if cfg.AccessToken != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
		c.HTTPClient = oauth2.NewClient(context.Background(), src)
	} else {
		c.HTTPClient = &http.Client{Transport: apiKeyTransport{key: cfg.APIKey, base: http.DefaultTransport}}
	}
	return c
}

type assetRequest struct {
	AssetType   string `json:"assetType"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

// UploadAsset creates a Model asset from data and returns its id, or the operation path
// when the asset is still being processed.
func (c *Client) UploadAsset(ctx context.Context, data []byte, filename string) (string, error) {
	meta, err := json.Marshal(assetRequest{AssetType: "Model", DisplayName: "Discord Upload", Description: "Uploaded via bot"})
	if err != nil {
		return "", apperr.E(apperr.Internal, "roblox.upload", err)
	}
	body, contentType, err := multipartBody(map[string]string{"request": string(meta)}, "fileContent", filename, data)
	if err != nil {
		return "", apperr.E(apperr.Internal, "roblox.upload", err)
	}

	var out struct {
		AssetID json.Number `json:"assetId"`
		Path    string      `json:"path"`
	}
	if err := c.send(ctx, http.MethodPost, "/assets/v1/assets", nil, body, contentType, &out); err != nil {
		return "", apperr.E(apperr.ExternalService, "roblox.upload", err)
	}
	if id := out.AssetID.String(); id != "" {
		return id, nil
	}
	if out.Path != "" {
		return out.Path, nil
	}
	return "", apperr.New(apperr.ExternalService, "roblox.upload", "response carried no asset id")
}

// Publish uploads a place file as the new published version of placeID.
func (c *Client) Publish(ctx context.Context, placeID string, data []byte) error {
	body, contentType, err := multipartBody(map[string]string{"versionType": "Published"}, "file", "place.rbxl", data)
	if err != nil {
		return apperr.E(apperr.Internal, "roblox.publish", err)
	}
	path := fmt.Sprintf("/universes/v1/%s/places/%s/versions", url.PathEscape(c.universeID), url.PathEscape(placeID))
	if err := c.send(ctx, http.MethodPost, path, nil, body, contentType, nil); err != nil {
		return apperr.E(apperr.ExternalService, "roblox.publish", err)
	}
	return nil
}

func (c *Client) entryPath() string {
	return fmt.Sprintf("/datastores/v1/universes/%s/standard-datastores/datastore/entries/entry", url.PathEscape(c.universeID))
}

// GetEntry reads one standard datastore entry. A JSON object with a "value" field is
// unwrapped; anything else is returned as sent.
func (c *Client) GetEntry(ctx context.Context, store, key string) (string, error) {
	query := url.Values{"datastoreName": {store}, "entryKey": {key}}
	var raw json.RawMessage
	if err := c.send(ctx, http.MethodGet, c.entryPath(), query, nil, "", &raw); err != nil {
		return "", apperr.E(apperr.ExternalService, "roblox.datastore", err)
	}
	var wrapped struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Value) > 0 {
		raw = wrapped.Value
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	return strings.TrimSpace(string(raw)), nil
}

func (c *Client) SetEntry(ctx context.Context, store, key, value string) error {
	payload, err := json.Marshal(map[string]string{"value": value})
	if err != nil {
		return apperr.E(apperr.Internal, "roblox.datastore", err)
	}
	query := url.Values{"datastoreName": {store}, "entryKey": {key}}
	if err := c.send(ctx, http.MethodPost, c.entryPath(), query, payload, "application/json", nil); err != nil {
		return apperr.E(apperr.ExternalService, "roblox.datastore", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, out any) error {
	if !c.configured {
		return fmt.Errorf("roblox credentials not configured")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func multipartBody(fields map[string]string, fileField, filename string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	fw, err := mw.CreateFormFile(fileField, filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// Download fetches an attachment, refusing anything larger than limit bytes.
func Download(ctx context.Context, client *http.Client, rawURL string, limit int64) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.E(apperr.Validation, "roblox.download", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.E(apperr.ExternalService, "roblox.download", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.ExternalService, "roblox.download", "failed to download your file")
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, apperr.E(apperr.ExternalService, "roblox.download", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
