package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// Hosted posts files to an unsigned upload endpoint (Cloudinary style): a multipart form
// with the file and an upload preset, answered by JSON carrying secure_url.
type Hosted struct {
	Endpoint string
	Preset   string
	Client   *http.Client
}

// NewHosted returns a Hosted gateway. A nil client gets a client without a timeout: the
// request lives as long as its context.
func NewHosted(endpoint, preset string, client *http.Client) *Hosted {
	if client == nil {
		client = &http.Client{}
	}
	return &Hosted{Endpoint: endpoint, Preset: preset, Client: client}
}

type hostedResponse struct {
	SecureURL string `json:"secure_url"`
}

// Upload sends f in one attempt. Any non-2xx status is ErrUploadFailed.
func (h *Hosted) Upload(ctx context.Context, f File) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if err := mw.WriteField("upload_preset", h.Preset); err != nil {
		return "", fmt.Errorf("write upload preset: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	var out hostedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUploadFailed, err)
	}
	if out.SecureURL == "" {
		return "", fmt.Errorf("%w: response has no secure_url", ErrUploadFailed)
	}
	return out.SecureURL, nil
}
