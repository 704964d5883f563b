package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// BlobDescriptor is the BUD-02 response of a blossom server.
type BlobDescriptor struct {
	URL      string `json:"url"`
	SHA256   string `json:"sha256"`
	Size     int64  `json:"size"`
	Type     string `json:"type,omitempty"`
	Uploaded int64  `json:"uploaded,omitempty"`
}

// UploadBlob stores data on server. authorization is a signed kind 24242
// header value.
func (c *Client) UploadBlob(ctx context.Context, server string, data []byte, mimeType, authorization string) (BlobDescriptor, error) {
	endpoint := strings.TrimSuffix(server, "/") + "/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return BlobDescriptor{}, fmt.Errorf("failed to create request: %v", err)
	}
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	req.ContentLength = int64(len(data))

	resp, err := c.client.Do(req)
	if err != nil {
		return BlobDescriptor{}, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		reason := resp.Header.Get("X-Reason")
		if reason == "" {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			reason = strings.TrimSpace(string(body))
		}
		return BlobDescriptor{}, fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, reason)
	}

	var desc BlobDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return BlobDescriptor{}, fmt.Errorf("failed to decode blob descriptor: %v", err)
	}
	return desc, nil
}

// HasBlob reports whether server already stores the blob with hash.
func (c *Client) HasBlob(ctx context.Context, server, hash string) (bool, error) {
	endpoint := strings.TrimSuffix(server, "/") + "/" + hash
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to perform request: %v", err)
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// BlobURL is where server serves the blob with hash.
func BlobURL(server, hash, ext string) string {
	return strings.TrimSuffix(server, "/") + "/" + hash + ext
}
