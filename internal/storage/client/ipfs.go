// Package client talks to an IPFS pinning endpoint over its HTTP API. Only
// the add endpoint is used; reads go through the public gateway.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// IPFS is a minimal client for the /api/v0/add endpoint of an IPFS node or
// a hosted pinning service. Project credentials are sent as basic auth when
// configured, matching hosted providers.
type IPFS struct {
	apiURL        string
	projectID     string
	projectSecret string
	gateway       string
	http          *http.Client
}

func NewIPFS(apiURL, projectID, projectSecret, gateway string) *IPFS {
	return &IPFS{
		apiURL:        strings.TrimSuffix(apiURL, "/"),
		projectID:     projectID,
		projectSecret: projectSecret,
		gateway:       gateway,
		http:          &http.Client{Timeout: 60 * time.Second},
	}
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Add pins the given bytes and returns their content identifier.
func (c *IPFS) Add(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build multipart form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("build multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v0/add", &body)
	if err != nil {
		return "", fmt.Errorf("build add request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.projectID != "" {
		req.SetBasicAuth(c.projectID, c.projectSecret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipfs add: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ipfs add: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed addResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ipfs add: decode response: %w", err)
	}
	if parsed.Hash == "" {
		return "", fmt.Errorf("ipfs add: response carries no hash")
	}
	return parsed.Hash, nil
}

// GatewayURL returns the public gateway address for a content identifier.
func (c *IPFS) GatewayURL(hash string) string {
	return c.gateway + hash
}
