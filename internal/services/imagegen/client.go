// Package imagegen calls a Stability-style text-to-image REST endpoint.
package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"alchemist/internal/services"
	"alchemist/internal/services/httpapi"
)

const (
	defaultCFGScale = 7.0
	finishFiltered  = "CONTENT_FILTERED"
)

// Request describes one image to render.
type Request struct {
	Prompt string
	Width  int
	Height int
	Steps  int
	Seed   uint32
}

// Image is one returned artifact. Filtered artifacts carry no data.
type Image struct {
	Data     []byte
	Seed     uint32
	Filtered bool
}

// Config holds the endpoint settings.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Client renders images.
type Client struct {
	cfg  Config
	http *httpapi.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http.HTTP = client
		}
	}
}

// NewClient constructs an image client.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:  cfg,
		http: httpapi.New("imagegen", time.Duration(cfg.TimeoutSeconds)*time.Second, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type textPrompt struct {
	Text string `json:"text"`
}

type generateRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Steps       int          `json:"steps"`
	CFGScale    float64      `json:"cfg_scale"`
	Samples     int          `json:"samples"`
	Seed        uint32       `json:"seed,omitempty"`
}

type generateResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		Seed         uint32 `json:"seed"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
}

// Generate renders req and returns every artifact, filtered ones included.
func (c *Client) Generate(ctx context.Context, req Request) ([]Image, error) {
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "imagegen", "generate", "base url is not configured", nil)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, services.Wrap(services.ErrValidation, "imagegen", "generate", "prompt is required", nil)
	}
	payload := generateRequest{
		TextPrompts: []textPrompt{{Text: req.Prompt}},
		Width:       req.Width,
		Height:      req.Height,
		Steps:       req.Steps,
		CFGScale:    defaultCFGScale,
		Samples:     1,
		Seed:        req.Seed,
	}
	headers := map[string]string{}
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		headers["Authorization"] = "Bearer " + key
	}
	var resp generateResponse
	if err := c.http.JSON(ctx, http.MethodPost, c.cfg.BaseURL, "generate", headers, payload, &resp); err != nil {
		return nil, err
	}
	images := make([]Image, 0, len(resp.Artifacts))
	for i, artifact := range resp.Artifacts {
		if artifact.FinishReason == finishFiltered {
			images = append(images, Image{Seed: artifact.Seed, Filtered: true})
			continue
		}
		data, err := base64.StdEncoding.DecodeString(artifact.Base64)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "imagegen", "generate", fmt.Sprintf("artifact %d is not base64", i), err)
		}
		images = append(images, Image{Data: data, Seed: artifact.Seed})
	}
	return images, nil
}
