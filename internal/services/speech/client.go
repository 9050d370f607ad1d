// Package speech calls a Google-style text-to-speech REST endpoint.
package speech

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"alchemist/internal/services"
	"alchemist/internal/services/httpapi"
)

// Config holds the endpoint settings.
type Config struct {
	URL            string
	APIKey         string
	TimeoutSeconds int
}

// Client synthesizes MP3 narration.
type Client struct {
	cfg  Config
	http *httpapi.Client
}

// NewClient constructs a speech client. A nil httpClient uses the default.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	return &Client{cfg: cfg, http: httpapi.New("speech", time.Duration(cfg.TimeoutSeconds)*time.Second, httpClient)}
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize converts text into MP3 audio bytes.
func (c *Client) Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.URL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "speech", "synthesize", "speech url is not configured", nil)
	}
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "speech", "synthesize", "text is required", nil)
	}
	var payload synthesizeRequest
	payload.Input.Text = text
	payload.Voice.Name = voice
	payload.Voice.LanguageCode = languageCode(voice, lang)
	payload.AudioConfig.AudioEncoding = "MP3"

	headers := map[string]string{}
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		headers["X-Goog-Api-Key"] = key
	}
	var resp synthesizeResponse
	if err := c.http.JSON(ctx, http.MethodPost, c.cfg.URL, "synthesize", headers, payload, &resp); err != nil {
		return nil, err
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "speech", "synthesize", "audio is not base64", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrValidation, "speech", "synthesize", "empty audio", nil)
	}
	return audio, nil
}

// languageCode derives the BCP 47 code from a voice name such as
// "hi-IN-Wavenet-A", falling back to lang with an Indian region.
func languageCode(voice, lang string) string {
	if parts := strings.SplitN(voice, "-", 3); len(parts) == 3 {
		return parts[0] + "-" + parts[1]
	}
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = "en"
	}
	return lang + "-IN"
}
