// Package wordpress publishes posts through the WordPress REST API using an
// application password.
package wordpress

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"alchemist/internal/distribution"
	"alchemist/internal/monetize"
	"alchemist/internal/services"
	"alchemist/internal/services/httpapi"
)

// Config holds the site and credentials.
type Config struct {
	URL            string
	Username       string
	AppPassword    string
	CategoryIDs    []int
	TimeoutSeconds int
}

// Client is a distribution.Target for one WordPress site.
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

// NewClient constructs a WordPress client. URL is the REST root, for
// example https://site.example/wp-json.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	c := &Client{
		cfg:  cfg,
		http: httpapi.New("wordpress", time.Duration(cfg.TimeoutSeconds)*time.Second, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type postRequest struct {
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Status        string            `json:"status"`
	Categories    []int             `json:"categories,omitempty"`
	FeaturedMedia int               `json:"featured_media,omitempty"`
	Lang          string            `json:"lang,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
}

type postResponse struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

// Publish creates a published post.
func (c *Client) Publish(ctx context.Context, post distribution.Post) (distribution.Result, error) {
	if err := c.validate("publish"); err != nil {
		return distribution.Result{}, err
	}
	payload := postRequest{
		Title:      post.Title,
		Content:    monetize.RenderHTML(post.Body),
		Status:     "publish",
		Categories: c.cfg.CategoryIDs,
		Lang:       post.Language,
	}
	if id, err := strconv.Atoi(post.FeaturedMedia); err == nil && id > 0 {
		payload.FeaturedMedia = id
	}
	meta := map[string]string{}
	if post.MetaTitle != "" {
		meta["_yoast_wpseo_title"] = post.MetaTitle
	}
	if post.MetaDescription != "" {
		meta["_yoast_wpseo_metadesc"] = post.MetaDescription
	}
	if len(post.Keywords) > 0 {
		meta["_yoast_wpseo_focuskw"] = post.Keywords[0]
	}
	if len(meta) > 0 {
		payload.Meta = meta
	}

	var resp postResponse
	if err := c.http.JSON(ctx, http.MethodPost, c.cfg.URL+"/wp/v2/posts", "publish", c.authHeader(), payload, &resp); err != nil {
		return distribution.Result{}, err
	}
	if resp.ID == 0 {
		return distribution.Result{}, services.Wrap(services.ErrValidation, "wordpress", "publish", "response missing post id", nil)
	}
	return distribution.Result{ExternalID: strconv.FormatInt(resp.ID, 10), URL: resp.Link}, nil
}

// UploadAsset uploads a local file to the media library and returns its id.
func (c *Client) UploadAsset(ctx context.Context, path string) (string, error) {
	if err := c.validate("upload"); err != nil {
		return "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "wordpress", "upload", "open asset", err)
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/wp/v2/media", file)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "wordpress", "upload", "build request", err)
	}
	if info, statErr := file.Stat(); statErr == nil {
		req.ContentLength = info.Size()
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	req.Header.Set("Accept", "application/json")
	for key, value := range c.authHeader() {
		req.Header.Set(key, value)
	}
	body, err := c.http.Do(req, "upload")
	if err != nil {
		return "", err
	}
	var resp postResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == 0 {
		return "", services.Wrap(services.ErrValidation, "wordpress", "upload", "response missing media id", err)
	}
	return strconv.FormatInt(resp.ID, 10), nil
}

// Verify checks that the credentials authenticate against the site.
func (c *Client) Verify(ctx context.Context) error {
	if err := c.validate("verify"); err != nil {
		return err
	}
	var me struct {
		ID int64 `json:"id"`
	}
	if err := c.http.JSON(ctx, http.MethodGet, c.cfg.URL+"/wp/v2/users/me", "verify", c.authHeader(), nil, &me); err != nil {
		return err
	}
	if me.ID == 0 {
		return services.Wrap(services.ErrValidation, "wordpress", "verify", "response missing user id", nil)
	}
	return nil
}

func (c *Client) validate(op string) error {
	if c.cfg.URL == "" || c.cfg.Username == "" || c.cfg.AppPassword == "" {
		return services.Wrap(services.ErrConfiguration, "wordpress", op, "url, username, and app_password are required", nil)
	}
	return nil
}

func (c *Client) authHeader() map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(c.cfg.Username + ":" + c.cfg.AppPassword))
	return map[string]string{"Authorization": "Basic " + token}
}
