package generation

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"alchemist/internal/fileutil"
	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/services/llm"
	"alchemist/internal/stage"
)

const imagePromptTokens = 800

type imagePrompt struct {
	Concept string `json:"concept"`
	Prompt  string `json:"prompt"`
}

// GenerateImages renders illustrations for content and records their paths.
// Images are an optional enhancement: a disabled stage, a failed render, or a
// filtered artifact is logged and the outcome stays successful.
func (g *Generator) GenerateImages(ctx context.Context, contentID int64) stage.Outcome {
	if g == nil || g.cfg == nil || g.store == nil {
		return stage.Reject("generator not configured",
			services.Wrap(services.ErrConfiguration, "images", "init", "config and store are required", nil))
	}
	if !g.cfg.Images.Enabled || g.images == nil {
		return stage.NoWork(contentID, "image generation disabled")
	}
	ctx = services.WithEntityID(ctx, contentID)
	logger := logging.WithContext(ctx, g.logger)

	content, err := g.store.GetContent(ctx, contentID)
	if err != nil {
		return stage.Retry("load content", err)
	}
	if content == nil {
		return stage.Reject("content missing",
			services.Wrap(services.ErrNotFound, "images", "load", fmt.Sprintf("content %d does not exist", contentID), nil))
	}

	prompts := g.imagePrompts(ctx, content.Title, content.Body)
	limit := g.cfg.Images.MaxImages
	if limit > 0 && len(prompts) > limit {
		prompts = prompts[:limit]
	}

	paths := make([]string, 0, len(prompts))
	for i, prompt := range prompts {
		path, err := g.renderImage(ctx, prompt, g.cfg.Images.Width, g.cfg.Images.Height, g.cfg.Images.Steps,
			filepath.Join(g.cfg.ImagesDir(contentID), fmt.Sprintf("%d_img_%d_%s.png", contentID, i, promptDigest(prompt))))
		if err != nil {
			if ctx.Err() != nil {
				return stage.Retry("render image", ctx.Err())
			}
			logging.WarnWithContext(logger, "image render failed", "image_render_failed",
				logging.Int("index", i),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check images.base_url and the image service quota"),
				logging.String(logging.FieldImpact, "content is published without this illustration"),
			)
			continue
		}
		if path != "" {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return stage.NoWork(contentID, "no images rendered")
	}
	if err := g.store.AddContentImages(ctx, contentID, paths...); err != nil {
		return stage.Retry("record images", err)
	}
	logger.Info("images generated", logging.Int("count", len(paths)))
	return stage.New(contentID, fmt.Sprintf("%d images generated", len(paths)))
}

// imagePrompts asks the model for illustration prompts. A failed or malformed
// answer falls back to one prompt built from the title.
func (g *Generator) imagePrompts(ctx context.Context, title, body string) []string {
	fallback := []string{fmt.Sprintf("Professional illustration for an article about %s", strings.TrimSpace(title))}
	if g.llm == nil {
		return fallback
	}
	raw, err := g.llm.Complete(ctx, imagePromptsPrompt(body), imagePromptTokens, 0.5)
	if err != nil {
		g.logger.Debug("image prompt request failed", logging.Error(err))
		return fallback
	}
	var decoded []imagePrompt
	if err := llm.DecodeLLMJSON(raw, &decoded); err != nil {
		g.logger.Debug("image prompts malformed", logging.Error(err))
		return fallback
	}
	prompts := make([]string, 0, len(decoded))
	for _, item := range decoded {
		if p := strings.TrimSpace(item.Prompt); p != "" {
			prompts = append(prompts, p)
		}
	}
	if len(prompts) == 0 {
		return fallback
	}
	return prompts
}

// renderImage writes the first unfiltered artifact to path. It returns an
// empty path when every artifact was filtered.
func (g *Generator) renderImage(ctx context.Context, prompt string, width, height, steps int, path string) (string, error) {
	artifacts, err := g.images.Generate(ctx, ImageRequest{Prompt: prompt, Width: width, Height: height, Steps: steps})
	if err != nil {
		return "", err
	}
	for _, artifact := range artifacts {
		if artifact.Filtered || len(artifact.Data) == 0 {
			continue
		}
		if err := fileutil.WriteFileAtomic(path, artifact.Data, 0o644); err != nil {
			return "", services.Wrap(services.ErrTransient, "images", "write", "store image", err)
		}
		return path, nil
	}
	g.logger.Info("image filtered by provider", logging.String("prompt", prompt))
	return "", nil
}

func promptDigest(prompt string) string {
	sum := md5.Sum([]byte(prompt))
	return hex.EncodeToString(sum[:])[:8]
}
