package generation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"alchemist/internal/fileutil"
	"alchemist/internal/language"
	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/stage"
)

const (
	videoScriptTokens  = 600
	videoScriptSeconds = 90
	frameWidth         = 1024
	frameHeight        = 576
	frameSteps         = 30
)

// GenerateVideo narrates content, renders frames, and assembles a video.
// Like images, video is optional: any failure along the way is logged and the
// stage reports SuccessNoWork.
func (g *Generator) GenerateVideo(ctx context.Context, contentID int64) stage.Outcome {
	if g == nil || g.cfg == nil || g.store == nil {
		return stage.Reject("generator not configured",
			services.Wrap(services.ErrConfiguration, "video", "init", "config and store are required", nil))
	}
	if !g.cfg.Video.Enabled || g.llm == nil || g.speech == nil || g.images == nil || g.video == nil {
		return stage.NoWork(contentID, "video generation disabled")
	}
	ctx = services.WithEntityID(ctx, contentID)
	logger := logging.WithContext(ctx, g.logger)

	content, err := g.store.GetContent(ctx, contentID)
	if err != nil {
		return stage.Retry("load content", err)
	}
	if content == nil {
		return stage.Reject("content missing",
			services.Wrap(services.ErrNotFound, "video", "load", fmt.Sprintf("content %d does not exist", contentID), nil))
	}

	skip := func(step string, err error) stage.Outcome {
		if ctx.Err() != nil {
			return stage.Retry(step, ctx.Err())
		}
		logging.WarnWithContext(logger, "video step failed", "video_step_failed",
			logging.String("step", step),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check video.speech_url and the ffmpeg binary"),
			logging.String(logging.FieldImpact, "content is published without a video"),
		)
		return stage.NoWork(contentID, step+" failed")
	}

	script, err := g.llm.Complete(ctx, videoScriptPrompt(language.DisplayName(content.Language), content.Body, videoScriptSeconds),
		videoScriptTokens, 0.5)
	if err != nil {
		return skip("script", err)
	}
	script = strings.TrimSpace(script)
	if script == "" {
		return skip("script", services.Wrap(services.ErrValidation, "video", "script", "model returned an empty script", nil))
	}

	audio, err := g.speech.Synthesize(ctx, script, g.cfg.VoiceFor(content.Language), content.Language)
	if err != nil {
		return skip("narration", err)
	}
	audioPath := filepath.Join(g.cfg.AudioDir(contentID), fmt.Sprintf("%d_narration.mp3", contentID))
	if err := fileutil.WriteFileAtomic(audioPath, audio, 0o644); err != nil {
		return skip("narration", err)
	}

	frames := g.cfg.Video.Frames
	if frames <= 0 {
		frames = 1
	}
	width, height, steps := orDefault(g.cfg.Video.Width, frameWidth), orDefault(g.cfg.Video.Height, frameHeight), orDefault(g.cfg.Video.Steps, frameSteps)
	framePaths := make([]string, 0, frames)
	for i := range frames {
		prompt := fmt.Sprintf("Cinematic still for a video about %s, scene %d of %d", content.Title, i+1, frames)
		path, err := g.renderImage(ctx, prompt, width, height, steps,
			filepath.Join(g.cfg.VideoFramesDir(contentID), fmt.Sprintf("%d_video_frame_%d.png", contentID, i)))
		if err != nil {
			return skip("frames", err)
		}
		if path != "" {
			framePaths = append(framePaths, path)
		}
	}
	if len(framePaths) == 0 {
		return skip("frames", services.Wrap(services.ErrValidation, "video", "frames", "every frame was filtered", nil))
	}

	output := filepath.Join(g.cfg.VideosDir(contentID), fmt.Sprintf("%d_final.mp4", contentID))
	videoPath, err := g.video.Assemble(ctx, framePaths, audioPath, output)
	if err != nil {
		return skip("assemble", err)
	}
	if err := g.store.SetContentMedia(ctx, contentID, audioPath, videoPath); err != nil {
		return stage.Retry("record media", err)
	}
	logger.Info("video generated", logging.String("path", videoPath), logging.Int("frames", len(framePaths)))
	return stage.New(contentID, "video generated")
}

func orDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
