// Package video assembles narrated slideshows with ffmpeg.
package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"alchemist/internal/services"
)

const (
	defaultFPS          = 24
	defaultFrameSeconds = 6
)

var commandContext = exec.CommandContext

// Assembler renders still frames and one audio track into an MP4.
type Assembler struct {
	Binary       string
	FPS          int
	Width        int
	Height       int
	FrameSeconds int
}

// NewAssembler returns an assembler for the ffmpeg binary.
func NewAssembler(binary string, fps, width, height int) *Assembler {
	return &Assembler{Binary: binary, FPS: fps, Width: width, Height: height, FrameSeconds: defaultFrameSeconds}
}

// Assemble writes output from images shown in order over audio. The last
// frame is held until the narration ends.
func (a *Assembler) Assemble(ctx context.Context, images []string, audio, output string) (string, error) {
	if len(images) == 0 {
		return "", services.Wrap(services.ErrValidation, "video", "assemble", "at least one frame is required", nil)
	}
	if strings.TrimSpace(audio) == "" {
		return "", services.Wrap(services.ErrValidation, "video", "assemble", "audio track is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "video", "assemble", "create output directory", err)
	}

	listPath := output + ".frames.txt"
	if err := os.WriteFile(listPath, []byte(a.concatList(images)), 0o644); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "video", "assemble", "write frame list", err)
	}
	defer os.Remove(listPath)

	cmd := commandContext(ctx, a.binary(), a.args(listPath, audio, output)...) //nolint:gosec
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "video", "ffmpeg",
			fmt.Sprintf("assemble failed: %s", strings.TrimSpace(string(out))), err)
	}
	if info, err := os.Stat(output); err != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrExternalTool, "video", "ffmpeg", "no output produced", err)
	}
	return output, nil
}

func (a *Assembler) binary() string {
	if bin := strings.TrimSpace(a.Binary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

func (a *Assembler) concatList(images []string) string {
	seconds := a.FrameSeconds
	if seconds <= 0 {
		seconds = defaultFrameSeconds
	}
	var b strings.Builder
	for _, img := range images {
		fmt.Fprintf(&b, "file '%s'\nduration %d\n", strings.ReplaceAll(img, "'", `'\''`), seconds)
	}
	// The concat demuxer ignores the last duration unless the file repeats.
	fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(images[len(images)-1], "'", `'\''`))
	return b.String()
}

func (a *Assembler) args(listPath, audio, output string) []string {
	fps := a.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	filters := []string{fmt.Sprintf("fps=%d", fps)}
	if a.Width > 0 && a.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
			a.Width, a.Height, a.Width, a.Height))
	}
	filters = append(filters, "format=yuv420p", "tpad=stop_mode=clone:stop=-1")
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", audio,
		"-vf", strings.Join(filters, ","),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-shortest",
		output,
	}
}
