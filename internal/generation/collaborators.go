package generation

import (
	"context"

	"alchemist/internal/services/imagegen"
)

// LLM produces article text, image prompts, and narration scripts.
type LLM interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// ImageRequest describes one image to render.
type ImageRequest = imagegen.Request

// Image is one rendered artifact.
type Image = imagegen.Image

// ImageGenerator renders images from prompts.
type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) ([]Image, error)
}

// SpeechSynthesizer converts a script to audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error)
}

// VideoAssembler combines frames and narration into a video file.
type VideoAssembler interface {
	Assemble(ctx context.Context, images []string, audio, output string) (string, error)
}
