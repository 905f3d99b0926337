// Package media holds the collaborators around the chat: speech-to-text,
// image generation and document extraction against OpenAI-compatible
// endpoints, plus slide deck generation.
package media

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultTranscriptionModel = "whisper-1"
	DefaultImageModel         = "dall-e-3"
	DefaultImageSize          = "1024x1024"
)

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Imager turns a prompt into the URL of a generated image.
type Imager interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string

	TranscriptionModel string
	ImageModel         string
	ImageSize          string

	// MaxRetries overrides the SDK's retry count when non-nil.
	MaxRetries *int
}

// Client implements Transcriber, Imager and Extractor with the openai-go SDK.
type Client struct {
	client             openai.Client
	transcriptionModel string
	imageModel         string
	imageSize          string
}

// NewClient creates a media client.
func NewClient(c Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.MaxRetries != nil {
		opts = append(opts, option.WithMaxRetries(*c.MaxRetries))
	}

	return &Client{
		client:             openai.NewClient(opts...),
		transcriptionModel: cmp.Or(c.TranscriptionModel, DefaultTranscriptionModel),
		imageModel:         cmp.Or(c.ImageModel, DefaultImageModel),
		imageSize:          cmp.Or(c.ImageSize, DefaultImageSize),
	}
}

// Transcribe uploads audio and returns the recognized text. filename is
// sent with the upload; its extension tells the API the audio format.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}

	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filepath.Base(filename), contentType(filename)),
		Model: openai.AudioModel(c.transcriptionModel),
	})
	if err != nil {
		return "", fmt.Errorf("transcribing %s: %w", filename, err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// Generate requests one image for prompt and returns its URL.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("image prompt is empty")
	}

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(c.imageModel),
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize(c.imageSize),
	})
	if err != nil {
		return "", fmt.Errorf("generating image: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("generating image: response has no image url")
	}
	return resp.Data[0].URL, nil
}

func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}

