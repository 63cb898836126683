package stt

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"lark/pkg/audioconv"
)

type OpenAIConfig struct {
	APIKey     string
	Model      string // defaults to whisper-1
	Language   string // optional ISO-639-1 hint
	HTTPClient *http.Client

	// extra client options, e.g. option.WithBaseURL in tests
	Options []option.RequestOption
}

// OpenAI sends utterances to the OpenAI transcription endpoint.
type OpenAI struct {
	client   openai.Client
	model    string
	language string
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	opts = append(opts, cfg.Options...)

	model := cfg.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}

	return &OpenAI{
		client:   openai.NewClient(opts...),
		model:    model,
		language: cfg.Language,
	}, nil
}

func (o *OpenAI) Recognize(ctx context.Context, pcm16k []float32) (string, error) {
	if len(pcm16k) < MinSamples {
		return "", ErrNoSpeech
	}

	wav, err := audioconv.EncodeWAV(pcm16k, audioconv.TargetRate)
	if err != nil {
		return "", err
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: openai.AudioModel(o.model),
	}
	if o.language != "" && o.language != "auto" {
		params.Language = openai.String(o.language)
	}

	res, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", &BackendError{Backend: "openai", Err: err}
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", ErrNoSpeech
	}

	return text, nil
}
