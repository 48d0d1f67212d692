package synth

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/audifyhq/audify/internal/errs"
)

// OpenAIConfig holds configuration for the OpenAI speech backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default: the public OpenAI endpoint
	Model   string // default: "tts-1"
}

// OpenAISynthesizer generates speech through the OpenAI audio API.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
}

func NewOpenAISynthesizer(cfg OpenAIConfig) *OpenAISynthesizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

func (o *OpenAISynthesizer) Name() string { return "openai-tts" }

func (o *OpenAISynthesizer) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}

	voice := req.Voice
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, errs.Errorf(errs.KindSynthesis, "openai speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, errs.Errorf(errs.KindSynthesis, "read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errs.E(errs.KindSynthesis, fmt.Errorf("empty audio response"))
	}

	return &Result{
		Audio:       audio,
		ContentType: "audio/mpeg",
	}, nil
}
