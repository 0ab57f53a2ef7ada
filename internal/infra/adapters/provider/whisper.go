package provider

import (
	"bytes"
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
)

var _ adapter.TranscriptionProvider = (*whisperAdapter)(nil)

// whisperAdapter drives OpenAI's transcription endpoint through the official
// SDK. The API is synchronous: one call returns the full transcript, so
// Submit short-circuits to a completed result and the poll loop never runs.
type whisperAdapter struct {
	baseURL string // override for tests; empty means api.openai.com
}

func NewWhisperAdapter() *whisperAdapter { return &whisperAdapter{} }

func newWhisperAdapter(baseURL string) *whisperAdapter { return &whisperAdapter{baseURL: baseURL} }

func (w *whisperAdapter) Key() model.ProviderKey { return model.ProviderOpenAIWhisper }
func (w *whisperAdapter) Name() string           { return "OpenAI Whisper" }

func (w *whisperAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		Diarization: false, // no native speaker labels
		Timestamps:  true,
		Confidence:  false,
		Languages:   commonLanguages,
	}
}

func (w *whisperAdapter) client(secret string) openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(secret)}
	if w.baseURL != "" {
		opts = append(opts, option.WithBaseURL(w.baseURL))
	}
	return openai.NewClient(opts...)
}

func (w *whisperAdapter) ValidateCredential(ctx context.Context, secret string) bool {
	client := w.client(secret)
	_, err := client.Models.List(ctx)
	return err == nil
}

// whisperVerbose mirrors the verbose_json transcription payload.
type whisperVerbose struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// whisperUsdPerMinute is OpenAI's published whisper-1 rate.
const whisperUsdPerMinute = 0.006

func (w *whisperAdapter) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	audio, err := fetchAudio(ctx, defaultClient, w.Name(), audioURL)
	if err != nil {
		return adapter.Submission{}, err
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = string(openai.AudioModelWhisper1)
	}
	params := openai.AudioTranscriptionNewParams{
		File:           bytes.NewReader(audio),
		Model:          openai.AudioModel(modelName),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if lang := langOrEmpty(cfg.Language); lang != "" {
		params.Language = openai.String(lang)
	}

	client := w.client(secret)
	var verbose whisperVerbose
	if _, err := client.Audio.Transcriptions.New(ctx, params, option.WithResponseBodyInto(&verbose)); err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return adapter.Submission{}, provErr(w.Name(), "submit", apiErr.StatusCode, err)
		}
		return adapter.Submission{}, netErr(w.Name(), "submit", err)
	}

	t := &model.Transcript{
		FullText: verbose.Text,
		Language: verbose.Language,
	}
	if cfg.EnableTimestamps {
		for _, s := range verbose.Segments {
			t.Segments = append(t.Segments, model.Segment{
				Text:      s.Text,
				StartTime: s.Start,
				EndTime:   s.End,
			})
		}
	}
	t.Normalize()

	return adapter.Submission{
		Transcript: t,
		CostUsd:    verbose.Duration / 60 * whisperUsdPerMinute,
	}, nil
}

func (w *whisperAdapter) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	// Synchronous provider: nothing to poll.
	return adapter.PollState{Status: model.JobStatusCompleted}, nil
}

func (w *whisperAdapter) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	// The transcript is delivered inline by Submit.
	return nil, domain.ErrUnsupportedOperation
}

func (w *whisperAdapter) Cancel(ctx context.Context, externalJobID, secret string) error {
	return domain.ErrUnsupportedOperation
}
