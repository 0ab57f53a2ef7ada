package provider

import (
	"context"
	"net/http"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
)

var _ adapter.TranscriptionProvider = (*openRouterAdapter)(nil)

// openRouterAdapter speaks the OpenAI-compatible transcription surface that
// OpenRouter exposes. Plain text out, no segment data.
type openRouterAdapter struct {
	baseURL string
	client  *http.Client
}

func NewOpenRouterAdapter() *openRouterAdapter {
	return &openRouterAdapter{baseURL: "https://openrouter.ai", client: defaultClient}
}

func newOpenRouterAdapter(baseURL string, client *http.Client) *openRouterAdapter {
	return &openRouterAdapter{baseURL: baseURL, client: client}
}

func (o *openRouterAdapter) Key() model.ProviderKey { return model.ProviderOpenRouter }
func (o *openRouterAdapter) Name() string           { return "OpenRouter" }

func (o *openRouterAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		Diarization: false,
		Timestamps:  false,
		Confidence:  false,
		Languages:   commonLanguages,
	}
}

func (o *openRouterAdapter) ValidateCredential(ctx context.Context, secret string) bool {
	var out struct {
		Data struct {
			Label string `json:"label"`
		} `json:"data"`
	}
	err := doJSON(ctx, o.client, o.Name(), "validate", http.MethodGet, o.baseURL+"/api/v1/key",
		map[string]string{"Authorization": "Bearer " + secret}, nil, &out)
	return err == nil
}

func (o *openRouterAdapter) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	audio, err := fetchAudio(ctx, o.client, o.Name(), audioURL)
	if err != nil {
		return adapter.Submission{}, err
	}

	fields := map[string]string{"model": "openai/whisper-1"}
	if cfg.ModelName != "" {
		fields["model"] = cfg.ModelName
	}
	if lang := langOrEmpty(cfg.Language); lang != "" {
		fields["language"] = lang
	}

	body, contentType, err := multipartAudio("file", "audio.mp3", audio, fields)
	if err != nil {
		return adapter.Submission{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/v1/audio/transcriptions", body)
	if err != nil {
		return adapter.Submission{}, err
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("Content-Type", contentType)

	resp, err := o.client.Do(req)
	if err != nil {
		return adapter.Submission{}, netErr(o.Name(), "submit", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return adapter.Submission{}, provErr(o.Name(), "submit", resp.StatusCode, nil)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := decodeBody(resp, &out); err != nil {
		return adapter.Submission{}, provErr(o.Name(), "submit", resp.StatusCode, err)
	}

	t := &model.Transcript{FullText: out.Text, Language: langOrEmpty(cfg.Language)}
	t.Normalize()
	return adapter.Submission{Transcript: t}, nil
}

func (o *openRouterAdapter) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	return adapter.PollState{Status: model.JobStatusCompleted}, nil
}

func (o *openRouterAdapter) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	return nil, domain.ErrUnsupportedOperation
}

func (o *openRouterAdapter) Cancel(ctx context.Context, externalJobID, secret string) error {
	return domain.ErrUnsupportedOperation
}
