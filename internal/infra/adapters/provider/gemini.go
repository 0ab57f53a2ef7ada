package provider

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
)

var _ adapter.TranscriptionProvider = (*geminiAdapter)(nil)

// geminiAdapter transcribes through the Gemini generate-content API with the
// audio sent inline. Credentials arrive per call, so a fresh SDK client is
// built each time.
type geminiAdapter struct {
	baseURL string
	client  *http.Client
}

func NewGeminiAdapter() *geminiAdapter {
	return &geminiAdapter{client: defaultClient}
}

func newGeminiAdapter(baseURL string, client *http.Client) *geminiAdapter {
	return &geminiAdapter{baseURL: baseURL, client: client}
}

func (g *geminiAdapter) Key() model.ProviderKey { return model.ProviderGoogleGemini }
func (g *geminiAdapter) Name() string           { return "Google Gemini" }

func (g *geminiAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		Diarization: false,
		Timestamps:  false,
		Confidence:  false,
		Languages:   commonLanguages,
	}
}

func (g *geminiAdapter) sdk(ctx context.Context, secret string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  secret,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	if g.client != nil {
		cfg.HTTPClient = g.client
	}
	return genai.NewClient(ctx, cfg)
}

func (g *geminiAdapter) ValidateCredential(ctx context.Context, secret string) bool {
	client, err := g.sdk(ctx, secret)
	if err != nil {
		return false
	}
	_, err = client.Models.Get(ctx, "gemini-2.0-flash", nil)
	return err == nil
}

// classify maps an SDK failure onto the shared taxonomy. The SDK surfaces
// API failures as genai.APIError carrying the HTTP status; anything else is
// a network-level error.
func (g *geminiAdapter) classify(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provErr(g.Name(), op, apiErr.Code, err)
	}
	return netErr(g.Name(), op, err)
}

const geminiTranscribePrompt = "Transcribe this audio recording verbatim. Output only the transcript text, nothing else."

func (g *geminiAdapter) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	audio, err := fetchAudio(ctx, g.client, g.Name(), audioURL)
	if err != nil {
		return adapter.Submission{}, err
	}

	client, err := g.sdk(ctx, secret)
	if err != nil {
		return adapter.Submission{}, netErr(g.Name(), "submit", err)
	}

	modelName := "gemini-2.0-flash"
	if cfg.ModelName != "" {
		modelName = cfg.ModelName
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: geminiTranscribePrompt},
			{InlineData: &genai.Blob{MIMEType: "audio/mpeg", Data: audio}},
		},
	}}
	resp, err := client.Models.GenerateContent(ctx, modelName, contents, nil)
	if err != nil {
		return adapter.Submission{}, g.classify("submit", err)
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		text = resp.Candidates[0].Content.Parts[0].Text
	}
	if text == "" {
		return adapter.Submission{}, provErr(g.Name(), "submit", 0, domain.ErrResultNotReady)
	}

	t := &model.Transcript{FullText: text, Language: langOrEmpty(cfg.Language)}
	t.Normalize()
	return adapter.Submission{Transcript: t}, nil
}

func (g *geminiAdapter) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	return adapter.PollState{Status: model.JobStatusCompleted}, nil
}

func (g *geminiAdapter) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	return nil, domain.ErrUnsupportedOperation
}

func (g *geminiAdapter) Cancel(ctx context.Context, externalJobID, secret string) error {
	return domain.ErrUnsupportedOperation
}
