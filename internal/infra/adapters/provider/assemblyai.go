package provider

import (
	"context"
	"fmt"
	"net/http"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
)

var _ adapter.TranscriptionProvider = (*assemblyAIAdapter)(nil)

// assemblyAIAdapter talks to AssemblyAI's asynchronous transcript API:
// submit a URL, poll the transcript resource until it leaves queued/processing.
type assemblyAIAdapter struct {
	baseURL string
	client  *http.Client
}

func NewAssemblyAIAdapter() *assemblyAIAdapter {
	return &assemblyAIAdapter{baseURL: "https://api.assemblyai.com", client: defaultClient}
}

func newAssemblyAIAdapter(baseURL string, client *http.Client) *assemblyAIAdapter {
	return &assemblyAIAdapter{baseURL: baseURL, client: client}
}

func (a *assemblyAIAdapter) Key() model.ProviderKey { return model.ProviderAssemblyAI }
func (a *assemblyAIAdapter) Name() string           { return "AssemblyAI" }

func (a *assemblyAIAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		Diarization: true,
		Timestamps:  true,
		Confidence:  true,
		Languages:   commonLanguages,
	}
}

func (a *assemblyAIAdapter) headers(secret string) map[string]string {
	return map[string]string{"Authorization": secret}
}

func (a *assemblyAIAdapter) ValidateCredential(ctx context.Context, secret string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/transcript?limit=1", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", secret)
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden
}

type assemblyTranscript struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"` // queued | processing | completed | error
	Error        string   `json:"error"`
	Text         string   `json:"text"`
	LanguageCode string   `json:"language_code"`
	Confidence   *float64 `json:"confidence"`
	Words        []struct {
		Text       string   `json:"text"`
		Start      int64    `json:"start"` // ms
		End        int64    `json:"end"`
		Confidence *float64 `json:"confidence"`
		Speaker    string   `json:"speaker"`
	} `json:"words"`
	Utterances []struct {
		Text       string   `json:"text"`
		Start      int64    `json:"start"`
		End        int64    `json:"end"`
		Confidence *float64 `json:"confidence"`
		Speaker    string   `json:"speaker"`
	} `json:"utterances"`
}

func (a *assemblyAIAdapter) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	body := map[string]interface{}{
		"audio_url":      audioURL,
		"speaker_labels": cfg.EnableDiarization,
		"punctuate":      true,
		"format_text":    true,
	}
	if lang := langOrEmpty(cfg.Language); lang != "" {
		body["language_code"] = lang
	}

	var out assemblyTranscript
	if err := doJSON(ctx, a.client, a.Name(), "submit", http.MethodPost,
		a.baseURL+"/v2/transcript", a.headers(secret), body, &out); err != nil {
		return adapter.Submission{}, err
	}
	return adapter.Submission{ExternalJobID: out.ID}, nil
}

func (a *assemblyAIAdapter) get(ctx context.Context, externalJobID, secret string) (*assemblyTranscript, error) {
	var out assemblyTranscript
	err := doJSON(ctx, a.client, a.Name(), "poll", http.MethodGet,
		a.baseURL+"/v2/transcript/"+externalJobID, a.headers(secret), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *assemblyAIAdapter) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	tr, err := a.get(ctx, externalJobID, secret)
	if err != nil {
		return adapter.PollState{}, err
	}
	switch tr.Status {
	case "completed":
		return adapter.PollState{Status: model.JobStatusCompleted}, nil
	case "error":
		return adapter.PollState{Status: model.JobStatusFailed, Detail: tr.Error}, nil
	default: // queued, processing
		return adapter.PollState{Status: model.JobStatusProcessing, Detail: tr.Status}, nil
	}
}

func (a *assemblyAIAdapter) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	tr, err := a.get(ctx, externalJobID, secret)
	if err != nil {
		return nil, err
	}
	if tr.Status != "completed" {
		return nil, fmt.Errorf("%w: provider status %s", domain.ErrResultNotReady, tr.Status)
	}

	t := &model.Transcript{
		FullText:      tr.Text,
		Language:      tr.LanguageCode,
		AvgConfidence: tr.Confidence,
	}
	if len(tr.Utterances) > 0 {
		for _, u := range tr.Utterances {
			t.Segments = append(t.Segments, model.Segment{
				Text:       u.Text,
				StartTime:  float64(u.Start) / 1000,
				EndTime:    float64(u.End) / 1000,
				Confidence: u.Confidence,
				Speaker:    speakerLabel(u.Speaker),
			})
		}
	} else {
		for _, w := range tr.Words {
			t.Segments = append(t.Segments, model.Segment{
				Text:       w.Text,
				StartTime:  float64(w.Start) / 1000,
				EndTime:    float64(w.End) / 1000,
				Confidence: w.Confidence,
				Speaker:    speakerLabel(w.Speaker),
			})
		}
	}
	t.Normalize()
	return t, nil
}

func (a *assemblyAIAdapter) Cancel(ctx context.Context, externalJobID, secret string) error {
	return domain.ErrUnsupportedOperation
}

func speakerLabel(raw string) string {
	if raw == "" {
		return ""
	}
	return "Speaker " + raw
}
