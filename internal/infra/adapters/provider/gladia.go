package provider

import (
	"context"
	"fmt"
	"net/http"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
)

var _ adapter.TranscriptionProvider = (*gladiaAdapter)(nil)

// gladiaAdapter drives the async pre-recorded pipeline: submit a URL, poll
// until done, read the result off the same status document.
type gladiaAdapter struct {
	baseURL string
	client  *http.Client
}

func NewGladiaAdapter() *gladiaAdapter {
	return &gladiaAdapter{baseURL: "https://api.gladia.io", client: defaultClient}
}

func newGladiaAdapter(baseURL string, client *http.Client) *gladiaAdapter {
	return &gladiaAdapter{baseURL: baseURL, client: client}
}

func (g *gladiaAdapter) Key() model.ProviderKey { return model.ProviderGladia }
func (g *gladiaAdapter) Name() string           { return "Gladia" }

func (g *gladiaAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		Diarization: true,
		Timestamps:  true,
		Confidence:  true,
		Languages:   commonLanguages,
	}
}

func (g *gladiaAdapter) headers(secret string) map[string]string {
	return map[string]string{"x-gladia-key": secret}
}

func (g *gladiaAdapter) ValidateCredential(ctx context.Context, secret string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v2/pre-recorded?limit=1", nil)
	if err != nil {
		return false
	}
	req.Header.Set("x-gladia-key", secret)
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden
}

type gladiaSubmitRequest struct {
	AudioURL       string `json:"audio_url"`
	Diarization    bool   `json:"diarization,omitempty"`
	DetectLanguage bool   `json:"detect_language,omitempty"`
	Language       string `json:"language,omitempty"`
}

type gladiaStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"` // queued | processing | done | error
	ErrorCode *int   `json:"error_code"`
	Result    *struct {
		Transcription struct {
			FullTranscript string   `json:"full_transcript"`
			Languages      []string `json:"languages"`
			Utterances     []struct {
				Text       string  `json:"text"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
				Speaker    *int    `json:"speaker"`
			} `json:"utterances"`
		} `json:"transcription"`
	} `json:"result"`
}

func (g *gladiaAdapter) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	body := gladiaSubmitRequest{
		AudioURL:    audioURL,
		Diarization: cfg.EnableDiarization,
	}
	if lang := langOrEmpty(cfg.Language); lang != "" {
		body.Language = lang
	} else {
		body.DetectLanguage = true
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := doJSON(ctx, g.client, g.Name(), "submit", http.MethodPost, g.baseURL+"/v2/pre-recorded", g.headers(secret), body, &out); err != nil {
		return adapter.Submission{}, err
	}
	return adapter.Submission{ExternalJobID: out.ID}, nil
}

func (g *gladiaAdapter) status(ctx context.Context, op, externalJobID, secret string) (*gladiaStatus, error) {
	var out gladiaStatus
	url := fmt.Sprintf("%s/v2/pre-recorded/%s", g.baseURL, externalJobID)
	if err := doJSON(ctx, g.client, g.Name(), op, http.MethodGet, url, g.headers(secret), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *gladiaAdapter) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	st, err := g.status(ctx, "poll", externalJobID, secret)
	if err != nil {
		return adapter.PollState{}, err
	}
	switch st.Status {
	case "done":
		return adapter.PollState{Status: model.JobStatusCompleted}, nil
	case "error":
		detail := "transcription failed"
		if st.ErrorCode != nil {
			detail = fmt.Sprintf("transcription failed with code %d", *st.ErrorCode)
		}
		return adapter.PollState{Status: model.JobStatusFailed, Detail: detail}, nil
	default: // queued, processing
		return adapter.PollState{Status: model.JobStatusProcessing}, nil
	}
}

func (g *gladiaAdapter) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	st, err := g.status(ctx, "fetch", externalJobID, secret)
	if err != nil {
		return nil, err
	}
	if st.Status != "done" || st.Result == nil {
		return nil, domain.ErrResultNotReady
	}

	tr := st.Result.Transcription
	t := &model.Transcript{FullText: tr.FullTranscript}
	if len(tr.Languages) > 0 {
		t.Language = tr.Languages[0]
	}
	for _, u := range tr.Utterances {
		conf := u.Confidence
		seg := model.Segment{
			Text:       u.Text,
			StartTime:  u.Start,
			EndTime:    u.End,
			Confidence: &conf,
		}
		if u.Speaker != nil {
			seg.Speaker = fmt.Sprintf("Speaker %d", *u.Speaker)
		}
		t.Segments = append(t.Segments, seg)
	}
	t.Normalize()
	return t, nil
}

func (g *gladiaAdapter) Cancel(ctx context.Context, externalJobID, secret string) error {
	return domain.ErrUnsupportedOperation
}
