package provider

import (
	"context"
	"net/http"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
)

var _ adapter.TranscriptionProvider = (*elevenLabsAdapter)(nil)

// elevenLabsAdapter uploads audio bytes to the speech-to-text endpoint.
// Synchronous: the response carries the finished transcript.
type elevenLabsAdapter struct {
	baseURL string
	client  *http.Client
}

func NewElevenLabsAdapter() *elevenLabsAdapter {
	return &elevenLabsAdapter{baseURL: "https://api.elevenlabs.io", client: defaultClient}
}

func newElevenLabsAdapter(baseURL string, client *http.Client) *elevenLabsAdapter {
	return &elevenLabsAdapter{baseURL: baseURL, client: client}
}

func (e *elevenLabsAdapter) Key() model.ProviderKey { return model.ProviderElevenLabs }
func (e *elevenLabsAdapter) Name() string           { return "ElevenLabs" }

func (e *elevenLabsAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		Diarization: true, // scribe reports speaker ids
		Timestamps:  true,
		Confidence:  false,
		Languages:   commonLanguages,
	}
}

func (e *elevenLabsAdapter) ValidateCredential(ctx context.Context, secret string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/user", nil)
	if err != nil {
		return false
	}
	req.Header.Set("xi-api-key", secret)
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type elevenLabsResponse struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
	Words        []struct {
		Text      string  `json:"text"`
		Start     float64 `json:"start"`
		End       float64 `json:"end"`
		Type      string  `json:"type"` // word | spacing
		SpeakerID string  `json:"speaker_id"`
	} `json:"words"`
}

func (e *elevenLabsAdapter) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	audio, err := fetchAudio(ctx, e.client, e.Name(), audioURL)
	if err != nil {
		return adapter.Submission{}, err
	}

	fields := map[string]string{"model_id": "scribe_v1"}
	if cfg.ModelName != "" {
		fields["model_id"] = cfg.ModelName
	}
	if lang := langOrEmpty(cfg.Language); lang != "" {
		fields["language_code"] = lang
	}
	if cfg.EnableDiarization {
		fields["diarize"] = "true"
	}

	body, contentType, err := multipartAudio("file", "audio.mp3", audio, fields)
	if err != nil {
		return adapter.Submission{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/speech-to-text", body)
	if err != nil {
		return adapter.Submission{}, err
	}
	req.Header.Set("xi-api-key", secret)
	req.Header.Set("Content-Type", contentType)

	resp, err := e.client.Do(req)
	if err != nil {
		return adapter.Submission{}, netErr(e.Name(), "submit", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return adapter.Submission{}, provErr(e.Name(), "submit", resp.StatusCode, nil)
	}

	var out elevenLabsResponse
	if err := decodeBody(resp, &out); err != nil {
		return adapter.Submission{}, provErr(e.Name(), "submit", resp.StatusCode, err)
	}

	t := &model.Transcript{FullText: out.Text, Language: out.LanguageCode}
	if cfg.EnableTimestamps {
		for _, w := range out.Words {
			if w.Type != "word" {
				continue
			}
			t.Segments = append(t.Segments, model.Segment{
				Text:      w.Text,
				StartTime: w.Start,
				EndTime:   w.End,
				Speaker:   speakerLabel(w.SpeakerID),
			})
		}
	}
	t.Normalize()
	return adapter.Submission{Transcript: t}, nil
}

func (e *elevenLabsAdapter) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	return adapter.PollState{Status: model.JobStatusCompleted}, nil
}

func (e *elevenLabsAdapter) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	return nil, domain.ErrUnsupportedOperation
}

func (e *elevenLabsAdapter) Cancel(ctx context.Context, externalJobID, secret string) error {
	return domain.ErrUnsupportedOperation
}
