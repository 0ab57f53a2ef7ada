package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
)

var _ adapter.TranscriptionProvider = (*deepgramAdapter)(nil)

// deepgramAdapter uses Deepgram's prerecorded listen endpoint, which
// transcribes within the request: a synchronous provider.
type deepgramAdapter struct {
	baseURL string
	client  *http.Client
}

func NewDeepgramAdapter() *deepgramAdapter {
	return &deepgramAdapter{baseURL: "https://api.deepgram.com", client: defaultClient}
}

func newDeepgramAdapter(baseURL string, client *http.Client) *deepgramAdapter {
	return &deepgramAdapter{baseURL: baseURL, client: client}
}

func (d *deepgramAdapter) Key() model.ProviderKey { return model.ProviderDeepgram }
func (d *deepgramAdapter) Name() string           { return "Deepgram" }

func (d *deepgramAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		Diarization: true,
		Timestamps:  true,
		Confidence:  true,
		Languages:   commonLanguages,
	}
}

func (d *deepgramAdapter) headers(secret string) map[string]string {
	return map[string]string{"Authorization": "Token " + secret}
}

func (d *deepgramAdapter) ValidateCredential(ctx context.Context, secret string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/v1/projects", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Token "+secret)
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string   `json:"transcript"`
				Confidence *float64 `json:"confidence"`
				Words      []struct {
					Word       string   `json:"punctuated_word"`
					Start      float64  `json:"start"`
					End        float64  `json:"end"`
					Confidence *float64 `json:"confidence"`
					Speaker    *int     `json:"speaker"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *deepgramAdapter) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	q := url.Values{}
	mdl := cfg.ModelName
	if mdl == "" {
		mdl = "nova-2"
	}
	q.Set("model", mdl)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	if cfg.EnableDiarization {
		q.Set("diarize", "true")
	}
	if lang := langOrEmpty(cfg.Language); lang != "" {
		q.Set("language", lang)
	} else {
		q.Set("detect_language", "true")
	}

	var out deepgramResponse
	if err := doJSON(ctx, d.client, d.Name(), "submit", http.MethodPost,
		d.baseURL+"/v1/listen?"+q.Encode(), d.headers(secret),
		map[string]string{"url": audioURL}, &out); err != nil {
		return adapter.Submission{}, err
	}

	t := &model.Transcript{}
	if len(out.Results.Channels) > 0 {
		ch := out.Results.Channels[0]
		t.Language = ch.DetectedLanguage
		if len(ch.Alternatives) > 0 {
			alt := ch.Alternatives[0]
			t.FullText = alt.Transcript
			t.AvgConfidence = alt.Confidence
			if cfg.EnableTimestamps {
				for _, w := range alt.Words {
					speaker := ""
					if w.Speaker != nil {
						speaker = "Speaker " + strconv.Itoa(*w.Speaker)
					}
					t.Segments = append(t.Segments, model.Segment{
						Text:       w.Word,
						StartTime:  w.Start,
						EndTime:    w.End,
						Confidence: w.Confidence,
						Speaker:    speaker,
					})
				}
			}
		}
	}
	if t.Language == "" {
		t.Language = langOrEmpty(cfg.Language)
	}
	t.Normalize()

	return adapter.Submission{Transcript: t}, nil
}

func (d *deepgramAdapter) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	return adapter.PollState{Status: model.JobStatusCompleted}, nil
}

func (d *deepgramAdapter) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	return nil, domain.ErrUnsupportedOperation
}

func (d *deepgramAdapter) Cancel(ctx context.Context, externalJobID, secret string) error {
	return domain.ErrUnsupportedOperation
}
