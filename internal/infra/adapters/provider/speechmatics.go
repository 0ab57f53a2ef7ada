package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
)

var _ adapter.TranscriptionProvider = (*speechmaticsAdapter)(nil)

// speechmaticsAdapter submits audio bytes as a batch job and polls for the
// JSON transcript. One of the two providers that can abort a running job.
type speechmaticsAdapter struct {
	baseURL string
	client  *http.Client
}

func NewSpeechmaticsAdapter() *speechmaticsAdapter {
	return &speechmaticsAdapter{baseURL: "https://asr.api.speechmatics.com", client: defaultClient}
}

func newSpeechmaticsAdapter(baseURL string, client *http.Client) *speechmaticsAdapter {
	return &speechmaticsAdapter{baseURL: baseURL, client: client}
}

func (s *speechmaticsAdapter) Key() model.ProviderKey { return model.ProviderSpeechmatics }
func (s *speechmaticsAdapter) Name() string           { return "Speechmatics" }

func (s *speechmaticsAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		Diarization: true,
		Timestamps:  true,
		Confidence:  true,
		Languages:   commonLanguages,
	}
}

func (s *speechmaticsAdapter) headers(secret string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + secret}
}

func (s *speechmaticsAdapter) ValidateCredential(ctx context.Context, secret string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v2/jobs?limit=1", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden
}

type speechmaticsConfig struct {
	Type          string `json:"type"`
	Transcription struct {
		Language    string `json:"language"`
		Diarization string `json:"diarization,omitempty"`
	} `json:"transcription_config"`
}

func (s *speechmaticsAdapter) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	audio, err := fetchAudio(ctx, s.client, s.Name(), audioURL)
	if err != nil {
		return adapter.Submission{}, err
	}

	jobCfg := speechmaticsConfig{Type: "transcription"}
	jobCfg.Transcription.Language = "en"
	if lang := langOrEmpty(cfg.Language); lang != "" {
		jobCfg.Transcription.Language = lang
	}
	if cfg.EnableDiarization {
		jobCfg.Transcription.Diarization = "speaker"
	}
	cfgJSON, err := json.Marshal(jobCfg)
	if err != nil {
		return adapter.Submission{}, err
	}

	body, contentType, err := multipartAudio("data_file", "audio.mp3", audio, map[string]string{
		"config": string(cfgJSON),
	})
	if err != nil {
		return adapter.Submission{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/jobs", body)
	if err != nil {
		return adapter.Submission{}, err
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return adapter.Submission{}, netErr(s.Name(), "submit", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return adapter.Submission{}, provErr(s.Name(), "submit", resp.StatusCode, nil)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := decodeBody(resp, &out); err != nil {
		return adapter.Submission{}, provErr(s.Name(), "submit", resp.StatusCode, err)
	}
	return adapter.Submission{ExternalJobID: out.ID}, nil
}

func (s *speechmaticsAdapter) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	var out struct {
		Job struct {
			Status string `json:"status"` // running | done | rejected | deleted | expired
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"job"`
	}
	url := fmt.Sprintf("%s/v2/jobs/%s", s.baseURL, externalJobID)
	if err := doJSON(ctx, s.client, s.Name(), "poll", http.MethodGet, url, s.headers(secret), nil, &out); err != nil {
		return adapter.PollState{}, err
	}
	switch out.Job.Status {
	case "done":
		return adapter.PollState{Status: model.JobStatusCompleted}, nil
	case "rejected", "deleted", "expired":
		detail := "job " + out.Job.Status
		if len(out.Job.Errors) > 0 {
			detail = out.Job.Errors[0].Message
		}
		return adapter.PollState{Status: model.JobStatusFailed, Detail: detail}, nil
	default:
		return adapter.PollState{Status: model.JobStatusProcessing}, nil
	}
}

type speechmaticsTranscript struct {
	Results []struct {
		Type         string  `json:"type"` // word | punctuation
		StartTime    float64 `json:"start_time"`
		EndTime      float64 `json:"end_time"`
		Alternatives []struct {
			Content    string  `json:"content"`
			Confidence float64 `json:"confidence"`
			Speaker    string  `json:"speaker"`
		} `json:"alternatives"`
	} `json:"results"`
	Metadata struct {
		TranscriptionConfig struct {
			Language string `json:"language"`
		} `json:"transcription_config"`
	} `json:"metadata"`
}

func (s *speechmaticsAdapter) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	var out speechmaticsTranscript
	url := fmt.Sprintf("%s/v2/jobs/%s/transcript?format=json-v2", s.baseURL, externalJobID)
	if err := doJSON(ctx, s.client, s.Name(), "fetch", http.MethodGet, url, s.headers(secret), nil, &out); err != nil {
		var pe *domain.ProviderError
		if errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound {
			return nil, domain.ErrResultNotReady
		}
		return nil, err
	}

	t := &model.Transcript{Language: out.Metadata.TranscriptionConfig.Language}
	for _, r := range out.Results {
		if r.Type != "word" || len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		conf := alt.Confidence
		seg := model.Segment{
			Text:       alt.Content,
			StartTime:  r.StartTime,
			EndTime:    r.EndTime,
			Confidence: &conf,
		}
		if alt.Speaker != "" && alt.Speaker != "UU" {
			seg.Speaker = speakerLabel(alt.Speaker)
		}
		t.Segments = append(t.Segments, seg)
	}
	t.Normalize()
	return t, nil
}

// Cancel deletes the job; Speechmatics aborts in-flight work on DELETE with
// force=true.
func (s *speechmaticsAdapter) Cancel(ctx context.Context, externalJobID, secret string) error {
	url := fmt.Sprintf("%s/v2/jobs/%s?force=true", s.baseURL, externalJobID)
	return doJSON(ctx, s.client, s.Name(), "cancel", http.MethodDelete, url, s.headers(secret), nil, nil)
}
