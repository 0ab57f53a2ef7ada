package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"

	"github.com/oklog/ulid/v2"
)

var _ adapter.TranscriptionProvider = (*awsTranscribeAdapter)(nil)

// awsTranscribeAdapter talks JSON-1.1 to the Transcribe service directly,
// signing each call with SigV4. The stored secret carries all three parts:
// "accessKey:secretKey:region".
type awsTranscribeAdapter struct {
	baseURL string // empty means the regional endpoint derived from the secret
	client  *http.Client
	now     func() time.Time
}

func NewAWSTranscribeAdapter() *awsTranscribeAdapter {
	return &awsTranscribeAdapter{client: defaultClient, now: time.Now}
}

func newAWSTranscribeAdapter(baseURL string, client *http.Client) *awsTranscribeAdapter {
	return &awsTranscribeAdapter{baseURL: baseURL, client: client, now: time.Now}
}

func (a *awsTranscribeAdapter) Key() model.ProviderKey { return model.ProviderAWSTranscribe }
func (a *awsTranscribeAdapter) Name() string           { return "AWS Transcribe" }

func (a *awsTranscribeAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		Diarization: true,
		Timestamps:  true,
		Confidence:  true,
		Languages:   commonLanguages,
	}
}

type awsCredential struct {
	accessKey string
	secretKey string
	region    string
}

func parseAWSCredential(secret string) (awsCredential, error) {
	parts := strings.SplitN(secret, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return awsCredential{}, fmt.Errorf("%w: credential must be accessKey:secretKey:region", domain.ErrInvalidArgument)
	}
	return awsCredential{accessKey: parts[0], secretKey: parts[1], region: parts[2]}, nil
}

func (a *awsTranscribeAdapter) endpoint(region string) string {
	if a.baseURL != "" {
		return a.baseURL
	}
	return fmt.Sprintf("https://transcribe.%s.amazonaws.com", region)
}

// call issues one signed JSON-1.1 operation against the Transcribe endpoint.
func (a *awsTranscribeAdapter) call(ctx context.Context, op, target string, cred awsCredential, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s %s: marshal: %w", a.Name(), op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(cred.region)+"/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s %s: %w", a.Name(), op, err)
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", "Transcribe."+target)
	signV4(req, cred.accessKey, cred.secretKey, cred.region, "transcribe", payload, a.now())

	resp, err := a.client.Do(req)
	if err != nil {
		return netErr(a.Name(), op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Type    string `json:"__type"`
			Message string `json:"message"`
		}
		_ = decodeBody(resp, &apiErr)
		return provErr(a.Name(), op, resp.StatusCode, fmt.Errorf("%s: %s", apiErr.Type, apiErr.Message))
	}
	if out == nil {
		return nil
	}
	if err := decodeBody(resp, out); err != nil {
		return provErr(a.Name(), op, resp.StatusCode, err)
	}
	return nil
}

func (a *awsTranscribeAdapter) ValidateCredential(ctx context.Context, secret string) bool {
	cred, err := parseAWSCredential(secret)
	if err != nil {
		return false
	}
	in := map[string]interface{}{"MaxResults": 1}
	return a.call(ctx, "validate", "ListTranscriptionJobs", cred, in, nil) == nil
}

type awsJobStatus struct {
	TranscriptionJob struct {
		TranscriptionJobName   string `json:"TranscriptionJobName"`
		TranscriptionJobStatus string `json:"TranscriptionJobStatus"` // QUEUED | IN_PROGRESS | COMPLETED | FAILED
		FailureReason          string `json:"FailureReason"`
		LanguageCode           string `json:"LanguageCode"`
		Transcript             struct {
			TranscriptFileUri string `json:"TranscriptFileUri"`
		} `json:"Transcript"`
	} `json:"TranscriptionJob"`
}

func (a *awsTranscribeAdapter) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	cred, err := parseAWSCredential(secret)
	if err != nil {
		return adapter.Submission{}, err
	}

	jobName := "tc-" + strings.ToLower(ulid.Make().String())
	in := map[string]interface{}{
		"TranscriptionJobName": jobName,
		"Media":                map[string]string{"MediaFileUri": audioURL},
	}
	if lang := langOrEmpty(cfg.Language); lang != "" {
		in["LanguageCode"] = awsLanguageCode(lang)
	} else {
		in["IdentifyLanguage"] = true
	}
	if cfg.EnableDiarization {
		in["Settings"] = map[string]interface{}{
			"ShowSpeakerLabels": true,
			"MaxSpeakerLabels":  10,
		}
	}

	var out awsJobStatus
	if err := a.call(ctx, "submit", "StartTranscriptionJob", cred, in, &out); err != nil {
		return adapter.Submission{}, err
	}
	return adapter.Submission{ExternalJobID: out.TranscriptionJob.TranscriptionJobName}, nil
}

func (a *awsTranscribeAdapter) getJob(ctx context.Context, op, externalJobID string, cred awsCredential) (*awsJobStatus, error) {
	in := map[string]string{"TranscriptionJobName": externalJobID}
	var out awsJobStatus
	if err := a.call(ctx, op, "GetTranscriptionJob", cred, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *awsTranscribeAdapter) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	cred, err := parseAWSCredential(secret)
	if err != nil {
		return adapter.PollState{}, err
	}
	st, err := a.getJob(ctx, "poll", externalJobID, cred)
	if err != nil {
		return adapter.PollState{}, err
	}
	switch st.TranscriptionJob.TranscriptionJobStatus {
	case "COMPLETED":
		return adapter.PollState{Status: model.JobStatusCompleted}, nil
	case "FAILED":
		return adapter.PollState{Status: model.JobStatusFailed, Detail: st.TranscriptionJob.FailureReason}, nil
	default:
		return adapter.PollState{Status: model.JobStatusProcessing}, nil
	}
}

// awsTranscriptDoc is the document behind TranscriptFileUri.
type awsTranscriptDoc struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
		Items []struct {
			Type         string `json:"type"` // pronunciation | punctuation
			StartTime    string `json:"start_time"`
			EndTime      string `json:"end_time"`
			SpeakerLabel string `json:"speaker_label"`
			Alternatives []struct {
				Content    string `json:"content"`
				Confidence string `json:"confidence"`
			} `json:"alternatives"`
		} `json:"items"`
	} `json:"results"`
}

func (a *awsTranscribeAdapter) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	cred, err := parseAWSCredential(secret)
	if err != nil {
		return nil, err
	}
	st, err := a.getJob(ctx, "fetch", externalJobID, cred)
	if err != nil {
		return nil, err
	}
	if st.TranscriptionJob.TranscriptionJobStatus != "COMPLETED" {
		return nil, domain.ErrResultNotReady
	}

	// The transcript lives behind a pre-signed URL, no SigV4 needed there.
	var doc awsTranscriptDoc
	if err := doJSON(ctx, a.client, a.Name(), "fetch", http.MethodGet, st.TranscriptionJob.Transcript.TranscriptFileUri, nil, nil, &doc); err != nil {
		return nil, err
	}

	t := &model.Transcript{Language: strings.ToLower(st.TranscriptionJob.LanguageCode)}
	if len(doc.Results.Transcripts) > 0 {
		t.FullText = doc.Results.Transcripts[0].Transcript
	}
	for _, item := range doc.Results.Items {
		if item.Type != "pronunciation" || len(item.Alternatives) == 0 {
			continue
		}
		seg := model.Segment{Text: item.Alternatives[0].Content}
		fmt.Sscanf(item.StartTime, "%f", &seg.StartTime)
		fmt.Sscanf(item.EndTime, "%f", &seg.EndTime)
		var conf float64
		if _, err := fmt.Sscanf(item.Alternatives[0].Confidence, "%f", &conf); err == nil {
			seg.Confidence = &conf
		}
		if item.SpeakerLabel != "" {
			seg.Speaker = speakerLabel(strings.TrimPrefix(item.SpeakerLabel, "spk_"))
		}
		t.Segments = append(t.Segments, seg)
	}
	t.Normalize()
	return t, nil
}

func (a *awsTranscribeAdapter) Cancel(ctx context.Context, externalJobID, secret string) error {
	cred, err := parseAWSCredential(secret)
	if err != nil {
		return err
	}
	in := map[string]string{"TranscriptionJobName": externalJobID}
	return a.call(ctx, "cancel", "DeleteTranscriptionJob", cred, in, nil)
}

// awsLanguageCode widens a bare ISO code to the locale form Transcribe wants.
func awsLanguageCode(lang string) string {
	switch lang {
	case "en":
		return "en-US"
	case "de":
		return "de-DE"
	case "es":
		return "es-ES"
	case "fr":
		return "fr-FR"
	case "it":
		return "it-IT"
	case "pt":
		return "pt-BR"
	case "nl":
		return "nl-NL"
	case "pl":
		return "pl-PL"
	case "ru":
		return "ru-RU"
	case "ja":
		return "ja-JP"
	case "ko":
		return "ko-KR"
	case "zh":
		return "zh-CN"
	default:
		return lang
	}
}
