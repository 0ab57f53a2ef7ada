// File: internal/usecase/export_uc.go
package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/repository"
)

type ExportFormat string

const (
	ExportText ExportFormat = "text"
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// exportDocument is the JSON export shape. It carries the provider alongside
// the transcript so a file is self-describing.
type exportDocument struct {
	Provider   model.ProviderKey `json:"provider"`
	FullText   string            `json:"fullText"`
	Language   string            `json:"language"`
	Confidence *float64          `json:"confidence,omitempty"`
	WordCount  int               `json:"wordCount"`
	Segments   []model.Segment   `json:"segments"`
}

// ExportService serializes completed transcripts. Every single-transcript
// format has a matching parser, so an exported file can be read back.
type ExportService struct {
	jobRepo repository.JobRepository
	log     *zerolog.Logger
}

func NewExportService(jobRepo repository.JobRepository, log *zerolog.Logger) *ExportService {
	return &ExportService{jobRepo: jobRepo, log: log}
}

// ExportJob renders one completed job's transcript. The returned string is
// the response content type.
func (s *ExportService) ExportJob(ctx context.Context, jobID string, format ExportFormat) ([]byte, string, error) {
	job, err := s.jobRepo.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, "", err
	}
	if job.Status != model.JobStatusCompleted || job.Result == nil {
		return nil, "", domain.ErrResultNotReady
	}

	switch format {
	case ExportText:
		return []byte(FormatTranscriptText(job.Provider, job.Result)), "text/plain; charset=utf-8", nil
	case ExportJSON:
		b, err := FormatTranscriptJSON(job.Provider, job.Result)
		return b, "application/json", err
	case ExportCSV:
		b, err := FormatTranscriptCSV(job.Result)
		return b, "text/csv; charset=utf-8", err
	default:
		return nil, "", fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidArgument, format)
	}
}

// ComparisonCSV renders one row per completed job of the project, putting
// the providers' outputs side by side.
func (s *ExportService) ComparisonCSV(ctx context.Context, projectID string) ([]byte, error) {
	jobs, err := s.jobRepo.ListByProject(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Provider", "Language", "Word Count", "Confidence", "Full Text"})
	rows := 0
	for _, job := range jobs {
		if job.Status != model.JobStatusCompleted || job.Result == nil {
			continue
		}
		t := job.Result
		conf := "N/A"
		if t.AvgConfidence != nil {
			conf = fmt.Sprintf("%.1f%%", *t.AvgConfidence*100)
		}
		_ = w.Write([]string{
			string(job.Provider),
			t.Language,
			strconv.Itoa(t.WordCount),
			conf,
			t.FullText,
		})
		rows++
	}
	w.Flush()
	if rows == 0 {
		return nil, domain.ErrResultNotReady
	}
	return buf.Bytes(), w.Error()
}

const exportSeparator = "--------------------------------------------------------------------------------"

// FormatTranscriptText renders the human-readable report: a metadata header,
// the full text, then one line per timestamped segment.
func FormatTranscriptText(provider model.ProviderKey, t *model.Transcript) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcript - %s\n", provider)
	fmt.Fprintf(&b, "Language: %s\n", t.Language)
	fmt.Fprintf(&b, "Word Count: %d\n", t.WordCount)
	if t.AvgConfidence != nil {
		fmt.Fprintf(&b, "Confidence: %.1f%%\n", *t.AvgConfidence*100)
	}
	fmt.Fprintf(&b, "\n%s\n\n", exportSeparator)
	b.WriteString(t.FullText)

	if len(t.Segments) > 0 {
		fmt.Fprintf(&b, "\n\n%s\nTimestamped Segments\n%s\n\n", exportSeparator, exportSeparator)
		for _, seg := range t.Segments {
			fmt.Fprintf(&b, "[%.2f-%.2f]", seg.StartTime, seg.EndTime)
			if seg.Speaker != "" {
				fmt.Fprintf(&b, " [%s]", seg.Speaker)
			}
			fmt.Fprintf(&b, " %s\n", seg.Text)
		}
	}
	return b.String()
}

var textSegmentRe = regexp.MustCompile(`^\[(\d+(?:\.\d+)?)-(\d+(?:\.\d+)?)\](?: \[([^\]]*)\])? (.*)$`)

// ParseTranscriptText reads a text export back into a transcript.
func ParseTranscriptText(data []byte) (*model.Transcript, error) {
	lines := strings.Split(string(data), "\n")
	t := &model.Transcript{}

	sep := 0
	var fullText []string
	for _, line := range lines {
		if line == exportSeparator {
			sep++
			continue
		}
		switch sep {
		case 0:
			if v, ok := strings.CutPrefix(line, "Language: "); ok {
				t.Language = v
			}
		case 1:
			fullText = append(fullText, line)
		case 3:
			if line == "Timestamped Segments" || strings.TrimSpace(line) == "" {
				continue
			}
			m := textSegmentRe.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("%w: malformed segment line %q", domain.ErrInvalidArgument, line)
			}
			start, _ := strconv.ParseFloat(m[1], 64)
			end, _ := strconv.ParseFloat(m[2], 64)
			t.Segments = append(t.Segments, model.Segment{
				Text:      m[4],
				StartTime: start,
				EndTime:   end,
				Speaker:   m[3],
			})
		}
	}
	t.FullText = strings.TrimSpace(strings.Join(fullText, "\n"))
	if t.FullText == "" && len(t.Segments) == 0 {
		return nil, fmt.Errorf("%w: empty transcript document", domain.ErrInvalidArgument)
	}
	t.Normalize()
	return t, nil
}

func FormatTranscriptJSON(provider model.ProviderKey, t *model.Transcript) ([]byte, error) {
	doc := exportDocument{
		Provider:   provider,
		FullText:   t.FullText,
		Language:   t.Language,
		Confidence: t.AvgConfidence,
		WordCount:  t.WordCount,
		Segments:   t.Segments,
	}
	if doc.Segments == nil {
		doc.Segments = []model.Segment{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

func ParseTranscriptJSON(data []byte) (*model.Transcript, error) {
	var doc exportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	t := &model.Transcript{
		FullText:      doc.FullText,
		Language:      doc.Language,
		AvgConfidence: doc.Confidence,
		Segments:      doc.Segments,
	}
	t.Normalize()
	return t, nil
}

// FormatTranscriptCSV renders one row per segment. Full text is not carried;
// the parser reconstructs it by joining segment texts.
func FormatTranscriptCSV(t *model.Transcript) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Start Time", "End Time", "Speaker", "Text", "Confidence"})
	for _, seg := range t.Segments {
		conf := ""
		if seg.Confidence != nil {
			conf = strconv.FormatFloat(*seg.Confidence, 'f', 4, 64)
		}
		_ = w.Write([]string{
			strconv.FormatFloat(seg.StartTime, 'f', 2, 64),
			strconv.FormatFloat(seg.EndTime, 'f', 2, 64),
			seg.Speaker,
			seg.Text,
			conf,
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func ParseTranscriptCSV(data []byte) (*model.Transcript, error) {
	r := csv.NewReader(bytes.NewReader(data))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: csv has no segment rows", domain.ErrInvalidArgument)
	}
	t := &model.Transcript{}
	for _, row := range rows[1:] {
		if len(row) != 5 {
			return nil, fmt.Errorf("%w: csv row has %d columns, want 5", domain.ErrInvalidArgument, len(row))
		}
		start, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad start time %q", domain.ErrInvalidArgument, row[0])
		}
		end, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad end time %q", domain.ErrInvalidArgument, row[1])
		}
		seg := model.Segment{Text: row[3], StartTime: start, EndTime: end, Speaker: row[2]}
		if row[4] != "" {
			conf, err := strconv.ParseFloat(row[4], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad confidence %q", domain.ErrInvalidArgument, row[4])
			}
			seg.Confidence = &conf
		}
		t.Segments = append(t.Segments, seg)
	}
	t.Normalize()
	return t, nil
}
