package model

import (
	"sort"
	"strings"

	"transcript-compare/internal/domain"
)

// Segment is one time-aligned span of a normalized transcript.
type Segment struct {
	SequenceNumber int      `json:"sequence_number"`
	Text           string   `json:"text"`
	StartTime      float64  `json:"start_time"` // seconds
	EndTime        float64  `json:"end_time"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Speaker        string   `json:"speaker,omitempty"`
}

// Transcript is the provider-agnostic result schema every adapter produces.
type Transcript struct {
	FullText      string    `json:"full_text"`
	Language      string    `json:"language"`
	AvgConfidence *float64  `json:"avg_confidence,omitempty"`
	WordCount     int       `json:"word_count"`
	Segments      []Segment `json:"segments"`
}

// Normalize enforces the schema invariants regardless of what the provider
// returned: segments time-ordered, sequence numbers strictly increasing from
// zero, language defaulted to "unknown", full text, word count and average
// confidence derived when absent.
func (t *Transcript) Normalize() {
	sort.SliceStable(t.Segments, func(i, j int) bool {
		return t.Segments[i].StartTime < t.Segments[j].StartTime
	})
	for i := range t.Segments {
		t.Segments[i].SequenceNumber = i
		if t.Segments[i].EndTime < t.Segments[i].StartTime {
			t.Segments[i].EndTime = t.Segments[i].StartTime
		}
	}
	if t.FullText == "" && len(t.Segments) > 0 {
		parts := make([]string, 0, len(t.Segments))
		for _, s := range t.Segments {
			if s.Text != "" {
				parts = append(parts, s.Text)
			}
		}
		t.FullText = strings.Join(parts, " ")
	}
	if t.Language == "" {
		t.Language = "unknown"
	}
	t.WordCount = len(strings.Fields(t.FullText))
	if t.AvgConfidence == nil {
		var sum float64
		var n int
		for _, s := range t.Segments {
			if s.Confidence != nil {
				sum += *s.Confidence
				n++
			}
		}
		if n > 0 {
			avg := sum / float64(n)
			t.AvgConfidence = &avg
		}
	}
}

// Validate checks the invariants a completed job's transcript must hold.
func (t *Transcript) Validate() error {
	if t.FullText == "" {
		return domain.ErrInvalidArgument
	}
	for i, s := range t.Segments {
		if s.SequenceNumber != i {
			return domain.ErrInvalidArgument
		}
		if s.EndTime < s.StartTime {
			return domain.ErrInvalidArgument
		}
		if i > 0 && s.StartTime < t.Segments[i-1].StartTime {
			return domain.ErrInvalidArgument
		}
	}
	return nil
}
