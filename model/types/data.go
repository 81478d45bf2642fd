package types

import "time"

type (
	// RawData is a collector's output: the unprocessed response for a target.
	RawData struct {
		Target     string              `json:"target"`
		StatusCode int                 `json:"statusCode,omitempty"`
		Headers    map[string][]string `json:"headers,omitempty"`
		Body       []byte              `json:"body,omitempty"`
		FetchedAt  time.Time           `json:"fetchedAt"`
		Meta       map[string]interface{} `json:"meta,omitempty"`
	}

	// PageData is a processor's output: structured view of a page.
	PageData struct {
		Target      string              `json:"target"`
		StatusCode  int                 `json:"statusCode,omitempty"`
		Headers     map[string][]string `json:"headers,omitempty"`
		Title       string              `json:"title,omitempty"`
		Description string              `json:"description,omitempty"`
		Links       []string            `json:"links,omitempty"`
		HTML        string              `json:"html,omitempty"`
		Meta        map[string]string   `json:"meta,omitempty"`
	}

	// Severity grades a finding.
	Severity string

	// Finding is a single issue or observation emitted by an analyzer.
	Finding struct {
		ID       string   `json:"id"`
		Severity Severity `json:"severity"`
		Message  string   `json:"message"`
		Detail   string   `json:"detail,omitempty"`
	}

	// Analysis is one analyzer's verdict for a page.
	Analysis struct {
		Component string        `json:"component"`
		Score     float64       `json:"score"`
		Findings  []*Finding    `json:"findings,omitempty"`
		Cached    bool          `json:"cached,omitempty"`
		Elapsed   time.Duration `json:"elapsed,omitempty"`
	}

	// Report aggregates all analyses of one pipeline run.
	Report struct {
		Pipeline   string            `json:"pipeline"`
		Target     string            `json:"target"`
		Analyses   []*Analysis       `json:"analyses,omitempty"`
		Errors     map[string]string `json:"errors,omitempty"`
		StartedAt  time.Time         `json:"startedAt"`
		FinishedAt time.Time         `json:"finishedAt"`
	}
)

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Score returns the mean analyzer score, or zero when nothing ran.
func (r *Report) Score() float64 {
	if len(r.Analyses) == 0 {
		return 0
	}
	var total float64
	for _, a := range r.Analyses {
		total += a.Score
	}
	return total / float64(len(r.Analyses))
}
