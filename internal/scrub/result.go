package scrub

import (
	"sort"
	"time"
)

// Result contains the scrubbing result.
type Result struct {
	// Text is the input with secret material replaced.
	Text string `json:"text"`

	// RedactedCount is the advisory replacement count: one per known
	// name found plus one per pattern match.
	RedactedCount int `json:"redacted_count"`

	// ByLabel maps secret names and rule labels to their counts.
	ByLabel map[string]int `json:"by_label,omitempty"`

	// Duration is how long scrubbing took.
	Duration time.Duration `json:"duration"`
}

func (r *Result) add(label string) {
	r.RedactedCount++
	r.ByLabel[label]++
}

// HasRedactions returns true if anything was replaced.
func (r *Result) HasRedactions() bool {
	return r.RedactedCount > 0
}

// Labels returns the labels that matched, sorted.
func (r *Result) Labels() []string {
	labels := make([]string, 0, len(r.ByLabel))
	for label := range r.ByLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
