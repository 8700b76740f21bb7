package retrieval

import "github.com/voltpath/voltpath/engine/semantic"

// Result is an ordered set of retrieved evidence. The three slices are
// always index-aligned and the same length; producing anything else is a
// bug, not a valid state.
type Result struct {
	Documents []string         `json:"documents"`
	Metadata  []map[string]any `json:"metadata"`
	Distances []float32        `json:"distances"`
}

// Empty reports whether no evidence was retrieved.
func (r Result) Empty() bool { return len(r.Documents) == 0 }

// Len returns the number of retrieved documents.
func (r Result) Len() int { return len(r.Documents) }

// resultFromHits converts index hits into an aligned Result.
func resultFromHits(hits []semantic.Hit) Result {
	r := Result{
		Documents: make([]string, len(hits)),
		Metadata:  make([]map[string]any, len(hits)),
		Distances: make([]float32, len(hits)),
	}
	for i, h := range hits {
		r.Documents[i] = h.Document
		r.Metadata[i] = h.Payload
		r.Distances[i] = h.Distance
	}
	return r
}

// Combined pairs the evidence from both indexes for one query.
type Combined struct {
	Community Result `json:"community"`
	Personal  Result `json:"personal"`
}
