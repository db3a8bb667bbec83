//nolint:tagliatelle
package main

// Record is a single line in the JSONL report file.
type Record struct {
	File   string         `json:"file,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Timing *RecordTiming  `json:"timing,omitempty"`
}

// RecordTiming captures per-file processing durations in milliseconds.
type RecordTiming struct {
	ValidateMs float64 `json:"validate_ms"`
	TotalMs    float64 `json:"total_ms"`
}

// digestRecord holds the typed fields needed by the digest command.
type digestRecord struct {
	File   string        `json:"file,omitempty"`
	Result *digestResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

type digestResult struct {
	Summary     digestSummary `json:"summary"`
	TotalBursts uint64        `json:"total_bursts"`
	Rate        *digestRate   `json:"rate"`
}

type digestSummary struct {
	Verdict string `json:"verdict"`
	Passed  bool   `json:"passed"`
}

type digestRate struct {
	TotalBurstsChecked uint64  `json:"total_bursts_checked"`
	BadBurstCount      uint64  `json:"bad_burst_count"`
	BadRatePercent     float64 `json:"bad_rate_percent"`
	SkippedBursts      uint64  `json:"skipped_bursts"`
}

// fileRate is one validated file as ranked by the digest.
type fileRate struct {
	File    string
	Bad     uint64
	Checked uint64
	Rate    float64
}

// digest is the aggregate view over a report.
type digest struct {
	Total   int
	Failed  int
	Clean   int
	Bad     int
	Checked uint64
	BadSum  uint64
	Mean    float64
	Median  float64
	Max     float64
	Worst   []fileRate
}
