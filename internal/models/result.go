package models

import "time"

// AddressResult is the outcome of resolving one address of a batch.
// Exactly one of {Location and Distance} or {Error} is set.
type AddressResult struct {
	Address   string       `json:"address"`              // Address is the trimmed input line.
	Location  *Coordinates `json:"location"`             // Location is nil when resolution failed.
	Distance  *float64     `json:"distance"`             // Distance from the reference position in meters.
	Error     string       `json:"error,omitempty"`      // Error is the human-readable failure reason.
	ErrorKind ErrorKind    `json:"error_kind,omitempty"` // ErrorKind classifies Error.
}

// NewResolvedResult builds a successful result.
func NewResolvedResult(address string, location Coordinates, distance float64) AddressResult {
	return AddressResult{Address: address, Location: &location, Distance: &distance}
}

// NewFailedResult builds a result carrying the resolution error instead of a position.
func NewFailedResult(address string, err error) AddressResult {
	return AddressResult{Address: address, Error: err.Error(), ErrorKind: KindOf(err)}
}

// Succeeded reports whether the address was resolved.
func (r AddressResult) Succeeded() bool {
	return r.Distance != nil
}

// BatchResult is everything a single pipeline run hands back to its caller.
type BatchResult struct {
	RunID           string          `json:"run_id"`
	Reference       Coordinates     `json:"reference"`
	ReferenceSource string          `json:"reference_source"`
	Results         []AddressResult `json:"results"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
}

// Succeeded returns the number of resolved addresses.
func (b *BatchResult) Succeeded() int {
	count := 0
	for _, res := range b.Results {
		if res.Succeeded() {
			count++
		}
	}
	return count
}

// Failed returns the number of addresses that could not be resolved.
func (b *BatchResult) Failed() int {
	return len(b.Results) - b.Succeeded()
}
