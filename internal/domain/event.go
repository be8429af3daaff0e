package domain

import (
	"time"
)

// RawObject is one near-Earth object exactly as decoded from the feed.
// Numbers are kept as json.Number so the normalizer can tell numeric strings,
// numbers, and mistyped values apart.
type RawObject map[string]any

// FeedPage is one decoded page of the NeoWs feed.
type FeedPage struct {
	URL          string
	Next         string                 // empty on the last page
	ElementCount int                    // as reported by the feed
	Buckets      map[string][]RawObject // keyed by calendar date "YYYY-MM-DD"
}

// ObjectCount returns the number of objects across all date buckets.
func (p FeedPage) ObjectCount() int {
	n := 0
	for _, objs := range p.Buckets {
		n += len(objs)
	}
	return n
}

// NearEarthObject holds the identity attributes of one object.
type NearEarthObject struct {
	ID                 int64   `json:"id"`
	ReferenceID        int64   `json:"neo_reference_id"`
	Name               string  `json:"name"`
	AbsoluteMagnitudeH float64 `json:"absolute_magnitude_h"`
	DiameterMinKm      float64 `json:"estimated_diameter_min_km"`
	DiameterMaxKm      float64 `json:"estimated_diameter_max_km"`
	Hazardous          bool    `json:"is_potentially_hazardous_asteroid"`
}

// CloseApproach is a single pass of an object near a body.
type CloseApproach struct {
	ReferenceID      int64   `json:"neo_reference_id"`
	Date             string  `json:"close_approach_date"`
	VelocityKmph     float64 `json:"relative_velocity_kmph"`
	MissAstronomical float64 `json:"astronomical"`
	MissKm           float64 `json:"miss_distance_km"`
	MissLunar        float64 `json:"miss_distance_lunar"`
	OrbitingBody     string  `json:"orbiting_body"`
}

// Record is one normalized object: its identity plus its first close approach.
type Record struct {
	Bucket   string          `json:"bucket"`
	Object   NearEarthObject `json:"object"`
	Approach CloseApproach   `json:"approach"`
}

// DropReason classifies why an object was rejected.
type DropReason string

const (
	DropNoCloseApproach DropReason = "no_close_approach"
	DropMissingField    DropReason = "missing_field"
	DropMalformedField  DropReason = "malformed_field"
)

// DropReasons lists every reason in reporting order.
var DropReasons = []DropReason{DropNoCloseApproach, DropMissingField, DropMalformedField}

// Drop describes one rejected object.
type Drop struct {
	Bucket   string
	ObjectID string // raw "id" value when readable, else empty
	Reason   DropReason
	Field    string // dotted path of the failing field
}

// PageResult is the normalizer output for one feed page.
type PageResult struct {
	Records []Record
	Drops   []Drop
}

// WriteReport counts inserted and skipped rows per table for one write.
type WriteReport struct {
	Asteroids        int
	AsteroidFailures int
	Approaches       int
	ApproachFailures int
}

// PublishReport counts records handed to the broker and records it rejected.
type PublishReport struct {
	Published int
	Failed    int
}

// RunSummary reports the outcome of one ingestion run.
type RunSummary struct {
	RunID       string             `json:"run_id"`
	StartDate   string             `json:"start_date"`
	Budget      int                `json:"budget"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	Pages       int                `json:"pages"`
	Objects     int                `json:"objects"`
	Normalized  int                `json:"normalized"`
	Dropped     map[DropReason]int `json:"dropped"`
	Interrupted bool               `json:"interrupted"`
	FetchError  string             `json:"fetch_error,omitempty"`

	AsteroidRows     int `json:"asteroid_rows"`
	AsteroidFailures int `json:"asteroid_failures"`
	ApproachRows     int `json:"approach_rows"`
	ApproachFailures int `json:"approach_failures"`
	Published        int `json:"published"`
	PublishFailures  int `json:"publish_failures"`
}

// TotalDropped returns the number of rejected objects across all reasons.
func (s RunSummary) TotalDropped() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}
