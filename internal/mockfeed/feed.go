// Package mockfeed serves a deterministic, paginated imitation of the NeoWs
// /feed endpoint. It backs the mockfeed command for local runs and the
// end-to-end tests.
//
// Each page covers PageDays calendar days starting at the requested
// start_date. Every day holds PerDay objects. Values are derived from the
// object's position so repeated requests return identical bodies.
package mockfeed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
)

const dateLayout = "2006-01-02"

// Options shape the generated feed.
type Options struct {
	Start    time.Time // first day with data
	Days     int       // days of data; the last page has no next link
	PerDay   int       // objects per day
	PageDays int       // days per page, 7 when zero

	// APIKey, when set, must match the api_key parameter (403 otherwise).
	APIKey string
	// MissingMagnitudeEvery drops absolute_magnitude_h from every n-th object.
	MissingMagnitudeEvery int
	// NoApproachEvery empties close_approach_data on every n-th object.
	NoApproachEvery int
	// FailOnPage answers the n-th request (1-based) with 503.
	FailOnPage int
}

// Feed is an http.Handler for the generated feed.
type Feed struct {
	opts     Options
	requests atomic.Int64
}

// New creates a Feed.
func New(opts Options) *Feed {
	if opts.PageDays <= 0 {
		opts.PageDays = 7
	}
	opts.Start = opts.Start.UTC().Truncate(24 * time.Hour)
	return &Feed{opts: opts}
}

// Requests returns the number of requests served.
func (f *Feed) Requests() int {
	return int(f.requests.Load())
}

// TotalObjects returns the number of objects across the whole feed.
func (f *Feed) TotalObjects() int {
	return f.opts.Days * f.opts.PerDay
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := f.requests.Add(1)
	q := r.URL.Query()

	if f.opts.APIKey != "" && q.Get("api_key") != f.opts.APIKey {
		writeError(w, http.StatusForbidden, "API_KEY_INVALID")
		return
	}
	if f.opts.FailOnPage > 0 && int(n) == f.opts.FailOnPage {
		writeError(w, http.StatusServiceUnavailable, "upstream unavailable")
		return
	}

	start, err := time.Parse(dateLayout, q.Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}

	buckets := make(map[string][]map[string]any)
	count := 0
	for d := 0; d < f.opts.PageDays; d++ {
		day := start.AddDate(0, 0, d)
		idx := f.dayIndex(day)
		if idx < 0 || idx >= f.opts.Days {
			continue
		}
		objs := make([]map[string]any, 0, f.opts.PerDay)
		for i := 0; i < f.opts.PerDay; i++ {
			objs = append(objs, f.Object(idx, i))
		}
		buckets[day.Format(dateLayout)] = objs
		count += len(objs)
	}

	links := map[string]any{"self": f.link(r, start), "next": nil}
	nextStart := start.AddDate(0, 0, f.opts.PageDays)
	if f.dayIndex(nextStart) < f.opts.Days {
		links["next"] = f.link(r, nextStart)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"links":              links,
		"element_count":      count,
		"near_earth_objects": buckets,
	})
}

func (f *Feed) dayIndex(day time.Time) int {
	return int(day.Sub(f.opts.Start).Hours() / 24)
}

func (f *Feed) link(r *http.Request, start time.Time) string {
	u := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
	params := url.Values{
		"start_date": {start.Format(dateLayout)},
		"end_date":   {start.AddDate(0, 0, f.opts.PageDays).Format(dateLayout)},
		"detailed":   {"false"},
		"api_key":    {r.URL.Query().Get("api_key")},
	}
	u.RawQuery = params.Encode()
	return u.String()
}

// Object returns the i-th object of day index day, shaped like a NeoWs feed
// entry. Numeric approach fields are strings, as in the real feed.
func (f *Feed) Object(day, i int) map[string]any {
	seq := day*f.opts.PerDay + i + 1
	id := strconv.Itoa(3000000 + day*1000 + i)
	date := f.opts.Start.AddDate(0, 0, day).Format(dateLayout)

	dMin := 0.01 + float64(seq%50)*0.02
	kmph := 15000.0 + float64((seq*7919)%90000)
	au := 0.001 + float64((seq*31)%500)/1000
	approach := map[string]any{
		"close_approach_date":      date,
		"close_approach_date_full": date + " 12:00",
		"relative_velocity": map[string]any{
			"kilometers_per_second": strconv.FormatFloat(kmph/3600, 'f', 6, 64),
			"kilometers_per_hour":   strconv.FormatFloat(kmph, 'f', 4, 64),
		},
		"miss_distance": map[string]any{
			"astronomical": strconv.FormatFloat(au, 'f', 10, 64),
			"lunar":        strconv.FormatFloat(au*389.17, 'f', 6, 64),
			"kilometers":   strconv.FormatFloat(au*149597870.7, 'f', 3, 64),
		},
		"orbiting_body": "Earth",
	}
	later := map[string]any{
		"close_approach_date": f.opts.Start.AddDate(1, 0, day).Format(dateLayout),
		"relative_velocity":   map[string]any{"kilometers_per_hour": "1.0"},
		"miss_distance":       map[string]any{"astronomical": "1", "lunar": "389", "kilometers": "149597870"},
		"orbiting_body":       "Mars",
	}

	obj := map[string]any{
		"id":                   id,
		"neo_reference_id":     id,
		"name":                 fmt.Sprintf("(%d MF%d)", 2000+seq%25, seq),
		"nasa_jpl_url":         "https://ssd.jpl.nasa.gov/tools/sbdb_lookup.html#/?sstr=" + id,
		"absolute_magnitude_h": 17.5 + float64(seq%80)/10,
		"estimated_diameter": map[string]any{
			"kilometers": map[string]any{
				"estimated_diameter_min": dMin,
				"estimated_diameter_max": dMin * 2.236,
			},
		},
		"is_potentially_hazardous_asteroid": seq%4 == 0,
		"close_approach_data":               []any{approach, later},
		"is_sentry_object":                  false,
	}

	if every := f.opts.MissingMagnitudeEvery; every > 0 && seq%every == 0 {
		delete(obj, "absolute_magnitude_h")
	}
	if every := f.opts.NoApproachEvery; every > 0 && seq%every == 0 {
		obj["close_approach_data"] = []any{}
	}
	return obj
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":          status,
		"error_message": msg,
	})
}
