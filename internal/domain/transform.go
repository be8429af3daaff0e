package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// FieldError reports the field that caused an object to be rejected.
type FieldError struct {
	Field  string
	Reason DropReason
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Field)
}

// NormalizePage flattens every object of a page into records. Buckets are
// visited in ascending date order and objects in feed order. Each object
// yields exactly one record or one drop.
func NormalizePage(page FeedPage) PageResult {
	dates := make([]string, 0, len(page.Buckets))
	for d := range page.Buckets {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	res := PageResult{Records: make([]Record, 0, page.ObjectCount())}
	for _, date := range dates {
		for _, obj := range page.Buckets[date] {
			rec, err := Normalize(obj)
			if err != nil {
				res.Drops = append(res.Drops, newDrop(date, obj, err))
				continue
			}
			rec.Bucket = date
			res.Records = append(res.Records, rec)
		}
	}
	return res
}

// Normalize extracts the identity fields and the first close approach of a
// raw object. Any absent or mistyped required field rejects the whole object
// with a *FieldError.
func Normalize(obj RawObject) (Record, error) {
	approach, err := firstApproach(obj)
	if err != nil {
		return Record{}, err
	}

	x := extractor{obj: obj}
	neo := NearEarthObject{
		ID:                 x.integer("id"),
		ReferenceID:        x.integer("neo_reference_id"),
		Name:               x.text("name"),
		AbsoluteMagnitudeH: x.number("absolute_magnitude_h"),
		DiameterMinKm:      x.number("estimated_diameter", "kilometers", "estimated_diameter_min"),
		DiameterMaxKm:      x.number("estimated_diameter", "kilometers", "estimated_diameter_max"),
		Hazardous:          x.flag("is_potentially_hazardous_asteroid"),
	}
	if x.err != nil {
		return Record{}, x.err
	}

	a := extractor{obj: approach, prefix: "close_approach_data.0"}
	ca := CloseApproach{
		ReferenceID:      neo.ReferenceID,
		Date:             a.text("close_approach_date"),
		VelocityKmph:     a.number("relative_velocity", "kilometers_per_hour"),
		MissAstronomical: a.number("miss_distance", "astronomical"),
		MissKm:           a.number("miss_distance", "kilometers"),
		MissLunar:        a.number("miss_distance", "lunar"),
		OrbitingBody:     a.text("orbiting_body"),
	}
	if a.err != nil {
		return Record{}, a.err
	}

	return Record{Object: neo, Approach: ca}, nil
}

// firstApproach returns the first entry of close_approach_data. Later entries
// are ignored.
func firstApproach(obj RawObject) (map[string]any, error) {
	const field = "close_approach_data"
	v, ok := obj[field]
	if !ok || v == nil {
		return nil, &FieldError{Field: field, Reason: DropNoCloseApproach}
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, &FieldError{Field: field, Reason: DropNoCloseApproach}
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return nil, &FieldError{Field: field + ".0", Reason: DropMalformedField}
	}
	return first, nil
}

func newDrop(bucket string, obj RawObject, err error) Drop {
	d := Drop{Bucket: bucket, Reason: DropMalformedField, Field: "?"}
	var fe *FieldError
	if errors.As(err, &fe) {
		d.Reason = fe.Reason
		d.Field = fe.Field
	}
	switch id := obj["id"].(type) {
	case string:
		d.ObjectID = id
	case json.Number:
		d.ObjectID = id.String()
	}
	return d
}

// extractor reads typed fields from a decoded JSON object and keeps the first
// failure. Once err is set every later read returns the zero value.
type extractor struct {
	obj    map[string]any
	prefix string
	err    *FieldError
}

func (x *extractor) path(keys []string) string {
	p := strings.Join(keys, ".")
	if x.prefix != "" {
		return x.prefix + "." + p
	}
	return p
}

func (x *extractor) fail(keys []string, reason DropReason) {
	x.err = &FieldError{Field: x.path(keys), Reason: reason}
}

// lookup walks nested objects. It reports missing for an absent or null leaf
// and malformed when an intermediate value is not an object.
func (x *extractor) lookup(keys []string) (any, bool) {
	if x.err != nil {
		return nil, false
	}
	cur := x.obj
	for i, k := range keys {
		v, ok := cur[k]
		if !ok || v == nil {
			x.fail(keys[:i+1], DropMissingField)
			return nil, false
		}
		if i == len(keys)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			x.fail(keys[:i+1], DropMalformedField)
			return nil, false
		}
		cur = next
	}
	return nil, false
}

func (x *extractor) text(keys ...string) string {
	v, ok := x.lookup(keys)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		x.fail(keys, DropMalformedField)
		return ""
	}
	return s
}

func (x *extractor) number(keys ...string) float64 {
	v, ok := x.lookup(keys)
	if !ok {
		return 0
	}
	f, ok := coerceFloat(v)
	if !ok {
		x.fail(keys, DropMalformedField)
		return 0
	}
	return f
}

func (x *extractor) integer(keys ...string) int64 {
	v, ok := x.lookup(keys)
	if !ok {
		return 0
	}
	n, ok := coerceInt(v)
	if !ok {
		x.fail(keys, DropMalformedField)
		return 0
	}
	return n
}

func (x *extractor) flag(keys ...string) bool {
	v, ok := x.lookup(keys)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		x.fail(keys, DropMalformedField)
		return false
	}
	return b
}

// coerceFloat accepts a JSON number or a decimal string. Non-finite values
// are rejected.
func coerceFloat(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// coerceInt accepts an integral JSON number or an integer string.
func coerceInt(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// floatToInt accepts integral floats that fit in an int64.
func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}
