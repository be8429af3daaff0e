package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrInvalidFilter is returned for filter values that cannot be applied.
var ErrInvalidFilter = errors.New("invalid filter")

// FilterLimit caps the rows returned by the approach filter.
const FilterLimit = 1000

// Default velocity range in km/h.
const (
	DefaultVelocityMin = 0
	DefaultVelocityMax = 100000
)

// Hazard selects objects by the potentially-hazardous flag.
type Hazard string

const (
	HazardAll Hazard = "All"
	HazardYes Hazard = "Yes"
	HazardNo  Hazard = "No"
)

// ParseHazard accepts All, Yes or No in any case. Empty means All.
func ParseHazard(s string) (Hazard, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return HazardAll, nil
	case "yes", "true":
		return HazardYes, nil
	case "no", "false":
		return HazardNo, nil
	default:
		return "", fmt.Errorf("%w: hazardous must be All, Yes or No, got %q", ErrInvalidFilter, s)
	}
}

// Filter selects joined approach rows. Zero values for AUMax, LunarMax,
// DiameterMin and DiameterMax disable their clause; the velocity range is
// always applied.
type Filter struct {
	Date        string // YYYY-MM-DD, optional
	VelocityMin float64
	VelocityMax float64
	AUMax       float64
	LunarMax    float64
	DiameterMin float64
	DiameterMax float64
	Hazardous   Hazard
}

// DefaultFilter returns a filter that only applies the default velocity range.
func DefaultFilter() Filter {
	return Filter{
		VelocityMin: DefaultVelocityMin,
		VelocityMax: DefaultVelocityMax,
		Hazardous:   HazardAll,
	}
}

// Validate reports the first unusable value, wrapped in ErrInvalidFilter.
func (f Filter) Validate() error {
	if f.Date != "" {
		if _, err := time.Parse("2006-01-02", f.Date); err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", ErrInvalidFilter, f.Date)
		}
	}
	numbers := []struct {
		name  string
		value float64
	}{
		{"velocity_min", f.VelocityMin},
		{"velocity_max", f.VelocityMax},
		{"au_max", f.AUMax},
		{"lunar_max", f.LunarMax},
		{"diameter_min", f.DiameterMin},
		{"diameter_max", f.DiameterMax},
	}
	for _, n := range numbers {
		if math.IsNaN(n.value) || math.IsInf(n.value, 0) || n.value < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidFilter, n.name)
		}
	}
	if f.VelocityMin > f.VelocityMax {
		return fmt.Errorf("%w: velocity_min %g exceeds velocity_max %g", ErrInvalidFilter, f.VelocityMin, f.VelocityMax)
	}
	switch f.Hazardous {
	case "", HazardAll, HazardYes, HazardNo:
	default:
		return fmt.Errorf("%w: unknown hazard selector %q", ErrInvalidFilter, f.Hazardous)
	}
	return nil
}

// Build returns the WHERE predicate and its bound arguments. Every value is
// passed as an argument; none is written into the SQL text.
func (f Filter) Build() (string, []any, error) {
	if err := f.Validate(); err != nil {
		return "", nil, err
	}

	var (
		clauses []string
		args    []any
	)
	add := func(clause string, vals ...any) {
		clauses = append(clauses, clause)
		args = append(args, vals...)
	}

	if f.Date != "" {
		add("DATE(c.close_approach_date) = DATE(?)", f.Date)
	}
	add("c.relative_velocity_kmph BETWEEN ? AND ?", f.VelocityMin, f.VelocityMax)
	if f.AUMax > 0 {
		add("c.astronomical <= ?", f.AUMax)
	}
	if f.LunarMax > 0 {
		add("c.miss_distance_lunar <= ?", f.LunarMax)
	}
	if f.DiameterMin > 0 {
		add("(a.estimated_diameter_max_km >= ? OR a.estimated_diameter_min_km >= ?)", f.DiameterMin, f.DiameterMin)
	}
	if f.DiameterMax > 0 {
		add("(a.estimated_diameter_max_km <= ? OR a.estimated_diameter_min_km <= ?)", f.DiameterMax, f.DiameterMax)
	}
	switch f.Hazardous {
	case HazardYes:
		add("a.is_potentially_hazardous_asteroid = ?", 1)
	case HazardNo:
		add("a.is_potentially_hazardous_asteroid = ?", 0)
	}

	return strings.Join(clauses, " AND "), args, nil
}

const filterSelect = `SELECT a.name,
	c.close_approach_date,
	c.relative_velocity_kmph,
	c.astronomical,
	c.miss_distance_km,
	c.miss_distance_lunar,
	a.estimated_diameter_min_km,
	a.estimated_diameter_max_km,
	a.absolute_magnitude_h,
	a.is_potentially_hazardous_asteroid
FROM asteroids a
JOIN close_approach c ON a.id = c.neo_reference_id`

func filterStatement(where string) string {
	return fmt.Sprintf("%s\nWHERE %s\nORDER BY c.close_approach_date DESC\nLIMIT %d", filterSelect, where, FilterLimit)
}

// RunFilter returns up to FilterLimit approach rows matching f, newest first.
func RunFilter(ctx context.Context, db *gorm.DB, f Filter) (Result, error) {
	where, args, err := f.Build()
	if err != nil {
		return Result{}, err
	}
	return execute(ctx, db, filterStatement(where), args...)
}
