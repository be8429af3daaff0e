package store

import (
	"time"

	"github.com/couchcryptid/neo-data-etl/internal/domain"
)

// asteroidRow maps one row of the asteroids table. The primaryKey tag only
// tells gorm which column identifies the object; the table itself has no key.
type asteroidRow struct {
	ID                     int64   `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name                   string  `gorm:"column:name"`
	AbsoluteMagnitudeH     float64 `gorm:"column:absolute_magnitude_h"`
	EstimatedDiameterMinKm float64 `gorm:"column:estimated_diameter_min_km"`
	EstimatedDiameterMaxKm float64 `gorm:"column:estimated_diameter_max_km"`
	Hazardous              bool    `gorm:"column:is_potentially_hazardous_asteroid"`
}

func (asteroidRow) TableName() string { return TableAsteroids }

func newAsteroidRow(neo domain.NearEarthObject) asteroidRow {
	return asteroidRow{
		ID:                     neo.ID,
		Name:                   neo.Name,
		AbsoluteMagnitudeH:     neo.AbsoluteMagnitudeH,
		EstimatedDiameterMinKm: neo.DiameterMinKm,
		EstimatedDiameterMaxKm: neo.DiameterMaxKm,
		Hazardous:              neo.Hazardous,
	}
}

// approachRow maps one row of the close_approach table.
type approachRow struct {
	NeoReferenceID       int64   `gorm:"column:neo_reference_id"`
	CloseApproachDate    string  `gorm:"column:close_approach_date"`
	RelativeVelocityKmph float64 `gorm:"column:relative_velocity_kmph"`
	Astronomical         float64 `gorm:"column:astronomical"`
	MissDistanceKm       float64 `gorm:"column:miss_distance_km"`
	MissDistanceLunar    float64 `gorm:"column:miss_distance_lunar"`
	OrbitingBody         string  `gorm:"column:orbiting_body"`
}

func (approachRow) TableName() string { return TableCloseApproach }

func newApproachRow(ca domain.CloseApproach) approachRow {
	return approachRow{
		NeoReferenceID:       ca.ReferenceID,
		CloseApproachDate:    ca.Date,
		RelativeVelocityKmph: ca.VelocityKmph,
		Astronomical:         ca.MissAstronomical,
		MissDistanceKm:       ca.MissKm,
		MissDistanceLunar:    ca.MissLunar,
		OrbitingBody:         ca.OrbitingBody,
	}
}

// IngestionRun is the persisted report of one ingestion run.
type IngestionRun struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	StartDate   string    `gorm:"type:varchar(10)" json:"start_date"`
	Budget      int       `json:"budget"`
	StartedAt   time.Time `gorm:"index" json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Pages       int       `json:"pages"`
	Objects     int       `json:"objects"`
	Normalized  int       `json:"normalized"`
	Interrupted bool      `json:"interrupted"`
	FetchError  string    `gorm:"type:text" json:"fetch_error,omitempty"`

	DroppedNoCloseApproach int `json:"dropped_no_close_approach"`
	DroppedMissingField    int `json:"dropped_missing_field"`
	DroppedMalformedField  int `json:"dropped_malformed_field"`

	AsteroidRows     int `json:"asteroid_rows"`
	AsteroidFailures int `json:"asteroid_failures"`
	ApproachRows     int `json:"approach_rows"`
	ApproachFailures int `json:"approach_failures"`
	Published        int `json:"published"`
	PublishFailures  int `json:"publish_failures"`
}

func (IngestionRun) TableName() string { return TableRuns }

func newIngestionRun(s domain.RunSummary) IngestionRun {
	return IngestionRun{
		ID:          s.RunID,
		StartDate:   s.StartDate,
		Budget:      s.Budget,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		Pages:       s.Pages,
		Objects:     s.Objects,
		Normalized:  s.Normalized,
		Interrupted: s.Interrupted,
		FetchError:  s.FetchError,

		DroppedNoCloseApproach: s.Dropped[domain.DropNoCloseApproach],
		DroppedMissingField:    s.Dropped[domain.DropMissingField],
		DroppedMalformedField:  s.Dropped[domain.DropMalformedField],

		AsteroidRows:     s.AsteroidRows,
		AsteroidFailures: s.AsteroidFailures,
		ApproachRows:     s.ApproachRows,
		ApproachFailures: s.ApproachFailures,
		Published:        s.Published,
		PublishFailures:  s.PublishFailures,
	}
}
