package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unklstewy/skytrail/pkg/coordinates"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

// ObservationRepository stores timeline updates and reads them back as
// replayable history.
type ObservationRepository struct {
	db *DB
}

// NewObservationRepository creates a new observation repository.
func NewObservationRepository(db *DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// ObservationStats summarizes what has been recorded.
type ObservationStats struct {
	Aircraft     int
	Observations int64
	Oldest       time.Time
	Newest       time.Time
}

const upsertAircraftSQL = `INSERT INTO aircraft (
		id, callsign, registration, aircraft_type, category, squawk,
		origin, destination, last_source, first_seen, last_seen, observation_count
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, 0)
	ON CONFLICT (id) DO UPDATE SET
		callsign = EXCLUDED.callsign,
		registration = EXCLUDED.registration,
		aircraft_type = EXCLUDED.aircraft_type,
		category = EXCLUDED.category,
		squawk = EXCLUDED.squawk,
		origin = EXCLUDED.origin,
		destination = EXCLUDED.destination,
		last_source = EXCLUDED.last_source,
		last_seen = GREATEST(aircraft.last_seen, EXCLUDED.last_seen)`

const insertObservationSQL = `INSERT INTO observations (
		aircraft_id, observed_at, received_at, latitude, longitude, altitude_m,
		heading_deg, heading_reliable, ground_speed_kts, ground_track_deg,
		on_ground, roll_deg, vertical_rate_ms, source, display_delay_ms
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (aircraft_id, observed_at) DO NOTHING`

const countObservationSQL = `UPDATE aircraft SET observation_count = observation_count + 1 WHERE id = $1`

// Insert records a batch of updates in one transaction. Samples already
// recorded for the same aircraft and observation time are skipped.
// Returns the number of new observation rows.
func (r *ObservationRepository) Insert(ctx context.Context, updates []timeline.Update) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, u := range updates {
		if u.ID == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, upsertAircraftSQL, aircraftArgs(u)...); err != nil {
			return 0, fmt.Errorf("failed to upsert aircraft %s: %w", u.ID, err)
		}

		res, err := tx.ExecContext(ctx, insertObservationSQL, observationArgs(u)...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert observation for %s: %w", u.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
			if _, err := tx.ExecContext(ctx, countObservationSQL, u.ID); err != nil {
				return 0, fmt.Errorf("failed to count observation for %s: %w", u.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit observations: %w", err)
	}
	return inserted, nil
}

// LoadHistory returns every observation with from <= observed_at < to,
// oldest first, as updates suitable for timeline.Store.LoadHistory.
// Metadata is the aircraft's most recent; per-sample metadata is not kept.
func (r *ObservationRepository) LoadHistory(ctx context.Context, from, to time.Time) ([]timeline.Update, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT o.aircraft_id, o.observed_at, o.received_at,
		        o.latitude, o.longitude, o.altitude_m,
		        o.heading_deg, o.heading_reliable, o.ground_speed_kts,
		        o.ground_track_deg, o.on_ground, o.roll_deg, o.vertical_rate_ms,
		        o.source, o.display_delay_ms,
		        a.callsign, a.registration, a.aircraft_type, a.category,
		        a.squawk, a.origin, a.destination
		 FROM observations o
		 JOIN aircraft a ON a.id = o.aircraft_id
		 WHERE o.observed_at >= $1 AND o.observed_at < $2
		 ORDER BY o.observed_at ASC, o.aircraft_id ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var updates []timeline.Update
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// Stats returns counts and the recorded time range.
func (r *ObservationRepository) Stats(ctx context.Context) (ObservationStats, error) {
	var stats ObservationStats

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM aircraft`,
	).Scan(&stats.Aircraft); err != nil {
		return stats, fmt.Errorf("failed to count aircraft: %w", err)
	}

	var oldest, newest sql.NullTime
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(observed_at), MAX(observed_at) FROM observations`,
	).Scan(&stats.Observations, &oldest, &newest); err != nil {
		return stats, fmt.Errorf("failed to count observations: %w", err)
	}
	if oldest.Valid {
		stats.Oldest = oldest.Time
	}
	if newest.Valid {
		stats.Newest = newest.Time
	}
	return stats, nil
}

func aircraftArgs(u timeline.Update) []any {
	m := u.Metadata
	return []any{
		u.ID, m.Callsign, m.Registration, m.AircraftType, m.Category, m.Squawk,
		m.Origin, m.Destination, u.Observation.Source, u.Observation.ObservedAt.UTC(),
	}
}

func observationArgs(u timeline.Update) []any {
	o := u.Observation
	return []any{
		u.ID, o.ObservedAt.UTC(), o.ReceivedAt.UTC(),
		o.Position.Latitude, o.Position.Longitude, o.Position.Altitude,
		o.Heading, o.HeadingReliable, o.GroundSpeed,
		nullFloat(o.GroundTrack), nullBool(o.OnGround), nullFloat(o.Roll), nullFloat(o.VerticalRate),
		o.Source, o.DisplayDelay.Milliseconds(),
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpdate(row rowScanner) (timeline.Update, error) {
	var (
		u               timeline.Update
		o               = &u.Observation
		m               = &u.Metadata
		track, roll, vr sql.NullFloat64
		onGround        sql.NullBool
		delayMS         int64
		lat, lon, alt   float64
	)
	err := row.Scan(
		&u.ID, &o.ObservedAt, &o.ReceivedAt,
		&lat, &lon, &alt,
		&o.Heading, &o.HeadingReliable, &o.GroundSpeed,
		&track, &onGround, &roll, &vr,
		&o.Source, &delayMS,
		&m.Callsign, &m.Registration, &m.AircraftType, &m.Category,
		&m.Squawk, &m.Origin, &m.Destination,
	)
	if err != nil {
		return u, err
	}
	o.Position = coordinates.Geographic{Latitude: lat, Longitude: lon, Altitude: alt}
	o.GroundTrack = floatPtr(track)
	o.Roll = floatPtr(roll)
	o.VerticalRate = floatPtr(vr)
	o.OnGround = boolPtr(onGround)
	o.DisplayDelay = time.Duration(delayMS) * time.Millisecond
	return u, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}
