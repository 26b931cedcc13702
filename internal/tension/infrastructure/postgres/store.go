package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
)

const defaultReadingsTable = "tension_readings"

// Store is a Postgres-backed reading history. It satisfies the same
// contract as the in-memory store and is selected by the integrator
// when durable history is wanted.
type Store struct {
	db    *sql.DB
	table string
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithTable overrides the default table name.
func WithTable(table string) StoreOption {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

// NewStore constructs a store with the default table name.
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	store := &Store{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Append inserts one reading.
func (s *Store) Append(ctx context.Context, reading tension.Reading) error {
	if s == nil || s.db == nil {
		return errors.New("tension store: nil db")
	}
	if reading.LineID == "" || reading.Timestamp.IsZero() {
		return errors.New("tension store: missing line id or timestamp")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	line_id,
	ts,
	tension_value,
	status,
	temperature,
	humidity,
	wind_speed,
	wind_direction,
	distance_to_port,
	line_length,
	raw_timestamp
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)`, s.table)

	_, err := s.db.ExecContext(
		ctx,
		query,
		reading.LineID,
		reading.Timestamp,
		reading.TensionValue,
		reading.Status,
		nullFloat(reading.Temperature),
		nullFloat(reading.Humidity),
		nullFloat(reading.WindSpeed),
		nullFloat(reading.WindDirection),
		nullFloat(reading.DistanceToPort),
		nullFloat(reading.LineLength),
		sql.NullString{String: reading.RawTimestamp, Valid: reading.RawTimestamp != ""},
	)
	return err
}

// Query returns readings for one line within [from, to], ascending.
func (s *Store) Query(ctx context.Context, lineID string, from, to time.Time) ([]tension.Reading, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("tension store: nil db")
	}
	if lineID == "" {
		return nil, errors.New("tension store: empty line id")
	}

	query := fmt.Sprintf(`
SELECT ts, tension_value, status, temperature, humidity, wind_speed, wind_direction, distance_to_port, line_length, raw_timestamp
FROM %s
WHERE line_id = $1
	AND ts >= $2
	AND ts <= $3
ORDER BY ts ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, query, lineID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []tension.Reading
	for rows.Next() {
		var (
			reading                       tension.Reading
			temp, humidity, wind, windDir sql.NullFloat64
			distance, length              sql.NullFloat64
			rawTS                         sql.NullString
		)
		if err := rows.Scan(
			&reading.Timestamp,
			&reading.TensionValue,
			&reading.Status,
			&temp,
			&humidity,
			&wind,
			&windDir,
			&distance,
			&length,
			&rawTS,
		); err != nil {
			return nil, err
		}
		reading.LineID = lineID
		reading.Temperature = floatPtr(temp)
		reading.Humidity = floatPtr(humidity)
		reading.WindSpeed = floatPtr(wind)
		reading.WindDirection = floatPtr(windDir)
		reading.DistanceToPort = floatPtr(distance)
		reading.LineLength = floatPtr(length)
		reading.RawTimestamp = rawTS.String
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
