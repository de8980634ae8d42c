package db

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/unklstewy/skytrail/pkg/config"
	"github.com/unklstewy/skytrail/pkg/coordinates"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

// TestConnString tests connection string construction.
func TestConnString(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Username: "testuser",
		Password: "testpass",
		Database: "testdb",
	}

	got := connString(cfg)
	want := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	cfg.SSLMode = "require"
	if !strings.HasSuffix(connString(cfg), "sslmode=require") {
		t.Errorf("Expected explicit sslmode, got %q", connString(cfg))
	}
}

// TestConnect tests that an unreachable server produces an error.
func TestConnect(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:         "127.0.0.1",
		Port:         1,
		Username:     "testuser",
		Password:     "testpass",
		Database:     "testdb",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	}

	db, err := Connect(context.Background(), cfg)
	if err == nil {
		db.Close()
		t.Skip("Something is listening on port 1")
	}
	if !strings.Contains(err.Error(), "failed to ping database") {
		t.Errorf("Expected ping error, got: %v", err)
	}
}

// TestSchemaEmbedded tests that the schema ships with the binary.
func TestSchemaEmbedded(t *testing.T) {
	b, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		t.Fatalf("Expected embedded schema, got: %v", err)
	}
	for _, table := range []string{"aircraft", "observations"} {
		if !strings.Contains(string(b), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("Expected schema to create %s", table)
		}
	}
}

// TestRetention tests the retention default.
func TestRetention(t *testing.T) {
	db := &DB{}
	if db.Retention() != 24*time.Hour {
		t.Errorf("Expected 24h default retention, got %v", db.Retention())
	}
	db.config.RetentionHours = 6
	if db.Retention() != 6*time.Hour {
		t.Errorf("Expected 6h retention, got %v", db.Retention())
	}
}

// TestEnsureConnectionUnreachable tests that a failed reconnect returns no connection.
func TestEnsureConnectionUnreachable(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "127.0.0.1", Port: 1, Username: "x", Password: "x", Database: "x"}

	db, err := EnsureConnection(context.Background(), nil, cfg, 1, time.Millisecond, nil)
	if err == nil {
		db.Close()
		t.Skip("Something is listening on port 1")
	}
	if db != nil {
		t.Errorf("Expected nil connection, got %v", db)
	}
	if !strings.Contains(err.Error(), "failed to ping database") {
		t.Errorf("Expected ping error, got: %v", err)
	}
}

// TestHealthCheckNil tests that a missing connection is unhealthy.
func TestHealthCheckNil(t *testing.T) {
	if err := HealthCheck(context.Background(), nil); err == nil {
		t.Error("Expected error for nil database")
	}
}

// TestIsConnError tests transient error classification.
func TestIsConnError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("dial tcp: Connection Refused"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New(`pq: relation "x" does not exist`), false},
	}

	for _, tt := range tests {
		if got := isConnError(tt.err); got != tt.expected {
			t.Errorf("isConnError(%v) = %v, expected %v", tt.err, got, tt.expected)
		}
	}
}

// TestWithRetry tests that only connection errors are retried.
func TestWithRetry(t *testing.T) {
	t.Run("Non-connection error returns immediately", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return errors.New("syntax error")
		}, 3)
		if err == nil || calls != 1 {
			t.Errorf("Expected 1 call and an error, got %d calls, err=%v", calls, err)
		}
	})

	t.Run("Connection error is retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls == 1 {
				return errors.New("connection reset by peer")
			}
			return nil
		}, 1)
		if err != nil || calls != 2 {
			t.Errorf("Expected success on 2nd call, got %d calls, err=%v", calls, err)
		}
	})

	t.Run("Cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error { return errors.New("timeout") }, 5)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

// fakeRow assigns canned values to Scan destinations in order.
type fakeRow []any

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r[i]))
	}
	return nil
}

// TestObservationColumnsRoundTrip tests that the insert arguments scan back
// into the same update.
func TestObservationColumnsRoundTrip(t *testing.T) {
	observed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	track, vr := 91.5, -2.0
	onGround := false

	u := timeline.Update{
		ID: "abc123",
		Observation: timeline.Observation{
			Position:        coordinates.Geographic{Latitude: 35.1, Longitude: -80.2, Altitude: 3048},
			Heading:         90,
			HeadingReliable: true,
			GroundSpeed:     250,
			GroundTrack:     &track,
			OnGround:        &onGround,
			VerticalRate:    &vr,
			ObservedAt:      observed,
			ReceivedAt:      observed.Add(700 * time.Millisecond),
			Source:          "airplanes.live",
			DisplayDelay:    3 * time.Second,
		},
		Metadata: timeline.Metadata{Callsign: "UAL123", Squawk: "1200"},
	}

	args := observationArgs(u)
	if len(args) != 15 {
		t.Fatalf("Expected 15 observation args, got %d", len(args))
	}
	if args[11] != (sql.NullFloat64{}) {
		t.Errorf("Expected NULL roll, got %v", args[11])
	}

	m := u.Metadata
	row := fakeRow{
		args[0].(string), args[1].(time.Time), args[2].(time.Time),
		args[3].(float64), args[4].(float64), args[5].(float64),
		args[6].(float64), args[7].(bool), args[8].(float64),
		args[9].(sql.NullFloat64), args[10].(sql.NullBool), args[11].(sql.NullFloat64), args[12].(sql.NullFloat64),
		args[13].(string), args[14].(int64),
		m.Callsign, m.Registration, m.AircraftType, m.Category,
		m.Squawk, m.Origin, m.Destination,
	}

	got, err := scanUpdate(row)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !reflect.DeepEqual(got, u) {
		t.Errorf("Round trip mismatch:\n got  %+v\n want %+v", got, u)
	}
}

// TestAircraftArgs tests the aircraft upsert arguments.
func TestAircraftArgs(t *testing.T) {
	local := time.Date(2024, 6, 1, 8, 0, 0, 0, time.FixedZone("EDT", -4*3600))
	u := timeline.Update{
		ID:          "abc",
		Observation: timeline.Observation{ObservedAt: local, Source: "feed"},
		Metadata:    timeline.Metadata{Callsign: "DAL1", Destination: "KCLT"},
	}

	args := aircraftArgs(u)
	if len(args) != 10 {
		t.Fatalf("Expected 10 aircraft args, got %d", len(args))
	}
	if args[7] != "KCLT" || args[8] != "feed" {
		t.Errorf("Unexpected destination/source: %v %v", args[7], args[8])
	}
	if ts := args[9].(time.Time); ts.Location() != time.UTC || !ts.Equal(local) {
		t.Errorf("Expected UTC timestamp equal to %v, got %v", local, ts)
	}
}
