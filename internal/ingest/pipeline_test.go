package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/skytrail/internal/db"
	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/pkg/config"
	"github.com/unklstewy/skytrail/pkg/history"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

func fakeAirplanesLive(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/point/"), "unexpected path %s", r.URL.Path)
		fmt.Fprintf(w, `{"ac":[{"hex":"A12345","flight":"UAL123 ","lat":35.5,"lon":-80.5,"alt_baro":30000,"gs":450,"track":90,"seen":0.5}],"now":%d,"total":1}`,
			time.Now().UnixMilli())
	}))
}

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Observer.Latitude = 35
	cfg.Observer.Longitude = -80
	cfg.ADSB.Sources = []config.ADSBSource{{
		Name:                  "test",
		Type:                  "airplanes.live",
		Enabled:               true,
		BaseURL:               baseURL,
		UpdateIntervalSeconds: 0.05,
		DisplayDelaySeconds:   2,
	}}
	return cfg
}

func TestNewRequiresSource(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.ADSB.Sources[0].Enabled = false

	_, err := New(cfg, logging.NewWriter(io.Discard, "error"))
	assert.Error(t, err)
}

func TestNewRejectsUnknownType(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.ADSB.Sources[0].Type = "carrier-pigeon"

	_, err := New(cfg, logging.NewWriter(io.Discard, "error"))
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func TestRegions(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.ADSB.CollectionRegions = []config.CollectionRegion{
		{Name: "on", Latitude: 1, Longitude: 2, RadiusNM: 30, Enabled: true},
		{Name: "off", Enabled: false},
	}

	regions := Regions(cfg)
	require.Len(t, regions, 1)
	assert.Equal(t, "on", regions[0].Name)
	assert.Equal(t, 30.0, regions[0].RadiusNM)
}

func TestPipelineRecordsToStoreAndArchive(t *testing.T) {
	server := fakeAirplanesLive(t)
	defer server.Close()

	cfg := testConfig(server.URL)
	archive, path, err := OpenArchive(t.TempDir(), time.Now())
	require.NoError(t, err)

	p, err := New(cfg, logging.NewWriter(io.Discard, "error"), WithArchive(archive))
	require.NoError(t, err)
	require.Len(t, p.Feeds, 1)
	assert.Equal(t, 2*time.Second, p.Feeds[0].DisplayDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	p.Run(ctx)
	require.NoError(t, p.Close())

	assert.Equal(t, []string{"a12345"}, p.Store.IDs())
	tl, ok := p.Store.Timeline("a12345")
	require.True(t, ok)
	assert.Equal(t, "UAL123", tl.Metadata.Callsign)
	assert.Equal(t, "test", tl.LastSource)

	updates, err := history.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, updates)
	assert.Equal(t, "a12345", updates[0].ID)
	assert.Equal(t, 2*time.Second, updates[0].Observation.DisplayDelay)

	_, hasDB, err := p.Stats(context.Background())
	assert.NoError(t, err)
	assert.False(t, hasDB)
}

func TestArchivePath(t *testing.T) {
	ts := time.Date(2024, 6, 1, 8, 30, 0, 0, time.FixedZone("EDT", -4*3600))
	assert.Equal(t, filepath.Join("h", "skytrail-20240601T123000Z.sth"), ArchivePath("h", ts))
}

func TestPersistDropsDeadConnection(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = 1
	cfg.Database.SSLMode = "disable"

	sqlDB, err := sql.Open("postgres", "host=127.0.0.1 port=1 user=x password=x dbname=x sslmode=disable")
	require.NoError(t, err)
	if sqlDB.Ping() == nil {
		sqlDB.Close()
		t.Skip("Something is listening on port 1")
	}
	dead := &db.DB{DB: sqlDB}

	p, err := New(cfg, logging.NewWriter(io.Discard, "error"), WithDatabase(dead))
	require.NoError(t, err)
	p.reconnectTries = 1
	p.reconnectDelay = time.Millisecond

	updates := []timeline.Update{{ID: "a12345", Observation: timeline.Observation{ObservedAt: time.Now()}}}
	assert.Zero(t, p.persist(updates))
	assert.Nil(t, p.database, "closed connection is not reused")
	assert.Nil(t, p.repo)
	assert.False(t, p.ownsDB)

	// With no connection left, the next batch tries to reconnect again.
	assert.Zero(t, p.persist(updates))

	_, hasDB, err := p.Stats(context.Background())
	assert.True(t, hasDB)
	assert.ErrorContains(t, err, "database unavailable")
	require.NoError(t, p.Close())
}
