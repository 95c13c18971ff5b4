package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raywatch/internal/domain"
	"raywatch/internal/service"
)

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// clock returns a controllable now func
func clock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func statusEvent(addr, hostname, status string) domain.Event {
	return domain.StatusUpdate(domain.NewDeviceInfo(domain.Unit{Address: addr}, map[string]any{
		domain.AttrHostname: hostname,
		domain.AttrStatus:   status,
	}))
}

func TestRecordEvent_ChargerLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	now, advance := clock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo.now = now
	ctx := context.Background()

	require.NoError(t, repo.RecordEvent(ctx, "c1", statusEvent("10.0.0.5", "ray-1", "Idle")))
	advance(time.Minute)
	require.NoError(t, repo.RecordEvent(ctx, "c2", statusEvent("10.0.0.5", "ray-1", "Charging")))

	chargers, err := repo.ListChargers(ctx)
	require.NoError(t, err)
	require.Len(t, chargers, 1)
	c := chargers[0]
	assert.Equal(t, "10.0.0.5", c.IP)
	assert.Equal(t, "ray-1", c.Hostname)
	assert.True(t, c.Present)
	assert.Contains(t, string(c.Status), `"status":"Charging"`)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), c.FirstSeen)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC), c.LastSeen)
	assert.Nil(t, c.RemovedAt)

	advance(time.Minute)
	require.NoError(t, repo.RecordEvent(ctx, "c3", domain.Removed("10.0.0.5")))

	chargers, err = repo.ListChargers(ctx)
	require.NoError(t, err)
	require.Len(t, chargers, 1)
	assert.False(t, chargers[0].Present)
	require.NotNil(t, chargers[0].RemovedAt)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC), *chargers[0].RemovedAt)
	assert.Contains(t, string(chargers[0].Status), `"status":"Charging"`, "last status is kept after removal")

	advance(time.Minute)
	require.NoError(t, repo.RecordEvent(ctx, "c4", domain.Appeared(domain.Unit{Address: "10.0.0.5"})))
	chargers, err = repo.ListChargers(ctx)
	require.NoError(t, err)
	assert.True(t, chargers[0].Present)
	assert.Nil(t, chargers[0].RemovedAt)
	assert.Equal(t, "ray-1", chargers[0].Hostname, "appeared keeps the known hostname over Unknown")
}

func TestRecordEvent_RemovedUnknownCharger(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordEvent(ctx, "", domain.Removed("10.0.0.9")))

	chargers, err := repo.ListChargers(ctx)
	require.NoError(t, err)
	assert.Empty(t, chargers)

	events, err := repo.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "", events[0].CycleID)
	assert.JSONEq(t, `{"event":"charger_removed","ip":"10.0.0.9"}`, string(events[0].Payload))
}

func TestRecentEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := service.WithCycleID(context.Background(), "cycle-1")

	require.NoError(t, repo.Emit(ctx, statusEvent("10.0.0.5", "ray-1", "Idle")))
	require.NoError(t, repo.Emit(ctx, statusEvent("10.0.0.6", "ray-2", "Idle")))
	require.NoError(t, repo.Emit(ctx, domain.Removed("10.0.0.7")))

	events, err := repo.RecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventRemoved, events[0].Type)
	assert.Equal(t, "10.0.0.7", events[0].IP)
	assert.Equal(t, "10.0.0.6", events[1].IP)
	assert.Equal(t, "cycle-1", events[1].CycleID)

	chargers, err := repo.ListChargers(ctx)
	require.NoError(t, err)
	require.Len(t, chargers, 2)
	assert.Equal(t, "10.0.0.5", chargers[0].IP)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "", nullToString(sql.NullString{}))
	assert.Equal(t, "x", nullToString(stringToNull("x")))
	assert.False(t, stringToNull("").Valid)
	assert.Nil(t, nullMillisToTimePtr(sql.NullInt64{}))
	assert.True(t, nullToBool(sql.NullInt64{Int64: 1, Valid: true}))

	ts := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	assert.Equal(t, ts, millisToTime(timeToMillis(ts)))
}
