package status

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"wagateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordAndGet(t *testing.T) {
	tracker := NewTracker(NewMemoryStore())
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tracker.Record("s1", "m1", models.MessageStatusSent, ts, map[string]interface{}{
		"from": "628111111111",
		"to":   "628222222222",
	})

	record, ok := tracker.Get("s1", "m1")
	require.True(t, ok)
	assert.Equal(t, models.MessageStatusSent, record.Status)
	assert.Equal(t, "628111111111", record.From)
	assert.Equal(t, "628222222222", record.To)
	assert.Equal(t, ts, record.UpdatedAt)

	_, ok = tracker.Get("s1", "missing")
	assert.False(t, ok)

	_, ok = tracker.Get("other", "m1")
	assert.False(t, ok, "records are scoped per session")
}

func TestTrackerLastWriteWins(t *testing.T) {
	tracker := NewTracker(NewMemoryStore())
	ts := time.Now()

	tracker.Record("s1", "m1", models.MessageStatusSent, ts, nil)
	tracker.Record("s1", "m1", models.MessageStatusDelivered, ts.Add(time.Second), nil)
	tracker.Record("s1", "m1", models.MessageStatusRead, ts.Add(2*time.Second), nil)

	record, ok := tracker.Get("s1", "m1")
	require.True(t, ok)
	assert.Equal(t, models.MessageStatusRead, record.Status)
}

func TestTrackerConcurrentWriters(t *testing.T) {
	tracker := NewTracker(NewMemoryStore())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tracker.Record("s1", "m1", models.MessageStatusDelivered, time.Now(), map[string]interface{}{
				"writer": n,
			})
		}(i)
	}
	wg.Wait()

	// The final write after all concurrent writers settled always wins
	tracker.Record("s1", "m1", models.MessageStatusRead, time.Now(), nil)
	record, ok := tracker.Get("s1", "m1")
	require.True(t, ok)
	assert.Equal(t, models.MessageStatusRead, record.Status)
}

func TestTrackerListOrder(t *testing.T) {
	tracker := NewTracker(NewMemoryStore())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		tracker.Record("s1", fmt.Sprintf("m%d", i), models.MessageStatusSent, base.Add(time.Duration(i)*time.Minute), nil)
	}

	records := tracker.List("s1")
	require.Len(t, records, 5)
	assert.Equal(t, "m4", records[0].MessageID, "most recently updated first")
	assert.Equal(t, "m0", records[4].MessageID)

	assert.Empty(t, tracker.List("unknown"))
}

func TestTrackerClear(t *testing.T) {
	tracker := NewTracker(NewMemoryStore())

	tracker.Record("s1", "m1", models.MessageStatusSent, time.Now(), nil)
	tracker.Record("s2", "m1", models.MessageStatusSent, time.Now(), nil)

	tracker.Clear("s1")

	_, ok := tracker.Get("s1", "m1")
	assert.False(t, ok)
	_, ok = tracker.Get("s2", "m1")
	assert.True(t, ok, "clearing one session leaves others alone")
}

func TestTrackerSweep(t *testing.T) {
	tracker := NewTracker(NewMemoryStore())
	now := time.Now()

	tracker.Record("s1", "old", models.MessageStatusSent, now.Add(-73*time.Hour), nil)
	tracker.Record("s1", "fresh", models.MessageStatusSent, now, nil)
	tracker.Record("s2", "old", models.MessageStatusDelivered, now.Add(-100*time.Hour), nil)

	removed := tracker.Sweep(now.Add(-72 * time.Hour))
	assert.Equal(t, 2, removed)

	_, ok := tracker.Get("s1", "old")
	assert.False(t, ok)
	_, ok = tracker.Get("s1", "fresh")
	assert.True(t, ok)
	assert.Empty(t, tracker.List("s2"))
}
