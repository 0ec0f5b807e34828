package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/filescand/internal/assign"
	"github.com/scanforge/filescand/internal/blobstore"
	"github.com/scanforge/filescand/internal/config"
	"github.com/scanforge/filescand/internal/dispatch"
	"github.com/scanforge/filescand/internal/eventsink"
	"github.com/scanforge/filescand/internal/file"
	"github.com/scanforge/filescand/internal/format"
	"github.com/scanforge/filescand/internal/harness"
	"github.com/scanforge/filescand/internal/queue"
	"github.com/scanforge/filescand/internal/registry"
	"github.com/scanforge/filescand/internal/scanner"
	"github.com/scanforge/filescand/internal/taste"
)

type sleepyScanner struct {
	name  string
	sleep time.Duration
}

func (s *sleepyScanner) Name() string { return s.name }
func (s *sleepyScanner) Scan(ctx context.Context, inv *scanner.Invocation, _ []byte, _ *file.File, _ map[string]any) error {
	select {
	case <-time.After(s.sleep):
		inv.Set("done", true)
	case <-ctx.Done():
	}
	return nil
}

func newEmptyTaster(t *testing.T) *taste.Taster {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.json"), []byte(`[]`), 0o644))
	tst, err := taste.New(dir, "*.json")
	require.NoError(t, err)
	return tst
}

func registerFactory(reg *registry.Registry, name string, sc scanner.Scanner) {
	reg.Register(name, func(map[string]any, eventsink.Backend) (scanner.Scanner, error) {
		return sc, nil
	}, nil)
}

func newWiring(t *testing.T, blobs blobstore.Backend, sink eventsink.Backend, sc scanner.Scanner, distBudget time.Duration) *dispatch.Dispatcher {
	return newWiringWithOptions(t, blobs, sink, sc, distBudget, nil)
}

func newWiringWithOptions(t *testing.T, blobs blobstore.Backend, sink eventsink.Backend, sc scanner.Scanner, distBudget time.Duration, options map[string]any) *dispatch.Dispatcher {
	t.Helper()
	eng, err := assign.New(config.ScannerRules{
		{Name: sc.Name(), Rules: []config.Rule{{Positive: &config.Condition{Flavors: []string{"*"}}, Priority: 5, Options: options}}},
	})
	require.NoError(t, err)
	reg := registry.New(sink)
	registerFactory(reg, sc.Name(), sc)
	h := harness.New(blobs, 0, 0)
	return dispatch.New(blobs, sink, newEmptyTaster(t), eng, reg, h, 10, distBudget)
}

// TestScenario6RequestTimeoutStillFinalizes exercises literal Scenario
// 6: a request deadline of ~150ms with a root scanner that sleeps much
// longer. FIN must still be emitted, and at most the root event may
// precede it.
func TestScenario6RequestTimeoutStillFinalizes(t *testing.T) {
	blobs := blobstore.NewMemory()
	sink := eventsink.NewMemory()
	ctx := context.Background()
	require.NoError(t, blobs.Append(ctx, "req-1", []byte("payload"), time.Now().Add(time.Minute)))

	sc := &sleepyScanner{name: "ScanSlow", sleep: 3 * time.Second}
	d := newWiring(t, blobs, sink, sc, time.Minute)

	q := queue.NewMemory()
	deadline := time.Now().Add(150 * time.Millisecond)
	q.Push("req-1", deadline)

	w := New(q, sink, d, 1, 0)

	start := time.Now()
	w.Run(context.Background())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second, "worker must not block past the request deadline")

	records := sink.Records("req-1")
	require.NotEmpty(t, records)
	assert.Equal(t, format.FIN, string(records[len(records)-1]), "stream must end with exactly one FIN")
	assert.LessOrEqual(t, len(records), 2, "at most the root event may precede FIN")

	finCount := 0
	for _, r := range records {
		if string(r) == format.FIN {
			finCount++
		}
	}
	assert.Equal(t, 1, finCount, "FIN must appear exactly once")
}

// TestScenario3TimeoutIsolationAtWorkerLevel drives a full worker/
// dispatch pass where a scanner-local timeout fires well inside the
// request and distribution deadlines; the event must still be emitted
// (with the scanner flagged) and the stream must still close with FIN.
func TestScenario3TimeoutIsolationAtWorkerLevel(t *testing.T) {
	blobs := blobstore.NewMemory()
	sink := eventsink.NewMemory()
	ctx := context.Background()
	require.NoError(t, blobs.Append(ctx, "req-1", []byte("payload"), time.Now().Add(time.Minute)))

	sc := &sleepyScanner{name: "ScanSlow", sleep: 2 * time.Second}
	d := newWiringWithOptions(t, blobs, sink, sc, time.Minute, map[string]any{"scanner_timeout": 0.05})

	q := queue.NewMemory()
	q.Push("req-1", time.Now().Add(time.Minute))
	w := New(q, sink, d, 1, 0)

	w.Run(context.Background())

	records := sink.Records("req-1")
	require.Len(t, records, 2)

	var evt map[string]any
	require.NoError(t, json.Unmarshal(records[0], &evt))
	scanObj := evt["scan"].(map[string]any)
	slow := scanObj["slow"].(map[string]any)
	flags := slow["flags"].([]any)
	assert.Contains(t, flags, "timed_out")

	assert.Equal(t, format.FIN, string(records[1]))
}

// TestRunSkipsAlreadyExpiredEntry covers §4.9 step 1: an entry whose
// deadline has already passed is skipped without ever being handled
// (no event stream is created for it at all).
func TestRunSkipsAlreadyExpiredEntry(t *testing.T) {
	blobs := blobstore.NewMemory()
	sink := eventsink.NewMemory()

	sc := &sleepyScanner{name: "ScanFast", sleep: time.Millisecond}
	d := newWiring(t, blobs, sink, sc, time.Minute)

	q := queue.NewMemory()
	q.Push("stale", time.Now().Add(-time.Second))
	w := New(q, sink, d, 1, 0)

	// A skipped entry does not count toward max_files, so Run keeps
	// polling the empty queue; bound it with a context instead.
	runCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	w.Run(runCtx)

	assert.Empty(t, sink.Records("stale"))
}

// TestRunStopsAtMaxFiles covers §4.9 step 4's handled-request cap.
func TestRunStopsAtMaxFiles(t *testing.T) {
	blobs := blobstore.NewMemory()
	sink := eventsink.NewMemory()
	ctx := context.Background()

	sc := &sleepyScanner{name: "ScanFast", sleep: time.Millisecond}
	d := newWiring(t, blobs, sink, sc, time.Minute)

	q := queue.NewMemory()
	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, blobs.Append(ctx, id, []byte("x"), time.Now().Add(time.Minute)))
		q.Push(id, time.Now().Add(time.Minute))
	}

	w := New(q, sink, d, 2, 0)
	w.Run(context.Background())

	handled := 0
	for _, id := range []string{"r1", "r2", "r3"} {
		if len(sink.Records(id)) > 0 {
			handled++
		}
	}
	assert.Equal(t, 2, handled)
}
