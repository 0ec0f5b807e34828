package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectAndRecordCompletion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := Connect(path)
	require.NoError(t, err)

	ledger := NewLedger(db)
	now := time.Now()
	require.NoError(t, ledger.Record(Completion{
		RootPointer:       "req-1",
		FileCount:         3,
		ScannerErrorCount: 1,
		Duration:          250 * time.Millisecond,
		CompletedAt:       now,
	}))

	n, err := ledger.CountSince(now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = ledger.CountSince(now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
