package auditlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lzjever/lgu-integrity/internal/anchor"
	"github.com/lzjever/lgu-integrity/internal/core"
	"github.com/lzjever/lgu-integrity/internal/ledger"
)

type fakeRecords struct {
	mu      sync.Mutex
	records []core.AuditRecord
	err     error
}

func (f *fakeRecords) Create(_ context.Context, rec core.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type queuedJob struct {
	op       anchor.Operation
	args     []string
	recordID string
}

type fakeQueue struct {
	jobs []queuedJob
}

func (f *fakeQueue) Enqueue(op anchor.Operation, args []string, recordID string) error {
	f.jobs = append(f.jobs, queuedJob{op: op, args: args, recordID: recordID})
	return nil
}

type availableOracle struct{ ledger.Unconfigured }

func (availableOracle) IsAvailable() bool { return true }

func entry() Entry {
	return Entry{HashInput: core.HashInput{
		SubjectID:    "user-7",
		EventType:    "profile_update",
		FieldChanged: "address",
		OldValue:     "Poblacion",
		NewValue:     "San Isidro",
		Role:         "staff",
		Metadata:     map[string]any{"ip": "10.1.1.1"},
		Timestamp:    time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC),
	}}
}

func TestWrite_PersistsAndEnqueues(t *testing.T) {
	records := &fakeRecords{}
	queue := &fakeQueue{}
	w := NewWriter(records, queue, availableOracle{}, zaptest.NewLogger(t))

	rec, err := w.Write(context.Background(), entry())
	require.NoError(t, err)

	require.Len(t, records.records, 1)
	assert.Equal(t, rec.ID, records.records[0].ID)
	assert.True(t, rec.VerifyHash())
	assert.False(t, rec.Anchored())

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, anchor.OpAnchorHash, queue.jobs[0].op)
	assert.Equal(t, []string{rec.Hash, "profile_update"}, queue.jobs[0].args)
	assert.Equal(t, rec.ID, queue.jobs[0].recordID)
}

func TestWrite_CriticalAlsoLogsEvent(t *testing.T) {
	queue := &fakeQueue{}
	w := NewWriter(&fakeRecords{}, queue, availableOracle{}, zaptest.NewLogger(t))

	e := entry()
	e.Critical = true
	_, err := w.Write(context.Background(), e)
	require.NoError(t, err)

	require.Len(t, queue.jobs, 2)
	assert.Equal(t, anchor.OpCriticalEvent, queue.jobs[1].op)
	assert.Equal(t, "profile_update", queue.jobs[1].args[0])
	assert.Equal(t, "user-7", queue.jobs[1].args[1])
	assert.JSONEq(t, `{"field":"address","newValue":"San Isidro","role":"staff"}`, queue.jobs[1].args[2])
	assert.Empty(t, queue.jobs[1].recordID)
}

func TestWrite_UnavailableOracleSkipsQueue(t *testing.T) {
	records := &fakeRecords{}
	queue := &fakeQueue{}
	w := NewWriter(records, queue, ledger.Unconfigured{}, zaptest.NewLogger(t))

	_, err := w.Write(context.Background(), entry())
	require.NoError(t, err)
	assert.Len(t, records.records, 1)
	assert.Empty(t, queue.jobs)
}

func TestWrite_StoreFailure(t *testing.T) {
	queue := &fakeQueue{}
	w := NewWriter(&fakeRecords{err: errors.New("disk full")}, queue, availableOracle{}, zaptest.NewLogger(t))

	_, err := w.Write(context.Background(), entry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, queue.jobs)
}
