package anchor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lzjever/lgu-integrity/internal/ledger"
)

type scriptedOracle struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]int // hash -> remaining failures, -1 fails forever
	gate     chan struct{}
	inFlight int
	maxSeen  int
	block    uint64
}

func newScriptedOracle() *scriptedOracle {
	return &scriptedOracle{fail: map[string]int{}}
}

func (o *scriptedOracle) Anchor(_ context.Context, hash, _ string) ledger.AnchorResult {
	o.mu.Lock()
	o.inFlight++
	if o.inFlight > o.maxSeen {
		o.maxSeen = o.inFlight
	}
	o.calls = append(o.calls, hash)
	gate := o.gate
	o.gate = nil
	o.mu.Unlock()

	if gate != nil {
		<-gate
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight--
	if n := o.fail[hash]; n != 0 {
		if n > 0 {
			o.fail[hash] = n - 1
		}
		return ledger.AnchorResult{Error: "gateway timeout", Failure: ledger.FailureOther}
	}
	o.block++
	return ledger.AnchorResult{Success: true, TxHash: "0xtx-" + hash, BlockNumber: o.block}
}

func (o *scriptedOracle) LogCriticalEvent(_ context.Context, eventType, _, _ string) ledger.AnchorResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, "event:"+eventType)
	return ledger.AnchorResult{Success: true, TxHash: "0xevent"}
}

func (o *scriptedOracle) Verify(context.Context, string) ledger.VerifyResult {
	return ledger.VerifyResult{}
}

func (o *scriptedOracle) IsAvailable() bool { return true }

func (o *scriptedOracle) callLog() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

type backlink struct {
	txHash string
	block  uint64
}

type memBacklinks struct {
	mu    sync.Mutex
	refs  map[string]backlink
	calls int
	err   error
}

func newMemBacklinks() *memBacklinks {
	return &memBacklinks{refs: map[string]backlink{}}
}

func (m *memBacklinks) SetLedgerRef(_ context.Context, recordID, txHash string, block uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.refs[recordID] = backlink{txHash: txHash, block: block}
	return nil
}

func (m *memBacklinks) get(recordID string) (backlink, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.refs[recordID]
	return b, ok
}

func testConfig() Config {
	return Config{MaxRetries: DefaultMaxRetries, RetryDelay: time.Millisecond}
}

func drain(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Drain(ctx))
}

func TestQueue_SuccessWritesBacklink(t *testing.T) {
	oracle := newScriptedOracle()
	links := newMemBacklinks()
	q := New(oracle, links, testConfig(), zaptest.NewLogger(t))

	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"aaa", "login"}, "rec-1"))
	drain(t, q)

	ref, ok := links.get("rec-1")
	require.True(t, ok)
	assert.Equal(t, "0xtx-aaa", ref.txHash)
	assert.Equal(t, uint64(1), ref.block)
	assert.Equal(t, []string{"aaa"}, oracle.callLog())
}

func TestQueue_RetriesThenDrops(t *testing.T) {
	oracle := newScriptedOracle()
	oracle.fail["bad"] = -1
	links := newMemBacklinks()
	core, logs := observer.New(zap.WarnLevel)
	q := New(oracle, links, testConfig(), zap.New(core))

	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"bad", "login"}, "rec-1"))
	drain(t, q)

	assert.Len(t, oracle.callLog(), DefaultMaxRetries+1)
	assert.Equal(t, 0, links.calls)
	assert.Equal(t, 0, q.Status().QueueLength)
	assert.Equal(t, 1, logs.FilterMessage("anchor job dropped after exhausting retries").Len())
	assert.Equal(t, DefaultMaxRetries, logs.FilterMessage("anchor job failed, re-queued").Len())
}

func TestQueue_RetryGoesBehindLaterJobs(t *testing.T) {
	oracle := newScriptedOracle()
	oracle.fail["first"] = 1
	gate := make(chan struct{})
	oracle.gate = gate
	links := newMemBacklinks()
	q := New(oracle, links, testConfig(), zaptest.NewLogger(t))

	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"first", "login"}, "rec-1"))
	require.Eventually(t, func() bool { return len(oracle.callLog()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"second", "login"}, "rec-2"))
	close(gate)
	drain(t, q)

	assert.Equal(t, []string{"first", "second", "first"}, oracle.callLog())
	_, ok := links.get("rec-1")
	assert.True(t, ok)
	_, ok = links.get("rec-2")
	assert.True(t, ok)
}

func TestQueue_SingleConsumer(t *testing.T) {
	oracle := newScriptedOracle()
	q := New(oracle, newMemBacklinks(), testConfig(), zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = q.Enqueue(OpAnchorHash, []string{string(rune('a' + i)), "login"}, "")
		}(i)
	}
	wg.Wait()
	drain(t, q)

	assert.Len(t, oracle.callLog(), 20)
	assert.Equal(t, 1, oracle.maxSeen)
}

func TestQueue_BacklinkFailureIsNotRetried(t *testing.T) {
	oracle := newScriptedOracle()
	links := newMemBacklinks()
	links.err = assert.AnError
	q := New(oracle, links, testConfig(), zaptest.NewLogger(t))

	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"aaa", "login"}, "rec-1"))
	drain(t, q)

	assert.Len(t, oracle.callLog(), 1)
	assert.Equal(t, 1, links.calls)
}

func TestQueue_UnknownOperationDropped(t *testing.T) {
	oracle := newScriptedOracle()
	core, logs := observer.New(zap.ErrorLevel)
	q := New(oracle, newMemBacklinks(), testConfig(), zap.New(core))

	require.NoError(t, q.Enqueue(Operation("rewriteHistory"), []string{"x"}, ""))
	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"only-hash"}, ""))
	drain(t, q)

	assert.Empty(t, oracle.callLog())
	assert.Equal(t, 2, logs.FilterMessage("anchor job discarded").Len())
}

func TestQueue_CriticalEventWithoutBacklink(t *testing.T) {
	oracle := newScriptedOracle()
	links := newMemBacklinks()
	q := New(oracle, links, testConfig(), zaptest.NewLogger(t))

	require.NoError(t, q.Enqueue(OpCriticalEvent, []string{"tamper_detected", "user-1", `{"records":1}`}, ""))
	drain(t, q)

	assert.Equal(t, []string{"event:tamper_detected"}, oracle.callLog())
	assert.Equal(t, 0, links.calls)
}

func TestQueue_StopDiscardsPending(t *testing.T) {
	oracle := newScriptedOracle()
	gate := make(chan struct{})
	oracle.gate = gate
	q := New(oracle, newMemBacklinks(), testConfig(), zaptest.NewLogger(t))

	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"a", "login"}, ""))
	require.Eventually(t, func() bool { return len(oracle.callLog()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"b", "login"}, ""))
	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"c", "login"}, ""))

	st := q.Status()
	assert.Equal(t, 2, st.QueueLength)
	assert.True(t, st.Processing)
	assert.Equal(t, OpAnchorHash, st.Items[0].Operation)

	stopped := make(chan int)
	go func() { stopped <- q.Stop() }()
	require.Eventually(t, func() bool { return q.Status().QueueLength == 0 }, time.Second, time.Millisecond)
	close(gate)

	select {
	case dropped := <-stopped:
		assert.Equal(t, 2, dropped)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, []string{"a"}, oracle.callLog())
	assert.ErrorIs(t, q.Enqueue(OpAnchorHash, []string{"d", "login"}, ""), ErrStopped)
}

func TestQueue_StopInterruptsRetryDelay(t *testing.T) {
	oracle := newScriptedOracle()
	oracle.fail["slow"] = -1
	q := New(oracle, newMemBacklinks(), Config{MaxRetries: 3, RetryDelay: time.Hour}, zaptest.NewLogger(t))

	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"slow", "login"}, ""))
	require.Eventually(t, func() bool {
		return len(oracle.callLog()) == 1 && q.Status().QueueLength == 1
	}, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		q.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on retry delay")
	}
	assert.Len(t, oracle.callLog(), 1)
}

func TestQueue_DrainRespectsContext(t *testing.T) {
	oracle := newScriptedOracle()
	gate := make(chan struct{})
	oracle.gate = gate
	q := New(oracle, newMemBacklinks(), testConfig(), zaptest.NewLogger(t))

	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"a", "login"}, ""))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Drain(ctx), context.DeadlineExceeded)
	close(gate)
}

func TestQueue_ClearKeepsAccepting(t *testing.T) {
	oracle := newScriptedOracle()
	gate := make(chan struct{})
	oracle.gate = gate
	q := New(oracle, newMemBacklinks(), testConfig(), zaptest.NewLogger(t))

	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"a", "login"}, ""))
	require.Eventually(t, func() bool { return len(oracle.callLog()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"b", "login"}, ""))
	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"c", "login"}, ""))

	assert.Equal(t, 2, q.Clear())
	assert.Equal(t, 0, q.Status().QueueLength)
	close(gate)

	require.NoError(t, q.Enqueue(OpAnchorHash, []string{"d", "login"}, ""))
	drain(t, q)
	assert.Equal(t, []string{"a", "d"}, oracle.callLog())
}
