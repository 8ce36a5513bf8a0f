package ledger

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeGateway is an append-once in-memory ledger.
type fakeGateway struct {
	mu        sync.Mutex
	anchored  map[string]int64
	block     uint64
	verifyErr error
	errorText string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{anchored: map[string]int64{}}
}

func (g *fakeGateway) LogAuditHash(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	hash := in.GetFields()["hash"].GetStringValue()
	if _, ok := g.anchored[hash]; ok {
		return structpb.NewStruct(map[string]any{"success": false, "error": "hash already anchored"})
	}
	g.block++
	g.anchored[hash] = 1700000000
	return structpb.NewStruct(map[string]any{
		"success":      true,
		"tx_hash":      "0xtx" + hash[len(hash)-4:],
		"block_number": float64(g.block),
	})
}

func (g *fakeGateway) LogCriticalEvent(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.block++
	return structpb.NewStruct(map[string]any{"success": true, "tx_hash": "0xevent", "block_number": float64(g.block)})
}

func (g *fakeGateway) VerifyHash(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if g.errorText != "" {
		return structpb.NewStruct(map[string]any{"exists": false, "error": g.errorText})
	}
	ts, ok := g.anchored[in.GetFields()["hash"].GetStringValue()]
	return structpb.NewStruct(map[string]any{"exists": ok, "timestamp": float64(ts)})
}

func startGateway(t *testing.T, gw GatewayServer) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterGatewayServer(srv, gw)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := New("passthrough:///bufnet", 2*time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_AnchorThenVerify(t *testing.T) {
	gw := newFakeGateway()
	c := startGateway(t, gw)
	ctx := context.Background()

	res := c.Anchor(ctx, "abcd", "email_change")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, uint64(1), res.BlockNumber)
	assert.NotEmpty(t, res.TxHash)

	gw.mu.Lock()
	_, stored := gw.anchored["0x000000000000000000000000000000000000000000000000000000000000abcd"]
	gw.mu.Unlock()
	assert.True(t, stored, "gateway should receive the padded key")

	v := c.Verify(ctx, "0xABCD")
	assert.True(t, v.Exists)
	assert.Equal(t, FailureNone, v.Failure)
	assert.Equal(t, int64(1700000000), v.Timestamp.Unix())

	again := c.Anchor(ctx, "abcd", "email_change")
	assert.False(t, again.Success)
	assert.Equal(t, "hash already anchored", again.Error)
	assert.Equal(t, FailureOther, again.Failure)
}

func TestClient_VerifyUnknownHash(t *testing.T) {
	c := startGateway(t, newFakeGateway())
	v := c.Verify(context.Background(), "ff")
	assert.False(t, v.Exists)
	assert.Empty(t, v.Error)
}

func TestClient_VerifyErrorTextIsTyped(t *testing.T) {
	gw := newFakeGateway()
	gw.errorText = "Hash does not match blockchain record"
	c := startGateway(t, gw)

	v := c.Verify(context.Background(), "ff")
	assert.Equal(t, FailureHashMismatch, v.Failure)
	assert.Equal(t, "Hash does not match blockchain record", v.Error)
}

func TestClient_UnavailableStatus(t *testing.T) {
	gw := newFakeGateway()
	gw.verifyErr = status.Error(codes.Unavailable, "node syncing")
	c := startGateway(t, gw)

	v := c.Verify(context.Background(), "ff")
	assert.Equal(t, FailureUnavailable, v.Failure)
	assert.Equal(t, "node syncing", v.Error)
}

func TestClient_InvalidHashNeverReachesGateway(t *testing.T) {
	c := startGateway(t, newFakeGateway())
	res := c.Anchor(context.Background(), "not-hex", "email_change")
	assert.False(t, res.Success)
	assert.Equal(t, FailureOther, res.Failure)
}

func TestClient_LogCriticalEvent(t *testing.T) {
	c := startGateway(t, newFakeGateway())
	res := c.LogCriticalEvent(context.Background(), "restricted_field_attempt", "user-1", `{"field":"role"}`)
	require.True(t, res.Success)
	assert.Equal(t, "0xevent", res.TxHash)
}

func TestUnconfigured(t *testing.T) {
	var o Oracle = Unconfigured{}
	assert.False(t, o.IsAvailable())

	a := o.Anchor(context.Background(), "ff", "x")
	assert.False(t, a.Success)
	assert.Equal(t, NotInitializedMessage, a.Error)
	assert.Equal(t, FailureUnavailable, a.Failure)

	v := o.Verify(context.Background(), "ff")
	assert.False(t, v.Exists)
	assert.Equal(t, FailureUnavailable, v.Failure)
}
