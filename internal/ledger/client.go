package ledger

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client talks to a ledger gateway over gRPC.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

func New(addr string, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial ledger %s: %w", addr, err)
	}
	conn.Connect()
	return &Client{conn: conn, timeout: timeout}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// IsAvailable reports whether the connection is usable.
func (c *Client) IsAvailable() bool {
	switch c.conn.GetState() {
	case connectivity.Shutdown, connectivity.TransientFailure:
		return false
	}
	return true
}

func (c *Client) Anchor(ctx context.Context, hash, eventType string) AnchorResult {
	key, err := NormalizeHash(hash)
	if err != nil {
		return AnchorResult{Error: err.Error(), Failure: FailureOther}
	}
	out, err := c.call(ctx, methodLogAuditHash, map[string]any{
		"hash":       key,
		"event_type": eventType,
	})
	return anchorResult(out, err)
}

func (c *Client) LogCriticalEvent(ctx context.Context, eventType, subjectID, details string) AnchorResult {
	out, err := c.call(ctx, methodLogCriticalEvent, map[string]any{
		"event_type": eventType,
		"subject_id": subjectID,
		"details":    details,
	})
	return anchorResult(out, err)
}

func (c *Client) Verify(ctx context.Context, hash string) VerifyResult {
	key, err := NormalizeHash(hash)
	if err != nil {
		return VerifyResult{Error: err.Error(), Failure: FailureOther}
	}
	out, err := c.call(ctx, methodVerifyHash, map[string]any{"hash": key})
	if err != nil {
		msg, kind := failureOf(err)
		return VerifyResult{Error: msg, Failure: kind}
	}
	f := out.GetFields()
	if msg := f["error"].GetStringValue(); msg != "" {
		return VerifyResult{Error: msg, Failure: FailureFromMessage(msg)}
	}
	res := VerifyResult{Exists: f["exists"].GetBoolValue()}
	if ts := f["timestamp"].GetNumberValue(); ts > 0 {
		res.Timestamp = time.Unix(int64(ts), 0).UTC()
	}
	return res
}

func (c *Client) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func anchorResult(out *structpb.Struct, err error) AnchorResult {
	if err != nil {
		msg, kind := failureOf(err)
		return AnchorResult{Error: msg, Failure: kind}
	}
	f := out.GetFields()
	msg := f["error"].GetStringValue()
	if msg != "" || !f["success"].GetBoolValue() {
		if msg == "" {
			msg = "ledger rejected transaction"
		}
		return AnchorResult{Error: msg, Failure: FailureFromMessage(msg)}
	}
	return AnchorResult{
		Success:     true,
		TxHash:      f["tx_hash"].GetStringValue(),
		BlockNumber: uint64(f["block_number"].GetNumberValue()),
	}
}

func failureOf(err error) (string, FailureKind) {
	st := status.Convert(err)
	if st.Code() == codes.Unavailable {
		return st.Message(), FailureUnavailable
	}
	return st.Message(), FailureFromMessage(st.Message())
}
