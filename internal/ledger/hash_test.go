package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHash(t *testing.T) {
	full := strings.Repeat("ab", 32)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full width", full, "0x" + full},
		{"prefixed", "0x" + full, "0x" + full},
		{"uppercase", "0X" + strings.ToUpper(full), "0x" + full},
		{"short", "abcd", "0x" + strings.Repeat("0", 60) + "abcd"},
		{"odd length", "abc", "0x" + strings.Repeat("0", 61) + "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeHash(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 2+HashWidth)
		})
	}
}

func TestNormalizeHash_Rejects(t *testing.T) {
	for _, in := range []string{"", "0x", "zz", strings.Repeat("a", 66)} {
		_, err := NormalizeHash(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestFailureFromMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want FailureKind
	}{
		{"", FailureNone},
		{"Hash does not match blockchain record", FailureHashMismatch},
		{"HASH DOES NOT MATCH current data", FailureHashMismatch},
		{"No transaction hash found (not logged to blockchain)", FailureNotAnchored},
		{"RPC timeout", FailureOther},
		{"Hash not found on blockchain", FailureOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FailureFromMessage(tt.msg), "message %q", tt.msg)
	}
}
