package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcStub struct {
	signatures   any
	transactions map[string]any
	txErrors     map[string]bool
}

func (s *rpcStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Method {
		case "getSignaturesForAddress":
			writeResult(w, s.signatures)
		case "getTransaction":
			sig, _ := req.Params[0].(string)
			if s.txErrors[sig] {
				writeError(w, -32005, "node is behind")
				return
			}
			writeResult(w, s.transactions[sig])
		default:
			writeError(w, -32601, "method not found")
		}
	}
}

func writeResult(w http.ResponseWriter, result any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": result})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0", "id": 1,
		"error": map[string]any{"code": code, "message": msg},
	})
}

func txPayload(sender, receiver string, pre, post int64) map[string]any {
	return map[string]any{
		"meta": map[string]any{
			"preBalances":  []int64{pre, 0},
			"postBalances": []int64{post, pre - post},
		},
		"transaction": map[string]any{
			"message": map[string]any{
				"accountKeys": []string{sender, receiver},
			},
		},
	}
}

func TestRecentTransfers(t *testing.T) {
	stub := &rpcStub{
		signatures: []map[string]string{{"signature": "sig1"}, {"signature": "sig2"}},
		transactions: map[string]any{
			"sig1": txPayload("senderA", "walletB", 200_000_000, 189_995_000),
			"sig2": txPayload("senderA", "walletC", 50_000_000, 39_995_000),
		},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := NewRPCClient(srv.URL)
	transfers, err := c.RecentTransfers(context.Background(), "senderA", 10)
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	assert.Equal(t, "sig1", transfers[0].Signature)
	assert.Equal(t, "senderA", transfers[0].Sender)
	assert.Equal(t, "walletB", transfers[0].Receiver)
	assert.Equal(t, int64(10_005_000), transfers[0].Lamports())
	assert.Equal(t, "walletC", transfers[1].Receiver)
}

func TestRecentTransfersSkipsBrokenTransactions(t *testing.T) {
	stub := &rpcStub{
		signatures: []map[string]string{
			{"signature": "failed"},
			{"signature": "nometa"},
			{"signature": "good"},
		},
		transactions: map[string]any{
			"nometa": map[string]any{"transaction": map[string]any{"message": map[string]any{"accountKeys": []string{"a", "b"}}}},
			"good":   txPayload("senderA", "walletB", 100, 40),
		},
		txErrors: map[string]bool{"failed": true},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := NewRPCClient(srv.URL)
	transfers, err := c.RecentTransfers(context.Background(), "senderA", 10)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "good", transfers[0].Signature)
}

func TestRecentTransfersListingErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, -32602, "invalid params")
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL)
	_, err := c.RecentTransfers(context.Background(), "senderA", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}
