package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/replybot/core/logger"
	"github.com/m3rciful/replybot/core/telegram/netutil"
)

const (
	defaultRPCURL      = "https://api.mainnet-beta.solana.com"
	defaultDialTimeout = 5 * time.Second
	defaultRPCTimeout  = 20 * time.Second
	rpcRetryAttempts   = 2
	rpcRetryBackoff    = 500 * time.Millisecond
)

// RPCClient talks JSON-RPC to a Solana node. It implements Client using
// getSignaturesForAddress followed by getTransaction per signature.
type RPCClient struct {
	endpoint string
	http     *http.Client
}

// NewRPCClient builds a ledger client for the given RPC endpoint.
// An empty endpoint selects the public mainnet node.
func NewRPCClient(endpoint string) *RPCClient {
	if endpoint == "" {
		endpoint = defaultRPCURL
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &RPCClient{
		endpoint: endpoint,
		http: &http.Client{
			Timeout:   defaultRPCTimeout,
			Transport: transport,
		},
	}
}

type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type signatureInfo struct {
	Signature string `json:"signature"`
}

type txDetail struct {
	Meta *struct {
		PreBalances  []int64 `json:"preBalances"`
		PostBalances []int64 `json:"postBalances"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

// RecentTransfers fetches up to limit recent signatures for the account and
// resolves each into a Transfer. Individual transactions that cannot be
// fetched or decoded are logged and skipped; only the signature listing
// itself is fatal.
func (c *RPCClient) RecentTransfers(ctx context.Context, account string, limit int) ([]Transfer, error) {
	if limit <= 0 {
		limit = 10
	}

	var sigs []signatureInfo
	err := c.call(ctx, "getSignaturesForAddress", []any{account, map[string]any{"limit": limit}}, &sigs)
	if err != nil {
		return nil, fmt.Errorf("ledger: list signatures for %s: %w", account, err)
	}

	transfers := make([]Transfer, 0, len(sigs))
	for _, sig := range sigs {
		if sig.Signature == "" {
			continue
		}
		var tx txDetail
		params := []any{sig.Signature, map[string]any{"encoding": "json", "maxSupportedTransactionVersion": 0}}
		if err := c.call(ctx, "getTransaction", params, &tx); err != nil {
			logger.Warn(ctx, "service.ledger", "tx.fetch_failed",
				slog.String("signature", sig.Signature),
				slog.String("err", err.Error()),
			)
			continue
		}
		t, ok := toTransfer(sig.Signature, tx)
		if !ok {
			logger.Debug(ctx, "service.ledger", "tx.skipped",
				slog.String("signature", sig.Signature),
			)
			continue
		}
		transfers = append(transfers, t)
	}
	return transfers, nil
}

func toTransfer(signature string, tx txDetail) (Transfer, bool) {
	keys := tx.Transaction.Message.AccountKeys
	if tx.Meta == nil || len(keys) < 2 {
		return Transfer{}, false
	}
	if len(tx.Meta.PreBalances) == 0 || len(tx.Meta.PostBalances) == 0 {
		return Transfer{}, false
	}
	// Account index 0 is the fee payer / sender; index 1 the credited account.
	return Transfer{
		Signature:    signature,
		Sender:       keys[0],
		Receiver:     keys[1],
		PreLamports:  tx.Meta.PreBalances[0],
		PostLamports: tx.Meta.PostBalances[0],
	}, true
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{Jsonrpc: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	attempts := rpcRetryAttempts + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := c.post(ctx, payload)
		if err == nil {
			var resp rpcResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("%s: decode response: %w", method, err)
			}
			if resp.Error != nil {
				return fmt.Errorf("%s: %w", method, resp.Error)
			}
			if out != nil && len(resp.Result) > 0 {
				if err := json.Unmarshal(resp.Result, out); err != nil {
					return fmt.Errorf("%s: decode result: %w", method, err)
				}
			}
			return nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}
		timer := time.NewTimer(rpcRetryBackoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: %w", method, lastErr)
}

func (c *RPCClient) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("http status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
