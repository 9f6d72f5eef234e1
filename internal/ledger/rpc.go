package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// call performs one JSON-RPC round trip and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RemoteError{Method: method, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	start := time.Now()
	err := c.do(ctx, method, params, out)
	recordCall(time.Since(start), err)
	if err != nil {
		c.logger.Warn("rpc call failed",
			zap.String("method", method),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
	}
	return err
}

func (c *Client) do(ctx context.Context, method string, params []any, out any) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.endpoint)
	if err != nil {
		return &RemoteError{Method: method, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &RemoteError{Method: method, Status: resp.StatusCode(), Err: errors.New(truncate(resp.String(), 256))}
	}

	var body rpcResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return &RemoteError{Method: method, Err: fmt.Errorf("decode response: %w", err)}
	}
	if body.Error != nil {
		return &RemoteError{Method: method, Code: body.Error.Code, Err: errors.New(body.Error.Message)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body.Result, out); err != nil {
		return &RemoteError{Method: method, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
