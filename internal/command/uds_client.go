package command

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"firestige.xyz/pktcraft/internal/core"
)

// UDSClient is a JSON-RPC client over Unix Domain Socket.
type UDSClient struct {
	socketPath string
	timeout    time.Duration
}

// NewUDSClient creates a new UDS client.
func NewUDSClient(socketPath string, timeout time.Duration) *UDSClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &UDSClient{
		socketPath: socketPath,
		timeout:    timeout,
	}
}

// Call sends a command and waits for response. A daemon that is not
// listening yields core.ErrDaemonNotRunning.
func (c *UDSClient) Call(ctx context.Context, method string, params interface{}) (*Response, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrDaemonNotRunning, c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	var paramsJSON json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsJSON = data
	}

	reqID := fmt.Sprintf("req-%d", time.Now().UnixNano())
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsJSON,
		ID:      reqID,
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestBytes)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return nil, fmt.Errorf("connection closed without response")
	}

	var jsonrpcResp JSONRPCResponse
	if err := json.Unmarshal(scanner.Bytes(), &jsonrpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	respIDStr := fmt.Sprintf("%v", jsonrpcResp.ID)
	if respIDStr != reqID {
		return nil, fmt.Errorf("response ID mismatch: expected %v, got %v", reqID, respIDStr)
	}

	return &Response{
		ID:     respIDStr,
		Result: jsonrpcResp.Result,
		Error:  jsonrpcResp.Error,
	}, nil
}

// call invokes method and decodes a successful result into out.
func (c *UDSClient) call(ctx context.Context, method string, params, out interface{}) error {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to re-encode result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// PacketBuild builds a packet document on the daemon.
func (c *UDSClient) PacketBuild(ctx context.Context, document map[string]any) (*BuildResult, error) {
	var out BuildResult
	if err := c.call(ctx, "packet_build", PacketParams{Document: document}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PacketSend builds and sends a packet document, storing it under label
// when label is not empty.
func (c *UDSClient) PacketSend(ctx context.Context, document map[string]any, label string) (*BuildResult, error) {
	var out BuildResult
	if err := c.call(ctx, "packet_send", PacketParams{Document: document, Save: label}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FrameList lists frames saved on the daemon.
func (c *UDSClient) FrameList(ctx context.Context) ([]FrameInfo, error) {
	var out struct {
		Frames []FrameInfo `json:"frames"`
	}
	if err := c.call(ctx, "frame_list", nil, &out); err != nil {
		return nil, err
	}
	return out.Frames, nil
}

// FrameDelete removes a saved frame.
func (c *UDSClient) FrameDelete(ctx context.Context, id string) error {
	return c.call(ctx, "frame_delete", FrameDeleteParams{ID: id}, nil)
}

// SequenceSend replays saved frames; no ids means all of them.
func (c *UDSClient) SequenceSend(ctx context.Context, ids []string) (int, error) {
	var out struct {
		Sent int `json:"sent"`
	}
	err := c.call(ctx, "sequence_send", SequenceSendParams{IDs: ids}, &out)
	return out.Sent, err
}

// DaemonStatus returns the daemon_status result.
func (c *UDSClient) DaemonStatus(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.call(ctx, "daemon_status", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks that the daemon answers.
func (c *UDSClient) Ping(ctx context.Context) error {
	_, err := c.DaemonStatus(ctx)
	return err
}

// DaemonShutdown asks the daemon to stop.
func (c *UDSClient) DaemonShutdown(ctx context.Context) error {
	return c.call(ctx, "daemon_shutdown", nil, nil)
}
