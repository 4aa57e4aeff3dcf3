// Package command implements the local control plane.
package command

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/metrics"
	"firestige.xyz/pktcraft/internal/packetfile"
	"firestige.xyz/pktcraft/internal/pipeline"
	"firestige.xyz/pktcraft/internal/store"
)

// Version is reported by daemon_status.
const Version = "0.1.0"

// CommandHandler handles control plane commands.
type CommandHandler struct {
	pipeline     *pipeline.Pipeline
	runner       *pipeline.Runner // nil when the daemon has no transmitter
	store        store.FrameStore
	shutdownFunc func() // Called by daemon_shutdown to trigger graceful stop
	startTime    int64  // Unix timestamp of daemon start for uptime calc

	mu     sync.RWMutex
	replay config.ReplayConfig
}

// NewCommandHandler creates a new command handler. runner may be nil, in
// which case packet_send and sequence_send fail.
func NewCommandHandler(p *pipeline.Pipeline, runner *pipeline.Runner, fs store.FrameStore, replay config.ReplayConfig) *CommandHandler {
	return &CommandHandler{
		pipeline:  p,
		runner:    runner,
		store:     fs,
		replay:    replay,
		startTime: time.Now().Unix(),
	}
}

// SetShutdownFunc sets the callback invoked by the daemon_shutdown command.
func (h *CommandHandler) SetShutdownFunc(fn func()) {
	h.shutdownFunc = fn
}

// SetReplayConfig replaces the pacing used by later sequence_send requests.
func (h *CommandHandler) SetReplayConfig(cfg config.ReplayConfig) {
	h.mu.Lock()
	h.replay = cfg
	h.mu.Unlock()
}

// ReplayConfig returns the pacing sequence_send currently uses.
func (h *CommandHandler) ReplayConfig() config.ReplayConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.replay
}

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"` // e.g., "packet_build", "frame_list"
	Params json.RawMessage `json:"params"` // command-specific parameters
	ID     string          `json:"id"`     // request ID for tracking
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`               // matches request ID
	Result interface{} `json:"result,omitempty"` // success result
	Error  *ErrorInfo  `json:"error,omitempty"`  // error info if failed
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal error
)

// Handle processes a command and returns a response.
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) Response {
	slog.Debug("handling command", "method", cmd.Method, "id", cmd.ID)

	var resp Response
	switch cmd.Method {
	case "packet_build":
		resp = h.handlePacketBuild(ctx, cmd)
	case "packet_send":
		resp = h.handlePacketSend(ctx, cmd)
	case "frame_list":
		resp = h.handleFrameList(ctx, cmd)
	case "frame_delete":
		resp = h.handleFrameDelete(ctx, cmd)
	case "sequence_send":
		resp = h.handleSequenceSend(ctx, cmd)
	case "daemon_status":
		resp = h.handleDaemonStatus(ctx, cmd)
	case "daemon_shutdown":
		resp = h.handleDaemonShutdown(ctx, cmd)
	default:
		resp = errorResponse(cmd.ID, ErrCodeMethodNotFound, fmt.Sprintf("method %q not found", cmd.Method))
		metrics.ControlRequestsTotal.WithLabelValues("unknown", "error").Inc()
		return resp
	}

	result := "ok"
	if resp.Error != nil {
		result = "error"
	}
	metrics.ControlRequestsTotal.WithLabelValues(cmd.Method, result).Inc()
	return resp
}

func errorResponse(id string, code int, msg string) Response {
	return Response{ID: id, Error: &ErrorInfo{Code: code, Message: msg}}
}

// failure maps err to a response: operator input problems are invalid
// params, everything else is internal.
func failure(id, what string, err error) Response {
	code := ErrCodeInternalError
	if core.IsInputError(err) || errors.Is(err, core.ErrFrameNotFound) {
		code = ErrCodeInvalidParams
	}
	return errorResponse(id, code, fmt.Sprintf("%s: %v", what, err))
}

func decodeParams(cmd Command, v any) *Response {
	if len(cmd.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(cmd.Params, v); err != nil {
		resp := errorResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		return &resp
	}
	return nil
}

// PacketParams carries a packet document for packet_build and packet_send.
type PacketParams struct {
	Document map[string]any `json:"document"`
	Save     string         `json:"save,omitempty"` // packet_send only: store the frame under this label
}

// BuildResult describes one built frame.
type BuildResult struct {
	Protocol    core.Protocol `json:"protocol"`
	Frame       string        `json:"frame"` // hex
	SegmentLen  int           `json:"segment_len"`
	DatagramLen int           `json:"datagram_len"`
	FrameLen    int           `json:"frame_len"`
	SavedID     string        `json:"saved_id,omitempty"`
	Driver      string        `json:"driver,omitempty"`
}

func buildResult(pkt *pipeline.Packet) BuildResult {
	return BuildResult{
		Protocol:    pkt.Protocol,
		Frame:       hex.EncodeToString(pkt.Frame),
		SegmentLen:  len(pkt.Segment),
		DatagramLen: len(pkt.Datagram),
		FrameLen:    len(pkt.Frame),
	}
}

// packetSpec decodes the document carried by cmd.
func packetSpec(cmd Command) (PacketParams, core.FullPacketSpec, *Response) {
	var params PacketParams
	if resp := decodeParams(cmd, &params); resp != nil {
		return params, core.FullPacketSpec{}, resp
	}
	if params.Document == nil {
		resp := errorResponse(cmd.ID, ErrCodeInvalidParams, "invalid params: document is required")
		return params, core.FullPacketSpec{}, &resp
	}
	doc, err := packetfile.Decode(params.Document)
	if err == nil {
		var spec core.FullPacketSpec
		if spec, err = doc.Spec(); err == nil {
			return params, spec, nil
		}
	}
	resp := errorResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	return params, core.FullPacketSpec{}, &resp
}

// handlePacketBuild builds a frame without sending it.
func (h *CommandHandler) handlePacketBuild(_ context.Context, cmd Command) Response {
	_, spec, resp := packetSpec(cmd)
	if resp != nil {
		return *resp
	}
	pkt, err := h.pipeline.Build(spec)
	if err != nil {
		return failure(cmd.ID, "build failed", err)
	}
	return Response{ID: cmd.ID, Result: buildResult(pkt)}
}

// handlePacketSend builds, transmits and optionally stores a frame.
func (h *CommandHandler) handlePacketSend(ctx context.Context, cmd Command) Response {
	if h.runner == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "no transmitter configured")
	}
	params, spec, resp := packetSpec(cmd)
	if resp != nil {
		return *resp
	}
	pkt, err := h.runner.Send(ctx, spec)
	if err != nil {
		return failure(cmd.ID, "send failed", err)
	}

	result := buildResult(pkt)
	result.Driver = h.runner.Driver()
	if params.Save != "" {
		saved, err := h.store.Save(store.SavedFrame{Label: params.Save, Protocol: pkt.Protocol, Frame: pkt.Frame})
		if err != nil {
			return failure(cmd.ID, "frame sent but not saved", err)
		}
		result.SavedID = saved.ID
		h.refreshStoredGauge()
	}
	slog.Info("packet_send: frame sent", "protocol", pkt.Protocol, "bytes", len(pkt.Frame), "saved_id", result.SavedID)
	return Response{ID: cmd.ID, Result: result}
}

// FrameInfo summarises a saved frame.
type FrameInfo struct {
	ID        string        `json:"id"`
	Label     string        `json:"label,omitempty"`
	Protocol  core.Protocol `json:"protocol"`
	Bytes     int           `json:"bytes"`
	CreatedAt time.Time     `json:"created_at"`
}

// handleFrameList lists saved frames in replay order.
func (h *CommandHandler) handleFrameList(_ context.Context, cmd Command) Response {
	frames, err := h.store.List()
	if err != nil {
		return failure(cmd.ID, "list frames failed", err)
	}
	infos := make([]FrameInfo, 0, len(frames))
	for _, f := range frames {
		infos = append(infos, FrameInfo{ID: f.ID, Label: f.Label, Protocol: f.Protocol, Bytes: len(f.Frame), CreatedAt: f.CreatedAt})
	}
	metrics.StoredFrames.Set(float64(len(frames)))
	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"frames": infos,
			"count":  len(infos),
		},
	}
}

// FrameDeleteParams represents parameters for frame_delete.
type FrameDeleteParams struct {
	ID string `json:"id"`
}

// handleFrameDelete removes one saved frame.
func (h *CommandHandler) handleFrameDelete(_ context.Context, cmd Command) Response {
	var params FrameDeleteParams
	if resp := decodeParams(cmd, &params); resp != nil {
		return *resp
	}
	if params.ID == "" {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, "invalid params: id is required")
	}
	if err := h.store.Delete(params.ID); err != nil {
		return failure(cmd.ID, "delete frame failed", err)
	}
	h.refreshStoredGauge()
	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"id":     params.ID,
			"status": "deleted",
		},
	}
}

// SequenceSendParams selects saved frames to replay. No IDs means every
// saved frame, oldest first.
type SequenceSendParams struct {
	IDs []string `json:"ids,omitempty"`
}

// handleSequenceSend replays saved frames in order.
func (h *CommandHandler) handleSequenceSend(ctx context.Context, cmd Command) Response {
	if h.runner == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "no transmitter configured")
	}
	var params SequenceSendParams
	if resp := decodeParams(cmd, &params); resp != nil {
		return *resp
	}

	var saved []store.SavedFrame
	if len(params.IDs) == 0 {
		all, err := h.store.List()
		if err != nil {
			return failure(cmd.ID, "list frames failed", err)
		}
		saved = all
	} else {
		for _, id := range params.IDs {
			f, err := h.store.Load(id)
			if err != nil {
				return failure(cmd.ID, "load frame failed", err)
			}
			saved = append(saved, f)
		}
	}

	frames := make([][]byte, len(saved))
	for i, f := range saved {
		frames[i] = f.Frame
	}
	sent, err := h.runner.Replay(ctx, frames, h.ReplayConfig())
	if err != nil {
		return failure(cmd.ID, fmt.Sprintf("sequence stopped after %d frames", sent), err)
	}
	slog.Info("sequence_send: sequence sent", "frames", sent, "driver", h.runner.Driver())
	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"sent":  sent,
			"total": len(frames),
		},
	}
}

// handleDaemonShutdown triggers graceful daemon shutdown via the registered callback.
func (h *CommandHandler) handleDaemonShutdown(_ context.Context, cmd Command) Response {
	if h.shutdownFunc == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "shutdown handler not registered")
	}

	slog.Info("daemon_shutdown command received, initiating graceful shutdown")
	go h.shutdownFunc() // Non-blocking: let the response be sent first

	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"status": "shutting_down",
		},
	}
}

// handleDaemonStatus returns daemon status information.
func (h *CommandHandler) handleDaemonStatus(_ context.Context, cmd Command) Response {
	driver := ""
	if h.runner != nil {
		driver = h.runner.Driver()
	}
	stored := 0
	if frames, err := h.store.List(); err == nil {
		stored = len(frames)
	}

	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"version":       Version,
			"uptime_sec":    time.Now().Unix() - h.startTime,
			"driver":        driver,
			"stored_frames": stored,
			"stats":         h.pipeline.Metrics().Snapshot(),
		},
	}
}

func (h *CommandHandler) refreshStoredGauge() {
	if frames, err := h.store.List(); err == nil {
		metrics.StoredFrames.Set(float64(len(frames)))
	}
}
