package environment

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/boristopalov/dojo/pkg/core"
)

// remoteRequest is what the simulator reads per step: {"action": <int>}
type remoteRequest struct {
	Action int `json:"action"`
}

// remoteResponse is what the simulator writes per step.
type remoteResponse struct {
	State      []float64          `json:"state"`
	Reward     float64            `json:"reward"`
	Terminated bool               `json:"terminated"`
	Truncated  bool               `json:"truncated"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Remote drives a simulator over TCP using newline-delimited JSON. The
// simulator runs one episode per connection: it sends the initial state as
// soon as a client connects, then answers every action with one response.
type Remote struct {
	BaseEnvironment

	addr        string
	dialTimeout time.Duration
	out         io.Writer

	conn    net.Conn
	scanner *bufio.Scanner
	encoder *json.Encoder
	last    remoteResponse
}

func NewRemote(addr string, out io.Writer) *Remote {
	if out == nil {
		out = io.Discard
	}
	return &Remote{
		BaseEnvironment: NewBaseEnvironment(),
		addr:            addr,
		dialTimeout:     10 * time.Second,
		out:             out,
	}
}

// Reset drops the current connection, if any, and starts a new episode on a fresh one.
func (r *Remote) Reset(ctx context.Context) (core.State, core.Info, error) {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}

	dialer := net.Dialer{Timeout: r.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial simulator %s: %w", r.addr, err)
	}
	r.conn = conn
	r.scanner = bufio.NewScanner(conn)
	r.encoder = json.NewEncoder(conn)

	resp, err := r.read(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read initial state: %w", err)
	}
	r.markReset()
	return core.State(resp.State), metricsInfo(resp.Metrics), nil
}

func (r *Remote) Step(ctx context.Context, action core.Action) (core.StepResult, error) {
	if r.conn == nil {
		return core.StepResult{}, errors.New("remote environment not reset")
	}
	if dl, ok := ctx.Deadline(); ok {
		r.conn.SetDeadline(dl)
	}
	if err := r.encoder.Encode(remoteRequest{Action: action.Index()}); err != nil {
		return core.StepResult{}, fmt.Errorf("send action: %w", err)
	}
	resp, err := r.read(ctx)
	if err != nil {
		return core.StepResult{}, fmt.Errorf("read step: %w", err)
	}
	r.markStep(resp.Terminated || resp.Truncated)

	return core.StepResult{
		NextState:  core.State(resp.State),
		Reward:     resp.Reward,
		Terminated: resp.Terminated,
		Truncated:  resp.Truncated,
		Info:       metricsInfo(resp.Metrics),
	}, nil
}

func (r *Remote) read(ctx context.Context) (remoteResponse, error) {
	if dl, ok := ctx.Deadline(); ok {
		r.conn.SetReadDeadline(dl)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return remoteResponse{}, err
		}
		return remoteResponse{}, io.ErrUnexpectedEOF
	}
	var resp remoteResponse
	if err := json.Unmarshal(r.scanner.Bytes(), &resp); err != nil {
		return remoteResponse{}, fmt.Errorf("decode response: %w", err)
	}
	r.last = resp
	return resp, nil
}

func metricsInfo(metrics map[string]float64) core.Info {
	info := make(core.Info, len(metrics))
	for k, v := range metrics {
		info[k] = v
	}
	return info
}

// Render prints the last response received from the simulator.
func (r *Remote) Render() error {
	_, err := fmt.Fprintf(r.out, "step=%d reward=%.3f state=%v metrics=%v\n", r.status.Step, r.last.Reward, r.last.State, r.last.Metrics)
	return err
}

func (r *Remote) Close() error {
	r.markClosed()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}
