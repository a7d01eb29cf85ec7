// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package bridge is the parent-side client for the kb-bridge child
// process: it owns the subprocess, serialises requests over its stdin
// with a mutex, reads one JSON line of response per request from its
// stdout, and can detect a dead subprocess and respawn it.
//
// Grounded directly on
// original_source/src-tauri/src/services/python_subprocess.rs's
// PythonSubprocess: same send_command/init/execute/query/query_one/
// commit/rollback/ping surface, same "close stdin, sleep 500ms, kill if
// still alive" shutdown sequence, same is_alive-via-ping liveness check.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/bridgeproto"
	"github.com/northbound/kbengine/internal/logger"
)

// Client manages one kb-bridge child process.
type Client struct {
	binPath string
	args    []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// New spawns the kb-bridge binary immediately.
func New(binPath string, args ...string) (*Client, error) {
	c := &Client{binPath: binPath, args: args}
	if err := c.spawn(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) spawn() error {
	cmd := exec.Command(c.binPath, c.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return apperrors.Runtime("opening bridge stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return apperrors.Runtime("opening bridge stdout", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return apperrors.Runtime("starting kb-bridge", err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = bufio.NewReader(stdout)
	logger.Printf("kb-bridge started: %s %v (pid %d)", c.binPath, c.args, cmd.Process.Pid)
	return nil
}

// Init sends the init command, establishing the database file the bridge
// should open (and create, if absent).
func (c *Client) Init(ctx context.Context, dbPath, dbName string) error {
	_, err := c.send(ctx, bridgeproto.CmdInit, bridgeproto.InitParams{DBPath: dbPath, DBName: dbName})
	return err
}

// Execute runs a non-SELECT statement, returning rows affected.
func (c *Client) Execute(ctx context.Context, sql string, values []interface{}) (int64, error) {
	data, err := c.send(ctx, bridgeproto.CmdExecute, bridgeproto.ExecuteParams{SQL: sql, Values: values})
	if err != nil {
		return 0, err
	}
	var out bridgeproto.ExecuteData
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, apperrors.Storage("decoding execute response", err)
	}
	return out.RowsAffected, nil
}

// Query runs a SELECT and returns every row.
func (c *Client) Query(ctx context.Context, sql string, values []interface{}) ([][]interface{}, error) {
	data, err := c.send(ctx, bridgeproto.CmdQuery, bridgeproto.QueryParams{SQL: sql, Values: values})
	if err != nil {
		return nil, err
	}
	var out bridgeproto.QueryData
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperrors.Storage("decoding query response", err)
	}
	return out.Rows, nil
}

// QueryOne runs a SELECT and returns its first row, or nil if empty.
func (c *Client) QueryOne(ctx context.Context, sql string, values []interface{}) ([]interface{}, error) {
	data, err := c.send(ctx, bridgeproto.CmdQueryOne, bridgeproto.QueryParams{SQL: sql, Values: values})
	if err != nil {
		return nil, err
	}
	var out bridgeproto.QueryOneData
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperrors.Storage("decoding query_one response", err)
	}
	return out.Row, nil
}

func (c *Client) Commit(ctx context.Context) error {
	_, err := c.send(ctx, bridgeproto.CmdCommit, nil)
	return err
}

func (c *Client) Rollback(ctx context.Context) error {
	_, err := c.send(ctx, bridgeproto.CmdRollback, nil)
	return err
}

// Ping verifies the subprocess is alive and responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.send(ctx, bridgeproto.CmdPing, nil)
	return err
}

// HybridSearch forwards the spec's hybrid-search envelope to the bridge
// and returns the scored hits it computes internally.
func (c *Client) HybridSearch(ctx context.Context, envelope json.RawMessage) ([]bridgeproto.HybridHit, error) {
	return c.searchLike(ctx, bridgeproto.CmdHybrid, envelope)
}

// SimilaritySearch is the pure-vector fallback path.
func (c *Client) SimilaritySearch(ctx context.Context, envelope json.RawMessage) ([]bridgeproto.HybridHit, error) {
	return c.searchLike(ctx, bridgeproto.CmdSimilarity, envelope)
}

func (c *Client) searchLike(ctx context.Context, cmd string, envelope json.RawMessage) ([]bridgeproto.HybridHit, error) {
	data, err := c.send(ctx, cmd, bridgeproto.HybridSearchParams{Envelope: envelope})
	if err != nil {
		return nil, err
	}
	var out bridgeproto.HybridSearchData
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperrors.Storage("decoding search response", err)
	}
	return out.Hits, nil
}

// IsAlive reports liveness via ping, matching is_alive's behaviour.
func (c *Client) IsAlive(ctx context.Context) bool {
	return c.Ping(ctx) == nil
}

// Restart kills the current subprocess (if any) and spawns a fresh one.
// No transaction survives a restart; callers must re-init and see errors
// for any in-flight work.
func (c *Client) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdownLocked()
	return c.spawn()
}

// Close gracefully shuts the subprocess down: closes stdin, waits up to
// 500ms, then kills it if still running.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdownLocked()
	return nil
}

func (c *Client) shutdownLocked() {
	if c.cmd == nil {
		return
	}
	if c.stdin != nil {
		_ = c.stdin.Close()
	}

	done := make(chan struct{})
	go func() {
		_ = c.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		logger.Warnf("kb-bridge pid %d did not exit, killing", c.cmd.Process.Pid)
		_ = c.cmd.Process.Kill()
		<-done
	}

	c.cmd = nil
	c.stdin = nil
	c.stdout = nil
}

// send writes one request line and reads one response line, under a
// mutex so concurrent callers queue and responses stay in request order.
func (c *Client) send(ctx context.Context, command string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stdin == nil || c.stdout == nil {
		return nil, apperrors.Runtime("bridge not running", fmt.Errorf("kb-bridge process unavailable"))
	}

	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, apperrors.Runtime("encoding bridge request", err)
		}
		raw = encoded
	} else {
		raw = json.RawMessage("null")
	}

	req := bridgeproto.Request{Command: command, Params: raw}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Runtime("encoding bridge request", err)
	}

	if _, err := c.stdin.Write(append(line, '\n')); err != nil {
		return nil, apperrors.Runtime("writing to bridge stdin", err)
	}

	respLine, err := c.stdout.ReadString('\n')
	if err != nil {
		return nil, apperrors.Runtime("reading bridge stdout", err)
	}

	var resp bridgeproto.Response
	if err := json.Unmarshal([]byte(respLine), &resp); err != nil {
		return nil, apperrors.Runtime("parsing bridge response", err)
	}

	if resp.Status != bridgeproto.StatusSuccess {
		return nil, apperrors.Storage(fmt.Sprintf("bridge error: %s (%s)", resp.Error, resp.Details), nil)
	}
	return resp.Data, nil
}
