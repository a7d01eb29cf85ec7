// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package runtime implements the Runtime Provisioner: it ensures the
// engine's private storage environment is present and usable before any
// other component touches it.
//
// Grounded in original_source/src-tauri/src/services/python_env.rs, which
// provisions a private Python virtualenv under the app data directory and
// verifies the vector-DB engine package inside it. There is no Go analog
// to "pip install a pinned package into a venv" because the engine here
// is not a separate interpreter dependency — it is the kb-bridge binary
// itself, embedding mattn/go-sqlite3 directly. The provisioner's job
// becomes: verify the bridge binary is present and executable, and that
// the data directory layout the bridge and storage adapter expect
// (data_dir/bridge for the sqlite file, data_dir/documents for uploaded
// originals) exists — creating it on first run. Same state machine,
// same idempotent EnsureReady contract, same progress-event shape.
package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/northbound/kbengine/internal/apperrors"
)

// State is a step in the provisioning state machine.
type State string

const (
	StateNotPresent State = "NotPresent"
	StateCreating   State = "Creating"
	StateInstalling State = "Installing"
	StateVerifying  State = "Verifying"
	StateReady      State = "Ready"
	StateFailed     State = "Failed"
)

// Progress is one step emitted to a listener during EnsureReady.
type Progress struct {
	Step    State
	Message string
	Detail  string
	Err     error
}

// Listener receives progress events. Implementations must not block for
// long — the provisioner emits synchronously from EnsureReady's goroutine.
type Listener func(Progress)

// Layout describes the directory structure the provisioner creates and
// later components rely on.
type Layout struct {
	DataDir      string
	BridgeDir    string // data_dir/bridge — holds the sqlite file
	DocumentsDir string // data_dir/documents — holds uploaded originals
	DBPath       string // data_dir/bridge/kb.sqlite3
	BridgeBinary string // path to the kb-bridge executable
}

func NewLayout(dataDir, bridgeBinary string) Layout {
	bridgeDir := filepath.Join(dataDir, "bridge")
	return Layout{
		DataDir:      dataDir,
		BridgeDir:    bridgeDir,
		DocumentsDir: filepath.Join(dataDir, "documents"),
		DBPath:       filepath.Join(bridgeDir, "kb.sqlite3"),
		BridgeBinary: bridgeBinary,
	}
}

// Provisioner drives the NotPresent -> ... -> Ready/Failed state machine.
// Ready is terminal for the process lifetime: once reached, EnsureReady
// returns immediately without re-checking the filesystem.
type Provisioner struct {
	layout Layout

	mu    sync.Mutex
	state State
	err   *apperrors.Error
}

func New(layout Layout) *Provisioner {
	return &Provisioner{layout: layout, state: StateNotPresent}
}

func (p *Provisioner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Provisioner) Layout() Layout { return p.layout }

// EnsureReady brings the environment to Ready, emitting progress events to
// listen (which may be nil). Idempotent: a second call after Ready returns
// immediately; a second call after Failed retries from scratch.
func (p *Provisioner) EnsureReady(ctx context.Context, listen Listener) error {
	p.mu.Lock()
	if p.state == StateReady {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	emit := func(step State, msg, detail string, err error) {
		p.mu.Lock()
		p.state = step
		p.mu.Unlock()
		if listen != nil {
			listen(Progress{Step: step, Message: msg, Detail: detail, Err: err})
		}
	}

	fail := func(stage, msg string, err error) error {
		wrapped := apperrors.Stage(apperrors.KindRuntime, stage, msg, err)
		p.mu.Lock()
		p.state = StateFailed
		p.err = wrapped
		p.mu.Unlock()
		emit(StateFailed, msg, stage, wrapped)
		return wrapped
	}

	emit(StateCreating, "creating data directory layout", p.layout.DataDir, nil)
	for _, dir := range []string{p.layout.DataDir, p.layout.BridgeDir, p.layout.DocumentsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fail("creating-directories", fmt.Sprintf("could not create %s", dir), err)
		}
	}

	emit(StateInstalling, "locating kb-bridge binary", p.layout.BridgeBinary, nil)
	binPath, err := p.resolveBridgeBinary()
	if err != nil {
		return fail("locating-binary", "kb-bridge binary not found", err)
	}
	p.layout.BridgeBinary = binPath

	emit(StateVerifying, "verifying kb-bridge is executable", binPath, nil)
	if err := verifyExecutable(binPath); err != nil {
		return fail("verifying-binary", "kb-bridge binary is not executable", err)
	}

	p.mu.Lock()
	p.state = StateReady
	p.err = nil
	p.mu.Unlock()
	emit(StateReady, "runtime ready", "", nil)
	return nil
}

// resolveBridgeBinary accepts either an absolute/relative path to an
// existing file, or a bare name to resolve via PATH, mirroring the
// teacher's preference for configurable-but-defaulted binary locations.
func (p *Provisioner) resolveBridgeBinary() (string, error) {
	if p.layout.BridgeBinary == "" {
		return "", fmt.Errorf("no bridge binary path configured")
	}
	if _, err := os.Stat(p.layout.BridgeBinary); err == nil {
		abs, err := filepath.Abs(p.layout.BridgeBinary)
		if err != nil {
			return p.layout.BridgeBinary, nil
		}
		return abs, nil
	}
	resolved, err := exec.LookPath(p.layout.BridgeBinary)
	if err != nil {
		return "", fmt.Errorf("kb-bridge not found at %q and not on PATH: %w", p.layout.BridgeBinary, err)
	}
	return resolved, nil
}

func verifyExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not an executable", path)
	}
	if info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

// LastError returns the structured failure reason from the most recent
// failed EnsureReady call, if any.
func (p *Provisioner) LastError() *apperrors.Error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
