// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package watch implements filesystem-watch auto-ingest: a directory per
// project is watched recursively, and a debounced create/write event
// enqueues a JobTypeIngestDocument job for the worker pool to pick up.
//
// Grounded on internal/drone/watcher/manager.go's recursive fsnotify
// setup and internal/drone/watcher/debouncer.go's per-path debounce
// timer (reused verbatim), with the gRPC drone-client dispatch replaced
// by enqueuing onto the Redis-backed job queue.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/northbound/kbengine/internal/jobs"
	"github.com/northbound/kbengine/internal/logger"
	"github.com/northbound/kbengine/internal/parser"
	"github.com/northbound/kbengine/internal/queue"
)

const debounceDelay = 500 * time.Millisecond

// Debouncer coalesces repeated filesystem events for the same path
// into a single callback, firing after the path has been quiet for
// debounceDelay.
type Debouncer struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	callback func(string)
	delay    time.Duration
}

func NewDebouncer(delay time.Duration, callback func(string)) *Debouncer {
	return &Debouncer{timers: make(map[string]*time.Timer), callback: callback, delay: delay}
}

func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, path)
		cb := d.callback
		d.mu.Unlock()
		if cb != nil {
			cb(path)
		}
	})
}

func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = make(map[string]*time.Timer)
}

// Manager watches one directory per project and enqueues ingest jobs
// for new or modified files.
type Manager struct {
	projectID string
	rootPath  string
	q         queue.Queue

	watcher   *fsnotify.Watcher
	debouncer *Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(projectID, rootPath string, q queue.Queue) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{projectID: projectID, rootPath: rootPath, q: q, ctx: ctx, cancel: cancel}
	m.debouncer = NewDebouncer(debounceDelay, m.enqueue)
	return m
}

// Start begins watching rootPath recursively, creating it if absent.
func (m *Manager) Start() error {
	absPath, err := filepath.Abs(m.rootPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		if err := os.MkdirAll(absPath, 0755); err != nil {
			return err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := filepath.Walk(absPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := watcher.Add(path); err != nil {
				logger.Warnf("ingestion watch: failed to watch %s: %v", path, err)
			}
		}
		return nil
	}); err != nil {
		watcher.Close()
		return err
	}

	m.watcher = watcher
	m.wg.Add(1)
	go m.loop()
	return nil
}

func (m *Manager) Stop() {
	m.cancel()
	m.debouncer.Stop()
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Manager) loop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := m.watcher.Add(event.Name); err != nil {
						logger.Warnf("ingestion watch: failed to watch new directory %s: %v", event.Name, err)
					}
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if parser.IsSupportedFile(event.Name) {
					m.debouncer.Trigger(event.Name)
				}
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("ingestion watch: watcher error: %v", err)
		}
	}
}

func (m *Manager) enqueue(filePath string) {
	err := jobs.EnqueueIngestDocument(m.ctx, m.q, jobs.IngestDocumentPayload{
		ProjectID:   m.projectID,
		FilePath:    filePath,
		RequestedAt: time.Now(),
	})
	if err != nil {
		logger.Warnf("ingestion watch: failed to enqueue ingest job for %s: %v", filePath, err)
	}
}
