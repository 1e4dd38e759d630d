// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
)

// Task is a named unit of maintenance work with a scheduling window. The
// manager sleeps MinInterval between successful runs; MaxInterval is the
// ceiling a future adaptive-backoff revision should respect after
// failures, per the design note on adaptive scheduling.
type Task struct {
	Name        string
	MinInterval time.Duration
	MaxInterval time.Duration
	Run         func(ctx context.Context) error
}

// TaskMetrics records the last outcome of a registered task.
type TaskMetrics struct {
	LastRun      time.Time
	LastError    error
	LastDuration time.Duration
	SuccessCount int
	FailureCount int
}

// Manager runs every registered task on its own suture-supervised
// goroutine and keeps per-task metrics. One Manager backs one store;
// there is exactly one process-wide instance per adapter, owned and
// started explicitly rather than reached for as an ambient singleton.
type Manager struct {
	supervisor *suture.Supervisor
	mu         sync.Mutex
	metrics    map[string]TaskMetrics
	tasks      []Task
}

// NewManager creates a manager pre-loaded with the store's own
// maintenance tasks (time index repair, compaction, health check, stats
// refresh) at the intervals the retention design specifies.
func NewManager(s *Store) *Manager {
	m := &Manager{
		supervisor: suture.NewSimple("fswatchstore-background"),
		metrics:    make(map[string]TaskMetrics),
	}
	m.RegisterTask(Task{
		Name:        "time_index_repair",
		MinInterval: 10 * time.Minute,
		MaxInterval: time.Hour,
		Run:         func(ctx context.Context) error { return s.RepairTimeIndex() },
	})
	m.RegisterTask(Task{
		Name:        "compaction",
		MinInterval: 30 * time.Minute,
		MaxInterval: 2 * time.Hour,
		Run:         func(ctx context.Context) error { return s.Compact() },
	})
	m.RegisterTask(Task{
		Name:        "health_check",
		MinInterval: 5 * time.Minute,
		MaxInterval: 30 * time.Minute,
		Run: func(ctx context.Context) error {
			if !s.HealthCheck() {
				return fmt.Errorf("store: health check failed")
			}
			return nil
		},
	})
	m.RegisterTask(Task{
		Name:        "stats_refresh",
		MinInterval: 10 * time.Minute,
		MaxInterval: time.Hour,
		Run: func(ctx context.Context) error {
			_, err := s.CountEvents()
			return err
		},
	})
	return m
}

// RegisterTask adds a task; call before Start.
func (m *Manager) RegisterTask(t Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, t)
	m.metrics[t.Name] = TaskMetrics{}
	m.supervisor.Add(asService(t.Name, func(ctx context.Context) error {
		return m.runLoop(ctx, t)
	}))
}

func (m *Manager) runLoop(ctx context.Context, t Task) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		start := time.Now()
		err := t.Run(ctx)
		duration := time.Since(start)
		m.mu.Lock()
		tm := m.metrics[t.Name]
		tm.LastRun = start
		tm.LastDuration = duration
		tm.LastError = err
		if err != nil {
			tm.FailureCount++
		} else {
			tm.SuccessCount++
		}
		m.metrics[t.Name] = tm
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(t.MinInterval):
		}
	}
}

// Start runs every registered task until ctx is cancelled. It returns
// once the supervisor's Serve call returns, which happens only on
// cancellation (suture restarts any task whose loop returns an error on
// its own, so Start itself blocks for the manager's lifetime).
func (m *Manager) Start(ctx context.Context) error {
	return m.supervisor.Serve(ctx)
}

// Metrics returns a snapshot of every task's last recorded outcome.
func (m *Manager) Metrics() map[string]TaskMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]TaskMetrics, len(m.metrics))
	for k, v := range m.metrics {
		out[k] = v
	}
	return out
}

// asService adapts a plain context-taking function into a suture.Service,
// the same shape the teacher's own service-supervision helper exposes:
// Serve blocks until ctx is done or the function returns.
func asService(name string, fn func(ctx context.Context) error) suture.Service {
	return &fnService{name: name, fn: fn}
}

type fnService struct {
	name string
	fn   func(ctx context.Context) error
}

func (s *fnService) Serve(ctx context.Context) error {
	return s.fn(ctx)
}

func (s *fnService) String() string { return s.name }
