// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"context"
	"testing"
	"time"
)

func TestManagerRunsRegisteredTaskAndRecordsMetrics(t *testing.T) {
	st := openTestStore(t)
	m := NewManager(st)

	ran := make(chan struct{}, 1)
	m.RegisterTask(Task{
		Name:        "probe",
		MinInterval: time.Hour,
		MaxInterval: time.Hour,
		Run: func(ctx context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task to run")
	}
	cancel()

	metrics := m.Metrics()
	if _, ok := metrics["probe"]; !ok {
		t.Fatal("expected metrics for registered task")
	}
}
