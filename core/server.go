// Package core wires the long-lived behaviour tasks (§5) against one
// Store and one Config: it owns no NMOS semantics of its own, only the
// supervision discipline -- start every registered task under a shared
// cancellation context, and treat any one task's failure (a non-nil
// error) as a signal to stop them all, mirroring the teacher's errgroup-based jogger-group
// shutdown (fs/mpather/jogger.go's JoggerGroup.Run/Stop).
//
// There is deliberately no process-wide singleton here: every field a
// task needs (Store, Config, discovery resolver, transport client) is
// constructed by the caller and handed to Server explicitly, so a test
// can run two independent Servers (e.g. a Node and a Registry) in one
// process without them seeing each other's state.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package core

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/model"
)

// Task is one long-lived behaviour loop; it must return promptly once
// ctx is cancelled (§5's "every suspension point is cancellable").
type Task func(ctx context.Context) error

type namedTask struct {
	name string
	fn   Task
}

// Server owns the shared Store and Config for one NMOS process (Node or
// Registry) and supervises the task set registered against it.
type Server struct {
	Cfg   *cmn.ConfigOwner
	Store *model.Store

	tasks []namedTask
}

func NewServer(cfg *cmn.ConfigOwner, store *model.Store) *Server {
	return &Server{Cfg: cfg, Store: store}
}

// Supervise registers a task to run for the lifetime of the server.
// Must be called before Run.
func (s *Server) Supervise(name string, fn Task) {
	s.tasks = append(s.tasks, namedTask{name: name, fn: fn})
}

// Run starts every supervised task and blocks until ctx is cancelled or
// a task exits with an error, whichever comes first; it then waits up
// to shutdownDeadline for every task to drain (§5: "partial shutdown is
// invalid -- either all tasks stop or none").
func (s *Server) Run(ctx context.Context, shutdownDeadline time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		t := t
		g.Go(func() error {
			err := t.fn(gctx)
			if err != nil {
				cmn.Errorf("core: task %q exited: %v", t.name, err)
			}
			return err
		})
	}

	<-gctx.Done()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(shutdownDeadline):
		return cmn.New(cmn.KindFatal, "core: supervised tasks did not drain within the shutdown deadline")
	}
}
