/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package shutdown is the process-wide registry of cleanup hooks that run when
// the host application exits.
package shutdown

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

type hook struct {
	name string
	fn   func()
}

// Manager runs registered hooks in reverse registration order, at most once.
// Hooks may deregister themselves (or others) while running.
type Manager struct {
	mu     sync.Mutex
	hooks  []hook
	ran    bool
	logger *slog.Logger
}

// New creates an empty hook registry.
func New(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{logger: logger}
}

// Register adds fn under name, replacing any hook already using that name.
func (m *Manager) Register(name string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, h := range m.hooks {
		if h.name == name {
			m.hooks[i].fn = fn
			return
		}
	}
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
	m.logger.Debug("Registered shutdown hook", "hook", name)
}

// Deregister removes the hook registered under name. Unknown names are ignored.
func (m *Manager) Deregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, h := range m.hooks {
		if h.name == name {
			m.hooks = append(m.hooks[:i], m.hooks[i+1:]...)
			m.logger.Debug("Deregistered shutdown hook", "hook", name)
			return
		}
	}
}

// Registered returns the hook names in registration order.
func (m *Manager) Registered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.hooks))
	for i, h := range m.hooks {
		names[i] = h.name
	}
	return names
}

// Run executes every registered hook, last registered first. Only the first
// call does anything.
func (m *Manager) Run() {
	m.mu.Lock()
	if m.ran {
		m.mu.Unlock()
		return
	}
	m.ran = true
	hooks := make([]hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		m.run(hooks[i])
	}
}

func (m *Manager) run(h hook) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Shutdown hook panicked", "hook", h.name, "panic", r)
		}
	}()
	m.logger.Info("Running shutdown hook", "hook", h.name)
	h.fn()
}

// WaitForSignal blocks until one of sigs arrives (SIGINT and SIGTERM when none
// are given) or ctx is done, then runs the hooks. It returns the signal
// received, or nil when ctx ended the wait.
func (m *Manager) WaitForSignal(ctx context.Context, sigs ...os.Signal) os.Signal {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)

	var got os.Signal
	select {
	case got = <-ch:
		m.logger.Info("Received signal, shutting down", "signal", got.String())
	case <-ctx.Done():
	}
	m.Run()
	return got
}
