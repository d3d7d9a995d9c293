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

package audio

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Well-known default listener created on every Init.
const (
	DefaultListenerSystemName = "IAL$"
	DefaultListenerUserName   = "Default Audio Listener"
)

const shutdownHookName = "audio-manager"

// State is the lifecycle state of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateShuttingDown
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateShuttingDown:
		return "shutting-down"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Options configures a Manager.
type Options struct {
	// Selector picks the backend on Init. Nil means NewSelector("", DefaultEngineConfig()).
	Selector *Selector

	// Limits caps each category. The zero value means DefaultLimits().
	Limits Limits

	// Hooks receives the cleanup hook while the manager is active. Optional.
	Hooks HookRegistry

	Observers []Observer
	Logger    *slog.Logger
}

// Manager owns the active backend and every audio object created on it. All
// mutating operations run under one mutex so counters and sets never diverge.
type Manager struct {
	mu        sync.Mutex
	selector  *Selector
	hooks     HookRegistry
	observers []Observer
	logger    *slog.Logger

	backend     Backend
	state       State
	initialized atomic.Bool
	reg         *registry
}

// NewManager creates an uninitialized manager.
func NewManager(opts Options) *Manager {
	if opts.Selector == nil {
		opts.Selector = NewSelector("", DefaultEngineConfig())
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		selector:  opts.Selector,
		hooks:     opts.Hooks,
		observers: opts.Observers,
		logger:    opts.Logger,
		reg:       newRegistry(opts.Limits),
	}
}

// Init selects a backend, creates the default listener and registers the
// shutdown hook. It is a no-op when already initialized.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initLocked()
}

func (m *Manager) initLocked() error {
	switch m.state {
	case StateDisposed:
		return ErrDisposed
	case StateActive:
		return nil
	}

	backend, attempts := m.selector.Select()
	m.backend = backend
	for _, o := range m.observers {
		o.BackendSelected(backend.Name(), attempts)
	}

	// Set before the default listener so createLocked does not recurse into init.
	m.state = StateActive

	// A failure here leaves the manager active without a listener.
	if _, err := m.createLocked(DefaultListenerSystemName, DefaultListenerUserName, CategoryListener); err != nil {
		m.logger.Error("Error creating default audio listener", "error", err)
	}

	if m.hooks != nil {
		m.hooks.Register(shutdownHookName, m.Cleanup)
	}

	m.initialized.Store(true)
	m.logger.Info("Audio manager initialized", "backend", backend.Name(), "attempts", len(attempts))
	return nil
}

// IsInitialized reports whether the manager is between Init and Cleanup.
func (m *Manager) IsInitialized() bool {
	return m.initialized.Load()
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ActiveBackend returns the backend selected by the last Init, or nil.
func (m *Manager) ActiveBackend() Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend
}

// CreateObject allocates an object of category c on the active backend,
// initializing the manager first if needed. systemName must encode c.
func (m *Manager) CreateObject(systemName, userName string, c Category) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateDisposed {
		return nil, ErrDisposed
	}
	if m.state != StateActive {
		m.logger.Debug("Initialising in CreateObject")
		if err := m.initLocked(); err != nil {
			return nil, err
		}
	}
	return m.createLocked(systemName, userName, c)
}

func (m *Manager) createLocked(systemName, userName string, c Category) (Object, error) {
	m.logger.Debug("Creating audio object", "system_name", systemName, "user_name", userName)

	encoded, err := CategoryOf(systemName)
	if err != nil {
		return nil, err
	}
	if encoded != c {
		return nil, fmt.Errorf("%w: system name %q does not denote a %s", ErrUnrecognizedCategory, systemName, c)
	}

	if _, taken := m.reg.systemIdx[systemName]; taken {
		return nil, m.reject(c, fmt.Errorf("%w: system name %q", ErrDuplicateName, systemName))
	}
	if userName != "" {
		if _, taken := m.reg.userIdx[userName]; taken {
			return nil, m.reject(c, fmt.Errorf("%w: user name %q", ErrDuplicateName, userName))
		}
	}

	count, limit := m.reg.count(c), m.reg.limits.For(c)
	if count >= limit {
		m.logger.Error("Maximum number of audio objects reached",
			"category", c.String(), "count", count, "limit", limit)
		return nil, m.reject(c, &CapacityError{Category: c, Count: count, Limit: limit})
	}

	var obj Object
	switch c {
	case CategoryListener:
		obj, err = m.backend.CreateListener(systemName, userName)
	case CategorySource:
		obj, err = m.backend.CreateSource(systemName, userName)
	case CategoryBuffer:
		obj, err = m.backend.CreateBuffer(systemName, userName)
	}
	if err != nil {
		return nil, m.reject(c, fmt.Errorf("create %s %q: %w", c, systemName, err))
	}

	m.reg.insert(obj)
	for _, o := range m.observers {
		o.ObjectCreated(obj)
	}
	return obj, nil
}

func (m *Manager) reject(c Category, err error) error {
	for _, o := range m.observers {
		o.CreateRejected(c, err)
	}
	return err
}

// Deregister removes obj from the registry and releases its native handle.
func (m *Manager) Deregister(obj Object) error {
	if isNilObject(obj) {
		return ErrNotRegistered
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := obj.Category()
	if !c.Valid() {
		return fmt.Errorf("%w: %s", ErrUnrecognizedCategory, c)
	}
	if !m.reg.remove(obj) {
		return fmt.Errorf("%w: %s", ErrNotRegistered, obj.SystemName())
	}
	if err := obj.Release(); err != nil {
		m.logger.Warn("Failed to release audio object", "system_name", obj.SystemName(), "error", err)
	}
	m.logger.Debug("Removed audio object", "category", c.String(), "count", m.reg.count(c))

	for _, o := range m.observers {
		o.ObjectRemoved(obj)
	}
	return nil
}

// isNilObject catches both a nil interface and a typed nil pointer.
func isNilObject(obj Object) bool {
	switch o := obj.(type) {
	case nil:
		return true
	case *Listener:
		return o == nil
	case *Source:
		return o == nil
	case *Buffer:
		return o == nil
	}
	return false
}

// ListByCategory returns a snapshot of the live objects of category c in
// system-name order.
func (m *Manager) ListByCategory(c Category) ([]Object, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedCategory, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg.snapshot(c), nil
}

// BySystemName returns the live object with that system name, or nil.
func (m *Manager) BySystemName(name string) Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg.systemIdx[name]
}

// ByUserName returns the live object with that user name, or nil.
func (m *Manager) ByUserName(name string) Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg.userIdx[name]
}

// Count returns the live population of category c.
func (m *Manager) Count(c Category) int {
	return m.reg.count(c)
}

// Limit returns the configured maximum for category c.
func (m *Manager) Limit(c Category) int {
	return m.reg.limits.For(c)
}

// Cleanup releases the active backend and every object created on it, then
// returns the manager to the uninitialized state. It is registered as the
// shutdown hook and is safe to call more than once.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()
}

func (m *Manager) cleanupLocked() {
	if m.state != StateActive {
		return
	}

	m.logger.Info("Shutting down active audio backend", "backend", m.backend.Name())
	m.state = StateShuttingDown
	m.initialized.Store(false)

	if m.hooks != nil {
		m.hooks.Deregister(shutdownHookName)
	}

	name := m.backend.Name()
	if err := m.backend.Cleanup(); err != nil {
		m.logger.Error("Audio backend cleanup failed", "backend", name, "error", err)
	}
	for _, obj := range m.reg.all() {
		_ = obj.Release()
	}
	m.reg.reset()
	m.backend = nil
	m.state = StateUninitialized

	for _, o := range m.observers {
		o.CleanedUp(name)
	}
}

// Dispose cleans up and makes the manager unusable.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()
	m.state = StateDisposed
}
