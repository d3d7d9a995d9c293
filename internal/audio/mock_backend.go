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
	"sync"
)

// MockBackend implements Backend for testing without hardware dependencies
type MockBackend struct {
	mixerBackend

	ctrl         sync.Mutex
	initError    error
	cleanupError error
	createErrors map[Category]error
	initCalls    int
	cleanupCalls int
}

// NewMockBackend creates a new mock backend registered under name
func NewMockBackend(name string) *MockBackend {
	return &MockBackend{
		mixerBackend: mixerBackend{name: name, config: DefaultEngineConfig()},
		createErrors: make(map[Category]error),
	}
}

// SetInitError configures the backend to return an error on Init()
func (m *MockBackend) SetInitError(err error) {
	m.ctrl.Lock()
	defer m.ctrl.Unlock()
	m.initError = err
}

// SetCleanupError configures the backend to return an error on Cleanup()
func (m *MockBackend) SetCleanupError(err error) {
	m.ctrl.Lock()
	defer m.ctrl.Unlock()
	m.cleanupError = err
}

// SetCreateError configures the factory for category c to fail
func (m *MockBackend) SetCreateError(c Category, err error) {
	m.ctrl.Lock()
	defer m.ctrl.Unlock()
	if err == nil {
		delete(m.createErrors, c)
		return
	}
	m.createErrors[c] = err
}

// InitCalls returns how many times Init has been invoked
func (m *MockBackend) InitCalls() int {
	m.ctrl.Lock()
	defer m.ctrl.Unlock()
	return m.initCalls
}

// CleanupCalls returns how many times Cleanup has been invoked
func (m *MockBackend) CleanupCalls() int {
	m.ctrl.Lock()
	defer m.ctrl.Unlock()
	return m.cleanupCalls
}

// Init initializes the mock engine
func (m *MockBackend) Init() error {
	m.ctrl.Lock()
	m.initCalls++
	err := m.initError
	m.ctrl.Unlock()

	if err != nil {
		return err
	}
	m.attach()
	return nil
}

// Cleanup releases every object created on the mock engine
func (m *MockBackend) Cleanup() error {
	m.ctrl.Lock()
	m.cleanupCalls++
	err := m.cleanupError
	m.ctrl.Unlock()

	m.detach()
	return err
}

func (m *MockBackend) createError(c Category) error {
	m.ctrl.Lock()
	defer m.ctrl.Unlock()
	if err := m.createErrors[c]; err != nil {
		return fmt.Errorf("mock %s: %w", c, err)
	}
	return nil
}

// CreateListener fails with the injected error for its category, if any
func (m *MockBackend) CreateListener(systemName, userName string) (*Listener, error) {
	if err := m.createError(CategoryListener); err != nil {
		return nil, err
	}
	return m.mixerBackend.CreateListener(systemName, userName)
}

// CreateSource fails with the injected error for its category, if any
func (m *MockBackend) CreateSource(systemName, userName string) (*Source, error) {
	if err := m.createError(CategorySource); err != nil {
		return nil, err
	}
	return m.mixerBackend.CreateSource(systemName, userName)
}

// CreateBuffer fails with the injected error for its category, if any
func (m *MockBackend) CreateBuffer(systemName, userName string) (*Buffer, error) {
	if err := m.createError(CategoryBuffer); err != nil {
		return nil, err
	}
	return m.mixerBackend.CreateBuffer(systemName, userName)
}

// Render mixes len(out) interleaved samples as a device would
func (m *MockBackend) Render(out []float32) {
	if e, err := m.current(); err == nil {
		e.mix(out)
	}
}
