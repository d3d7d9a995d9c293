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

// Backend is an interchangeable audio engine. Exactly one is active per Manager.
type Backend interface {
	// Name identifies the backend in the selector's constructor table
	Name() string

	// Init acquires the device or driver context. A non-nil error means the
	// backend is unusable and the selector moves on.
	Init() error

	// Cleanup releases the device and invalidates every object created on it
	Cleanup() error

	// CreateListener allocates a native listener
	CreateListener(systemName, userName string) (*Listener, error)

	// CreateSource allocates a native source
	CreateSource(systemName, userName string) (*Source, error)

	// CreateBuffer allocates a native buffer
	CreateBuffer(systemName, userName string) (*Buffer, error)
}

// EngineConfig holds the output format every device backend opens with.
type EngineConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// DefaultEngineConfig returns 44.1 kHz stereo with 512-frame periods.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleRate:      44100,
		Channels:        2,
		FramesPerBuffer: 512,
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	d := DefaultEngineConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = d.FramesPerBuffer
	}
	return c
}

// mixerBackend provides the object factories shared by every backend. The
// embedding type opens a device that pulls frames from the mixer.
type mixerBackend struct {
	mu     sync.Mutex
	name   string
	config EngineConfig
	engine *mixer
}

func (b *mixerBackend) Name() string { return b.name }

func (b *mixerBackend) current() (*mixer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.engine == nil {
		return nil, fmt.Errorf("%s: %w", b.name, ErrNotInitialized)
	}
	return b.engine, nil
}

// attach installs a fresh mixer; it returns false if one is already running.
func (b *mixerBackend) attach() (*mixer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.engine != nil {
		return b.engine, false
	}
	b.engine = newMixer(b.config.SampleRate, b.config.Channels)
	return b.engine, true
}

// detach invalidates all objects and drops the mixer.
func (b *mixerBackend) detach() {
	b.mu.Lock()
	m := b.engine
	b.engine = nil
	b.mu.Unlock()
	if m != nil {
		m.releaseAll()
	}
}

func (b *mixerBackend) initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine != nil
}

func (b *mixerBackend) CreateListener(systemName, userName string) (*Listener, error) {
	m, err := b.current()
	if err != nil {
		return nil, err
	}
	l := newListener(m, systemName, userName)
	m.addListener(l)
	return l, nil
}

func (b *mixerBackend) CreateSource(systemName, userName string) (*Source, error) {
	m, err := b.current()
	if err != nil {
		return nil, err
	}
	s := newSource(m, systemName, userName)
	m.addSource(s)
	return s, nil
}

func (b *mixerBackend) CreateBuffer(systemName, userName string) (*Buffer, error) {
	m, err := b.current()
	if err != nil {
		return nil, err
	}
	buf := newBuffer(m, systemName, userName)
	m.addBuffer(buf)
	return buf, nil
}
