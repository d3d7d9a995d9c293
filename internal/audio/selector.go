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
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Names of the built-in backends, usable as the configured override.
const (
	BackendMiniaudio = "miniaudio"
	BackendPortAudio = "portaudio"
	BackendBeep      = "beep"
	BackendNull      = "null"
)

// Constructor builds an uninitialized backend.
type Constructor func(cfg EngineConfig) Backend

// Candidate pairs a backend name with its constructor.
type Candidate struct {
	Name string
	New  Constructor
}

// DefaultCandidates returns the real backends in preference order, highest
// fidelity first.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Name: BackendMiniaudio, New: func(cfg EngineConfig) Backend { return NewMiniaudioBackend(cfg) }},
		{Name: BackendPortAudio, New: func(cfg EngineConfig) Backend { return NewPortAudioBackend(cfg) }},
		{Name: BackendBeep, New: func(cfg EngineConfig) Backend { return NewBeepBackend(cfg) }},
	}
}

// NullCandidate returns the terminal fallback.
func NullCandidate() Candidate {
	return Candidate{Name: BackendNull, New: func(cfg EngineConfig) Backend { return NewNullBackend(cfg) }}
}

// Attempt records one backend initialization tried by the selector.
type Attempt struct {
	Backend  string
	Override bool
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the attempt produced the active backend.
func (a Attempt) Succeeded() bool { return a.Err == nil }

// ErrUnknownBackend is recorded when the override names no known constructor.
var ErrUnknownBackend = errors.New("unknown audio backend")

// Selector picks the backend for a Manager init cycle. Select never fails:
// the fallback candidate is always instantiated last.
type Selector struct {
	override   string
	config     EngineConfig
	candidates []Candidate
	fallback   Candidate
	known      map[string]Constructor
	logger     *slog.Logger
}

// SelectorOption customizes a Selector.
type SelectorOption func(*Selector)

// WithCandidates replaces the preference list.
func WithCandidates(c ...Candidate) SelectorOption {
	return func(s *Selector) { s.candidates = c }
}

// WithFallback replaces the terminal fallback.
func WithFallback(c Candidate) SelectorOption {
	return func(s *Selector) { s.fallback = c }
}

// WithKnown adds constructors that may be named by the override without being
// part of the preference list.
func WithKnown(c ...Candidate) SelectorOption {
	return func(s *Selector) {
		for _, cand := range c {
			s.known[normalizeBackendName(cand.Name)] = cand.New
		}
	}
}

// WithLogger sets the selector logger.
func WithLogger(l *slog.Logger) SelectorOption {
	return func(s *Selector) { s.logger = l }
}

// NewSelector creates a selector that tries override first (empty means none),
// then the default candidates, then the null backend.
func NewSelector(override string, cfg EngineConfig, opts ...SelectorOption) *Selector {
	s := &Selector{
		override:   normalizeBackendName(override),
		config:     cfg.withDefaults(),
		candidates: DefaultCandidates(),
		fallback:   NullCandidate(),
		known:      make(map[string]Constructor),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, c := range s.candidates {
		s.known[normalizeBackendName(c.Name)] = c.New
	}
	s.known[normalizeBackendName(s.fallback.Name)] = s.fallback.New
	return s
}

// Override returns the configured override name, or "".
func (s *Selector) Override() string { return s.override }

// Names returns the preference order followed by the fallback.
func (s *Selector) Names() []string {
	names := make([]string, 0, len(s.candidates)+1)
	for _, c := range s.candidates {
		names = append(names, c.Name)
	}
	return append(names, s.fallback.Name)
}

// Select returns an initialized backend together with every attempt made.
func (s *Selector) Select() (Backend, []Attempt) {
	var attempts []Attempt
	tried := make(map[string]bool)

	if s.override != "" {
		tried[s.override] = true
		ctor, ok := s.known[s.override]
		if !ok {
			s.logger.Error("Configured audio backend is not known, continuing",
				"backend", s.override)
			attempts = append(attempts, Attempt{Backend: s.override, Override: true, Err: ErrUnknownBackend})
		} else {
			s.logger.Debug("Trying configured audio backend", "backend", s.override)
			b, a := s.try(s.override, ctor, true)
			attempts = append(attempts, a)
			if b != nil {
				return b, attempts
			}
			s.logger.Error("Configured audio backend did not initialize, continuing",
				"backend", s.override, "error", a.Err)
		}
	}

	for _, c := range s.candidates {
		name := normalizeBackendName(c.Name)
		if tried[name] {
			continue
		}
		tried[name] = true
		s.logger.Debug("Trying audio backend", "backend", name)
		b, a := s.try(name, c.New, false)
		attempts = append(attempts, a)
		if b != nil {
			return b, attempts
		}
		s.logger.Warn("Audio backend did not initialize", "backend", name, "error", a.Err)
	}

	name := normalizeBackendName(s.fallback.Name)
	s.logger.Debug("Trying fallback audio backend", "backend", name)
	start := time.Now()
	b := s.fallback.New(s.config)
	err := b.Init()
	if err != nil {
		// the fallback is defined to succeed; keep it anyway
		s.logger.Error("Fallback audio backend reported an init error", "backend", name, "error", err)
	}
	attempts = append(attempts, Attempt{Backend: name, Err: err, Duration: time.Since(start)})
	return b, attempts
}

func (s *Selector) try(name string, ctor Constructor, override bool) (b Backend, a Attempt) {
	a = Attempt{Backend: name, Override: override}
	start := time.Now()
	var candidate Backend
	defer func() {
		// cgo-backed constructors can panic when the native library is missing
		if r := recover(); r != nil {
			b = nil
			a.Err = errors.New("backend panicked during init")
			a.Duration = time.Since(start)
			s.logger.Error("Audio backend panicked during init", "backend", name, "panic", r)
			if candidate != nil {
				s.release(name, candidate)
			}
		}
	}()

	candidate = ctor(s.config)
	if err := candidate.Init(); err != nil {
		a.Err = err
		a.Duration = time.Since(start)
		return nil, a
	}
	a.Duration = time.Since(start)
	return candidate, a
}

// release cleans up a candidate whose Init panicked part way through.
func (s *Selector) release(name string, candidate Backend) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Audio backend panicked during cleanup", "backend", name, "panic", r)
		}
	}()
	if err := candidate.Cleanup(); err != nil {
		s.logger.Warn("Audio backend cleanup after panic failed", "backend", name, "error", err)
	}
}

func normalizeBackendName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
