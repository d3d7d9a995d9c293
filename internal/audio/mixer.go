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
	"math"
	"sync"
)

// mixer is the software engine every backend drives from its device callback.
// It owns the state of all objects the backend has created.
type mixer struct {
	mu         sync.Mutex
	sampleRate int
	channels   int

	listeners map[*Listener]struct{}
	sources   map[*Source]struct{}
	buffers   map[*Buffer]struct{}
	active    *Listener
}

func newMixer(sampleRate, channels int) *mixer {
	return &mixer{
		sampleRate: sampleRate,
		channels:   channels,
		listeners:  make(map[*Listener]struct{}),
		sources:    make(map[*Source]struct{}),
		buffers:    make(map[*Buffer]struct{}),
	}
}

func (m *mixer) update(released *bool, fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if *released {
		return ErrReleased
	}
	fn()
	return nil
}

func (m *mixer) addListener(l *Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[l] = struct{}{}
	if m.active == nil {
		m.active = l
	}
}

func (m *mixer) addSource(s *Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[s] = struct{}{}
}

func (m *mixer) addBuffer(b *Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers[b] = struct{}{}
}

func (m *mixer) releaseListener(l *Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.released = true
	delete(m.listeners, l)
	if m.active == l {
		m.active = nil
		for next := range m.listeners {
			m.active = next
			break
		}
	}
}

func (m *mixer) releaseSource(s *Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.released = true
	s.state = SourceStopped
	s.buffer = nil
	delete(m.sources, s)
}

func (m *mixer) releaseBuffer(b *Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.released = true
	b.samples = nil
	for s := range m.sources {
		if s.buffer == b {
			s.buffer = nil
			s.cursor = 0
			if s.state == SourcePlaying || s.state == SourcePaused {
				s.state = SourceStopped
			}
		}
	}
	delete(m.buffers, b)
}

// rewindSourcesOf must be called with m.mu held.
func (m *mixer) rewindSourcesOf(b *Buffer) {
	for s := range m.sources {
		if s.buffer == b {
			s.cursor = 0
		}
	}
}

// releaseAll invalidates every object created on this mixer.
func (m *mixer) releaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for l := range m.listeners {
		l.released = true
	}
	for s := range m.sources {
		s.released = true
		s.state = SourceStopped
		s.buffer = nil
	}
	for b := range m.buffers {
		b.released = true
		b.samples = nil
	}
	m.listeners = make(map[*Listener]struct{})
	m.sources = make(map[*Source]struct{})
	m.buffers = make(map[*Buffer]struct{})
	m.active = nil
}

// mix renders len(out)/channels interleaved frames into out.
func (m *mixer) mix(out []float32) {
	for i := range out {
		out[i] = 0
	}
	if m.channels <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	frames := len(out) / m.channels
	listenerPos := Vector3{}
	listenerGain := 1.0
	scale := 1.0
	right := Vector3{1, 0, 0}
	if l := m.active; l != nil {
		listenerPos = l.position
		listenerGain = l.gain
		scale = l.metersPerUnit
		if r := l.orientationAt.cross(l.orientationUp); r.length() > 0 {
			right = r
		}
	}

	for s := range m.sources {
		if s.state != SourcePlaying || s.buffer == nil {
			continue
		}
		b := s.buffer
		if len(b.samples) == 0 || b.sampleRate == 0 {
			s.state = SourceStopped
			s.cursor = 0
			continue
		}

		rel := s.position.sub(listenerPos)
		dist := rel.length() * scale
		gain := s.gain * listenerGain * attenuation(dist, s.referenceDistance, s.maxDistance, s.rolloffFactor)
		pan := 0.0
		if d := rel.length(); d > 0 {
			pan = clamp(rel.dot(right)/(d*right.length()), -1, 1)
		}
		left, rightGain := panGains(pan)

		step := s.pitch * float64(b.sampleRate) / float64(m.sampleRate)
		n := float64(len(b.samples))
		for f := 0; f < frames; f++ {
			if s.cursor >= n {
				if !s.looping {
					s.state = SourceStopped
					s.cursor = 0
					break
				}
				s.cursor = math.Mod(s.cursor, n)
			}
			v := float64(b.samples[int(s.cursor)]) * gain
			if m.channels == 1 {
				out[f] += float32(v)
			} else {
				out[f*m.channels] += float32(v * left)
				out[f*m.channels+1] += float32(v * rightGain)
			}
			s.cursor += step
		}
	}

	for i, v := range out {
		out[i] = float32(clamp(float64(v), -1, 1))
	}
}

func (m *mixer) String() string {
	return fmt.Sprintf("mixer(%d Hz, %d ch)", m.sampleRate, m.channels)
}

// attenuation implements the inverse-distance-clamped model.
func attenuation(dist, ref, maxDist, rolloff float64) float64 {
	if ref <= 0 {
		return 1
	}
	d := clamp(dist, ref, maxDist)
	return ref / (ref + rolloff*(d-ref))
}

// panGains returns equal-power left/right gains for pan in [-1, 1].
func panGains(pan float64) (float64, float64) {
	angle := (pan + 1) * math.Pi / 4
	return math.Cos(angle), math.Sin(angle)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
