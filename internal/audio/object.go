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
	"time"
)

// Object is an audio object tracked by the Manager.
type Object interface {
	SystemName() string
	UserName() string
	Category() Category

	// Release frees the backend-native handle. It is safe to call more than once.
	// It does not deregister the object: a released object still holds its
	// capacity slot and user name until Manager.Deregister removes it, so
	// callers normally use Deregister instead.
	Release() error

	// Released reports whether the native handle has been freed, either by
	// Release or by the owning backend being cleaned up.
	Released() bool
}

// Vector3 is a position, velocity or direction in listener space.
type Vector3 struct {
	X, Y, Z float64
}

func (v Vector3) sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector3) dot(o Vector3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vector3) length() float64       { return math.Sqrt(v.dot(v)) }

func (v Vector3) cross(o Vector3) Vector3 {
	return Vector3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

type namedObject struct {
	systemName string
	userName   string
	category   Category
}

func (n namedObject) SystemName() string { return n.systemName }
func (n namedObject) UserName() string   { return n.userName }
func (n namedObject) Category() Category { return n.category }

// DisplayName returns the user name when set, otherwise the system name.
func (n namedObject) DisplayName() string {
	if n.userName != "" {
		return n.userName
	}
	return n.systemName
}

// Listener is the receiving point for spatial audio. Its state is guarded by
// the mixer lock because device callbacks read it.
type Listener struct {
	namedObject
	engine   *mixer
	released bool

	position      Vector3
	velocity      Vector3
	orientationAt Vector3
	orientationUp Vector3
	gain          float64
	metersPerUnit float64
}

func newListener(m *mixer, systemName, userName string) *Listener {
	return &Listener{
		namedObject:   namedObject{systemName: systemName, userName: userName, category: CategoryListener},
		engine:        m,
		orientationAt: Vector3{0, 0, -1},
		orientationUp: Vector3{0, 1, 0},
		gain:          1,
		metersPerUnit: 1,
	}
}

// SetPosition moves the listener.
func (l *Listener) SetPosition(p Vector3) error {
	return l.engine.update(&l.released, func() { l.position = p })
}

// Position returns the listener position.
func (l *Listener) Position() Vector3 {
	l.engine.mu.Lock()
	defer l.engine.mu.Unlock()
	return l.position
}

// SetVelocity sets the listener velocity.
func (l *Listener) SetVelocity(v Vector3) error {
	return l.engine.update(&l.released, func() { l.velocity = v })
}

// Velocity returns the listener velocity.
func (l *Listener) Velocity() Vector3 {
	l.engine.mu.Lock()
	defer l.engine.mu.Unlock()
	return l.velocity
}

// SetOrientation sets the facing direction and the up vector.
func (l *Listener) SetOrientation(at, up Vector3) error {
	if at.length() == 0 || up.length() == 0 {
		return fmt.Errorf("listener %s: orientation vectors must be non-zero", l.systemName)
	}
	return l.engine.update(&l.released, func() {
		l.orientationAt = at
		l.orientationUp = up
	})
}

// Orientation returns the facing direction and up vector.
func (l *Listener) Orientation() (at, up Vector3) {
	l.engine.mu.Lock()
	defer l.engine.mu.Unlock()
	return l.orientationAt, l.orientationUp
}

// SetGain sets the master gain applied to every source.
func (l *Listener) SetGain(g float64) error {
	if g < 0 {
		return fmt.Errorf("listener %s: gain must not be negative, got %v", l.systemName, g)
	}
	return l.engine.update(&l.released, func() { l.gain = g })
}

// Gain returns the master gain.
func (l *Listener) Gain() float64 {
	l.engine.mu.Lock()
	defer l.engine.mu.Unlock()
	return l.gain
}

// SetMetersPerUnit sets the world scale used for distance calculations.
func (l *Listener) SetMetersPerUnit(mpu float64) error {
	if mpu <= 0 {
		return fmt.Errorf("listener %s: meters per unit must be positive, got %v", l.systemName, mpu)
	}
	return l.engine.update(&l.released, func() { l.metersPerUnit = mpu })
}

// MetersPerUnit returns the world scale.
func (l *Listener) MetersPerUnit() float64 {
	l.engine.mu.Lock()
	defer l.engine.mu.Unlock()
	return l.metersPerUnit
}

// Release frees the native handle without deregistering; see Manager.Deregister.
func (l *Listener) Release() error {
	l.engine.releaseListener(l)
	return nil
}

// Released reports whether the native handle has been freed.
func (l *Listener) Released() bool {
	l.engine.mu.Lock()
	defer l.engine.mu.Unlock()
	return l.released
}

// SourceState is the playback state of a Source.
type SourceState int

const (
	SourceInitial SourceState = iota
	SourcePlaying
	SourcePaused
	SourceStopped
)

func (s SourceState) String() string {
	switch s {
	case SourceInitial:
		return "initial"
	case SourcePlaying:
		return "playing"
	case SourcePaused:
		return "paused"
	case SourceStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Source is an emitting point that plays a bound Buffer.
type Source struct {
	namedObject
	engine   *mixer
	released bool

	buffer            *Buffer
	position          Vector3
	velocity          Vector3
	gain              float64
	pitch             float64
	looping           bool
	referenceDistance float64
	maxDistance       float64
	rolloffFactor     float64
	state             SourceState
	cursor            float64
}

func newSource(m *mixer, systemName, userName string) *Source {
	return &Source{
		namedObject:       namedObject{systemName: systemName, userName: userName, category: CategorySource},
		engine:            m,
		gain:              1,
		pitch:             1,
		referenceDistance: 1,
		maxDistance:       math.MaxFloat32,
		rolloffFactor:     1,
	}
}

// BindBuffer attaches b as the audio data for this source. A nil buffer unbinds
// and stops the source.
func (s *Source) BindBuffer(b *Buffer) error {
	if b != nil && b.engine != s.engine {
		return fmt.Errorf("source %s: buffer %s belongs to a different backend", s.systemName, b.systemName)
	}
	m := s.engine
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.released {
		return fmt.Errorf("source %s: %w", s.systemName, ErrReleased)
	}
	if b != nil && b.released {
		return fmt.Errorf("buffer %s: %w", b.systemName, ErrReleased)
	}
	s.buffer = b
	s.cursor = 0
	if b == nil && s.state == SourcePlaying {
		s.state = SourceStopped
	}
	return nil
}

// Buffer returns the bound buffer, or nil.
func (s *Source) Buffer() *Buffer {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.buffer
}

// Play starts playback, resuming from the pause point if paused.
func (s *Source) Play() error {
	m := s.engine
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.released {
		return fmt.Errorf("source %s: %w", s.systemName, ErrReleased)
	}
	if s.buffer == nil {
		return fmt.Errorf("source %s: no buffer bound", s.systemName)
	}
	if s.state != SourcePaused {
		s.cursor = 0
	}
	s.state = SourcePlaying
	return nil
}

// Pause suspends playback at the current position.
func (s *Source) Pause() error {
	return s.engine.update(&s.released, func() {
		if s.state == SourcePlaying {
			s.state = SourcePaused
		}
	})
}

// Stop halts playback and rewinds.
func (s *Source) Stop() error {
	return s.engine.update(&s.released, func() {
		if s.state != SourceInitial {
			s.state = SourceStopped
		}
		s.cursor = 0
	})
}

// State returns the playback state.
func (s *Source) State() SourceState {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.state
}

// SetPosition moves the source.
func (s *Source) SetPosition(p Vector3) error {
	return s.engine.update(&s.released, func() { s.position = p })
}

// Position returns the source position.
func (s *Source) Position() Vector3 {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.position
}

// SetVelocity sets the source velocity.
func (s *Source) SetVelocity(v Vector3) error {
	return s.engine.update(&s.released, func() { s.velocity = v })
}

// SetGain sets the source gain.
func (s *Source) SetGain(g float64) error {
	if g < 0 {
		return fmt.Errorf("source %s: gain must not be negative, got %v", s.systemName, g)
	}
	return s.engine.update(&s.released, func() { s.gain = g })
}

// Gain returns the source gain.
func (s *Source) Gain() float64 {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.gain
}

// SetPitch scales playback speed. It must be positive.
func (s *Source) SetPitch(p float64) error {
	if p <= 0 {
		return fmt.Errorf("source %s: pitch must be positive, got %v", s.systemName, p)
	}
	return s.engine.update(&s.released, func() { s.pitch = p })
}

// SetLooping makes playback wrap at the end of the buffer.
func (s *Source) SetLooping(loop bool) error {
	return s.engine.update(&s.released, func() { s.looping = loop })
}

// Looping reports whether playback wraps.
func (s *Source) Looping() bool {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.looping
}

// SetDistanceModel configures inverse-distance-clamped attenuation.
func (s *Source) SetDistanceModel(reference, maxDistance, rolloff float64) error {
	if reference < 0 || maxDistance < reference || rolloff < 0 {
		return fmt.Errorf("source %s: invalid distance model ref=%v max=%v rolloff=%v",
			s.systemName, reference, maxDistance, rolloff)
	}
	return s.engine.update(&s.released, func() {
		s.referenceDistance = reference
		s.maxDistance = maxDistance
		s.rolloffFactor = rolloff
	})
}

// Release frees the native handle without deregistering; see Manager.Deregister.
func (s *Source) Release() error {
	s.engine.releaseSource(s)
	return nil
}

// Released reports whether the native handle has been freed.
func (s *Source) Released() bool {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.released
}

// Buffer holds mono sample data that sources play.
type Buffer struct {
	namedObject
	engine   *mixer
	released bool

	samples    []float32
	sampleRate int
	url        string
}

func newBuffer(m *mixer, systemName, userName string) *Buffer {
	return &Buffer{
		namedObject: namedObject{systemName: systemName, userName: userName, category: CategoryBuffer},
		engine:      m,
	}
}

// Load replaces the buffer contents with a copy of samples.
func (b *Buffer) Load(samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("buffer %s: sample rate must be positive, got %d", b.systemName, sampleRate)
	}
	data := make([]float32, len(samples))
	copy(data, samples)
	return b.engine.update(&b.released, func() {
		b.samples = data
		b.sampleRate = sampleRate
		b.url = ""
		b.engine.rewindSourcesOf(b)
	})
}

// Frames returns the number of sample frames loaded.
func (b *Buffer) Frames() int {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()
	return len(b.samples)
}

// SampleRate returns the rate of the loaded data, or 0 when empty.
func (b *Buffer) SampleRate() int {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()
	return b.sampleRate
}

// Duration returns the playback length at unit pitch.
func (b *Buffer) Duration() time.Duration {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()
	if b.sampleRate == 0 {
		return 0
	}
	return time.Duration(len(b.samples)) * time.Second / time.Duration(b.sampleRate)
}

// URL returns the location the data was loaded from, if any.
func (b *Buffer) URL() string {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()
	return b.url
}

// Release frees the native handle without deregistering; see Manager.Deregister.
func (b *Buffer) Release() error {
	b.engine.releaseBuffer(b)
	return nil
}

// Released reports whether the native handle has been freed.
func (b *Buffer) Released() bool {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()
	return b.released
}
