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

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// BeepBackend plays the mixer through the beep speaker. The speaker package is
// process-global, so only one BeepBackend may be initialized at a time.
type BeepBackend struct {
	mixerBackend
}

// NewBeepBackend creates a speaker backend. beep always renders stereo.
func NewBeepBackend(cfg EngineConfig) *BeepBackend {
	cfg = cfg.withDefaults()
	cfg.Channels = 2
	return &BeepBackend{
		mixerBackend: mixerBackend{name: BackendBeep, config: cfg},
	}
}

// Init opens the speaker and starts streaming the mixer
func (b *BeepBackend) Init() error {
	if b.initialized() {
		return nil
	}

	if err := speaker.Init(beep.SampleRate(b.config.SampleRate), b.config.FramesPerBuffer); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	m, _ := b.attach()
	speaker.Play(mixerStreamer(m))
	return nil
}

// Cleanup clears and closes the speaker
func (b *BeepBackend) Cleanup() error {
	if !b.initialized() {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	b.detach()
	return nil
}

// mixerStreamer adapts the mixer to an endless beep.Streamer.
func mixerStreamer(m *mixer) beep.Streamer {
	var scratch []float32
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		n := len(samples) * 2
		if cap(scratch) < n {
			scratch = make([]float32, n)
		}
		scratch = scratch[:n]
		m.mix(scratch)
		for i := range samples {
			samples[i][0] = float64(scratch[2*i])
			samples[i][1] = float64(scratch[2*i+1])
		}
		return len(samples), true
	})
}
