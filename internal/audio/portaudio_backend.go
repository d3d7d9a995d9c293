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
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend drives the mixer from a PortAudio default output stream.
// Init and Cleanup are serialized by the Manager.
type PortAudioBackend struct {
	mixerBackend
	stream *portaudio.Stream
}

// NewPortAudioBackend creates a new PortAudio backend
func NewPortAudioBackend(cfg EngineConfig) *PortAudioBackend {
	return &PortAudioBackend{
		mixerBackend: mixerBackend{name: BackendPortAudio, config: cfg.withDefaults()},
	}
}

// Init initializes the PortAudio subsystem and starts the output stream
func (p *PortAudioBackend) Init() error {
	if p.initialized() {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	m, _ := p.attach()
	stream, err := portaudio.OpenDefaultStream(
		0,                 // input channels (none for playback)
		p.config.Channels, // output channels
		float64(p.config.SampleRate),
		p.config.FramesPerBuffer,
		func(out []float32) { m.mix(out) },
	)
	if err != nil {
		p.detach()
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to open output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		p.detach()
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	p.stream = stream
	return nil
}

// Cleanup stops the stream and terminates PortAudio
func (p *PortAudioBackend) Cleanup() error {
	if !p.initialized() {
		return nil
	}

	var errs []error
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop stream: %w", err))
		}
		if err := p.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
		p.stream = nil
	}
	p.detach()

	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminate PortAudio: %w", err))
	}
	return errors.Join(errs...)
}
