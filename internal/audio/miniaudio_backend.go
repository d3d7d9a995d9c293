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
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
)

// MiniaudioBackend drives the mixer from a miniaudio playback device.
type MiniaudioBackend struct {
	mixerBackend
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewMiniaudioBackend creates a backend for the default miniaudio playback device.
func NewMiniaudioBackend(cfg EngineConfig) *MiniaudioBackend {
	return &MiniaudioBackend{
		mixerBackend: mixerBackend{name: BackendMiniaudio, config: cfg.withDefaults()},
	}
}

// Init opens the miniaudio context and starts the playback device
func (b *MiniaudioBackend) Init() error {
	if b.initialized() {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}

	m, _ := b.attach()
	channels := b.config.Channels

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(b.config.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(b.config.FramesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1

	// The data callback only ever runs on the device thread.
	var scratch []float32
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			n := int(frameCount) * channels
			if cap(scratch) < n {
				scratch = make([]float32, n)
			}
			scratch = scratch[:n]
			m.mix(scratch)
			for i, v := range scratch {
				binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		b.detach()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		b.detach()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	b.ctx = ctx
	b.device = device
	return nil
}

// Cleanup stops the device and frees the miniaudio context
func (b *MiniaudioBackend) Cleanup() error {
	if !b.initialized() {
		return nil
	}

	var errs []error
	if b.device != nil {
		if err := b.device.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop device: %w", err))
		}
		b.device.Uninit()
		b.device = nil
	}
	b.detach()

	if b.ctx != nil {
		if err := b.ctx.Uninit(); err != nil {
			errs = append(errs, fmt.Errorf("uninit context: %w", err))
		}
		b.ctx.Free()
		b.ctx = nil
	}
	return errors.Join(errs...)
}
