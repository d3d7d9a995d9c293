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

// NullBackend keeps object state without opening any device. Its Init never
// fails, which makes it the terminal fallback for the selector and the
// backend to request in headless environments.
type NullBackend struct {
	mixerBackend
}

// NewNullBackend creates a device-less backend.
func NewNullBackend(cfg EngineConfig) *NullBackend {
	return &NullBackend{
		mixerBackend: mixerBackend{name: BackendNull, config: cfg.withDefaults()},
	}
}

// Init attaches a mixer; it never fails
func (n *NullBackend) Init() error {
	n.attach()
	return nil
}

// Cleanup releases every object created on the backend
func (n *NullBackend) Cleanup() error {
	n.detach()
	return nil
}

// Render mixes len(out) interleaved samples as a device would. It is a no-op
// before Init.
func (n *NullBackend) Render(out []float32) {
	if m, err := n.current(); err == nil {
		m.mix(out)
	}
}
