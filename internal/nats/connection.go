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

package nats

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Conn is the subset of *nats.Conn the audio manager uses, for dependency injection
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Close()
}

// ConnAdapter adapts *nats.Conn to the Conn interface
type ConnAdapter struct {
	conn *nats.Conn
}

func NewConnAdapter(conn *nats.Conn) *ConnAdapter {
	return &ConnAdapter{conn: conn}
}

func (a *ConnAdapter) Publish(subject string, data []byte) error {
	return a.conn.Publish(subject, data)
}

func (a *ConnAdapter) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	return a.conn.Subscribe(subject, cb)
}

func (a *ConnAdapter) Close() {
	a.conn.Close()
}

// Connect dials url, retrying up to tries times with delay between attempts
func Connect(url string, tries int, delay time.Duration, logger *slog.Logger) (*ConnAdapter, error) {
	if tries < 1 {
		tries = 1
	}

	var nc *nats.Conn
	var err error
	for i := 0; i < tries; i++ {
		nc, err = nats.Connect(url, nats.Name("loqa-audio-manager"))
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS", "attempt", i+1, "tries", tries, "error", err)
		if i < tries-1 {
			time.Sleep(delay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", tries, err)
	}

	logger.Info("Connected to NATS", "url", url)
	return NewConnAdapter(nc), nil
}
