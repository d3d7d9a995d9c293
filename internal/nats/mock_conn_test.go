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
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

type publishedMsg struct {
	subject string
	data    []byte
}

// MockNATSConnection records publishes and delivers requests to subscribers
type MockNATSConnection struct {
	mu          sync.RWMutex
	subscribers map[string][]nats.MsgHandler
	published   []publishedMsg
	connected   bool
	errors      map[string]error
	publishErr  error
}

func NewMockNATSConnection() *MockNATSConnection {
	return &MockNATSConnection{
		subscribers: make(map[string][]nats.MsgHandler),
		connected:   true,
		errors:      make(map[string]error),
	}
}

func (m *MockNATSConnection) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, nats.ErrConnectionClosed
	}
	if err, exists := m.errors[subject]; exists {
		return nil, err
	}

	m.subscribers[subject] = append(m.subscribers[subject], handler)
	return &nats.Subscription{}, nil
}

func (m *MockNATSConnection) Publish(subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nats.ErrConnectionClosed
	}
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, publishedMsg{subject: subject, data: append([]byte(nil), data...)})
	return nil
}

// Request delivers a message synchronously to every matching subscriber
func (m *MockNATSConnection) Request(subject, reply string, data []byte) {
	m.mu.RLock()
	var handlers []nats.MsgHandler
	for pattern, hs := range m.subscribers {
		if subjectMatches(pattern, subject) {
			handlers = append(handlers, hs...)
		}
	}
	m.mu.RUnlock()

	msg := &nats.Msg{Subject: subject, Reply: reply, Data: data}
	for _, handler := range handlers {
		handler(msg)
	}
}

func (m *MockNATSConnection) Published() []publishedMsg {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]publishedMsg, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockNATSConnection) SetError(subject string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[subject] = err
}

func (m *MockNATSConnection) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

func (m *MockNATSConnection) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// subjectMatches handles the single-token "*" wildcard
func subjectMatches(pattern, subject string) bool {
	p := strings.Split(pattern, ".")
	s := strings.Split(subject, ".")
	if len(p) != len(s) {
		return false
	}
	for i := range p {
		if p[i] != "*" && p[i] != s[i] {
			return false
		}
	}
	return true
}
