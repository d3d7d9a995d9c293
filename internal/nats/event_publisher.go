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
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loqalabs/loqa-audio-manager/internal/audio"
)

// Event kinds, also the last token of the event subject.
const (
	EventBackendSelected = "backend_selected"
	EventObjectCreated   = "object_created"
	EventObjectRemoved   = "object_removed"
	EventCreateRejected  = "create_rejected"
	EventCleanedUp       = "cleaned_up"
)

// AttemptInfo describes one selector attempt
type AttemptInfo struct {
	Backend    string  `json:"backend"`
	Override   bool    `json:"override,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

// Event is published on <prefix>.events.<kind>
type Event struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	Time       time.Time     `json:"time"`
	Backend    string        `json:"backend,omitempty"`
	Category   string        `json:"category,omitempty"`
	SystemName string        `json:"system_name,omitempty"`
	UserName   string        `json:"user_name,omitempty"`
	Error      string        `json:"error,omitempty"`
	Attempts   []AttemptInfo `json:"attempts,omitempty"`
}

// EventPublisher forwards audio manager events to NATS
type EventPublisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

var _ audio.Observer = (*EventPublisher)(nil)

// NewEventPublisher publishes on subjects under prefix (e.g. "audio")
func NewEventPublisher(conn Conn, prefix string, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{conn: conn, prefix: prefix, logger: logger, now: time.Now}
}

// Subject returns the subject events of kind are published on
func (p *EventPublisher) Subject(kind string) string {
	return p.prefix + ".events." + kind
}

func (p *EventPublisher) publish(ev Event) {
	ev.ID = uuid.NewString()
	ev.Time = p.now().UTC()

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("Failed to marshal audio event", "kind", ev.Kind, "error", err)
		return
	}
	if err := p.conn.Publish(p.Subject(ev.Kind), data); err != nil {
		p.logger.Warn("Failed to publish audio event", "kind", ev.Kind, "error", err)
	}
}

func (p *EventPublisher) BackendSelected(backend string, attempts []audio.Attempt) {
	infos := make([]AttemptInfo, 0, len(attempts))
	for _, a := range attempts {
		info := AttemptInfo{
			Backend:    a.Backend,
			Override:   a.Override,
			DurationMS: float64(a.Duration.Microseconds()) / 1000,
		}
		if a.Err != nil {
			info.Error = a.Err.Error()
		}
		infos = append(infos, info)
	}
	p.publish(Event{Kind: EventBackendSelected, Backend: backend, Attempts: infos})
}

func (p *EventPublisher) ObjectCreated(obj audio.Object) {
	p.publish(objectEvent(EventObjectCreated, obj))
}

func (p *EventPublisher) ObjectRemoved(obj audio.Object) {
	p.publish(objectEvent(EventObjectRemoved, obj))
}

func (p *EventPublisher) CreateRejected(category audio.Category, err error) {
	p.publish(Event{Kind: EventCreateRejected, Category: category.String(), Error: err.Error()})
}

func (p *EventPublisher) CleanedUp(backend string) {
	p.publish(Event{Kind: EventCleanedUp, Backend: backend})
}

func objectEvent(kind string, obj audio.Object) Event {
	return Event{
		Kind:       kind,
		Category:   obj.Category().String(),
		SystemName: obj.SystemName(),
		UserName:   obj.UserName(),
	}
}
