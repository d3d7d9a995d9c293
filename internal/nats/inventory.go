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
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-audio-manager/internal/audio"
)

// Lister is the enumeration side of audio.Manager
type Lister interface {
	ListByCategory(c audio.Category) ([]audio.Object, error)
}

// ObjectInfo is one entry of an inventory reply
type ObjectInfo struct {
	SystemName string `json:"system_name"`
	UserName   string `json:"user_name,omitempty"`
	State      string `json:"state,omitempty"`
	Frames     int    `json:"frames,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// InventoryReply answers a request on <prefix>.inventory.<category>
type InventoryReply struct {
	Category string       `json:"category"`
	Objects  []ObjectInfo `json:"objects"`
	Error    string       `json:"error,omitempty"`
}

// InventoryResponder serves the ordered object sets to remote panels
type InventoryResponder struct {
	conn   Conn
	prefix string
	lister Lister
	logger *slog.Logger
}

func NewInventoryResponder(conn Conn, prefix string, lister Lister, logger *slog.Logger) *InventoryResponder {
	return &InventoryResponder{conn: conn, prefix: prefix, lister: lister, logger: logger}
}

// Subject returns the wildcard subject the responder listens on
func (r *InventoryResponder) Subject() string {
	return r.prefix + ".inventory.*"
}

// Start subscribes to inventory requests
func (r *InventoryResponder) Start() error {
	if _, err := r.conn.Subscribe(r.Subject(), r.handleRequest); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.Subject(), err)
	}
	r.logger.Info("Serving audio inventory", "subject", r.Subject())
	return nil
}

func (r *InventoryResponder) handleRequest(msg *nats.Msg) {
	if msg.Reply == "" {
		r.logger.Debug("Dropping inventory request without reply subject", "subject", msg.Subject)
		return
	}

	token := msg.Subject[strings.LastIndex(msg.Subject, ".")+1:]
	reply := r.inventory(token)

	data, err := json.Marshal(reply)
	if err != nil {
		r.logger.Error("Failed to marshal inventory reply", "error", err)
		return
	}
	if err := r.conn.Publish(msg.Reply, data); err != nil {
		r.logger.Warn("Failed to send inventory reply", "reply", msg.Reply, "error", err)
	}
}

func (r *InventoryResponder) inventory(token string) InventoryReply {
	reply := InventoryReply{Category: token, Objects: []ObjectInfo{}}

	c, err := audio.ParseCategory(token)
	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.Category = c.String()

	objects, err := r.lister.ListByCategory(c)
	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	for _, obj := range objects {
		reply.Objects = append(reply.Objects, describe(obj))
	}
	return reply
}

func describe(obj audio.Object) ObjectInfo {
	info := ObjectInfo{SystemName: obj.SystemName(), UserName: obj.UserName()}
	switch o := obj.(type) {
	case *audio.Source:
		info.State = o.State().String()
	case *audio.Buffer:
		info.Frames = o.Frames()
		info.SampleRate = o.SampleRate()
	}
	return info
}
