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

// Package metrics exposes audio manager activity as Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loqalabs/loqa-audio-manager/internal/audio"
)

// AudioMetrics observes an audio.Manager and records its activity.
type AudioMetrics struct {
	liveObjects        *prometheus.GaugeVec
	objectsCreated     *prometheus.CounterVec
	objectsRemoved     *prometheus.CounterVec
	createRejections   *prometheus.CounterVec
	backendActive      *prometheus.GaugeVec
	backendAttempts    *prometheus.CounterVec
	backendInitSeconds *prometheus.HistogramVec
	cleanupsTotal      prometheus.Counter
}

var _ audio.Observer = (*AudioMetrics)(nil)

// NewAudioMetrics creates the metrics and registers them with registry.
func NewAudioMetrics(registry prometheus.Registerer) (*AudioMetrics, error) {
	m := &AudioMetrics{
		liveObjects: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "audio_objects_live",
				Help: "Number of live audio objects per category",
			},
			[]string{"category"},
		),
		objectsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audio_objects_created_total",
				Help: "Total number of audio objects created",
			},
			[]string{"category"},
		),
		objectsRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audio_objects_removed_total",
				Help: "Total number of audio objects deregistered",
			},
			[]string{"category"},
		),
		createRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audio_object_rejections_total",
				Help: "Total number of rejected audio object creations",
			},
			[]string{"category", "reason"}, // reason: capacity, duplicate, backend
		),
		backendActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "audio_backend_active",
				Help: "1 for the currently active audio backend",
			},
			[]string{"backend"},
		),
		backendAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audio_backend_init_attempts_total",
				Help: "Backend initialization attempts made by the selector",
			},
			[]string{"backend", "result"}, // result: success, failure
		),
		backendInitSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audio_backend_init_duration_seconds",
				Help:    "Time taken to initialize a backend",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"backend"},
		),
		cleanupsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "audio_manager_cleanups_total",
				Help: "Total number of audio manager cleanups",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.liveObjects, m.objectsCreated, m.objectsRemoved, m.createRejections,
		m.backendActive, m.backendAttempts, m.backendInitSeconds, m.cleanupsTotal,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *AudioMetrics) BackendSelected(backend string, attempts []audio.Attempt) {
	m.backendActive.Reset()
	m.backendActive.WithLabelValues(backend).Set(1)
	for _, a := range attempts {
		result := "success"
		if !a.Succeeded() {
			result = "failure"
		}
		m.backendAttempts.WithLabelValues(a.Backend, result).Inc()
		m.backendInitSeconds.WithLabelValues(a.Backend).Observe(a.Duration.Seconds())
	}
}

func (m *AudioMetrics) ObjectCreated(obj audio.Object) {
	c := obj.Category().String()
	m.objectsCreated.WithLabelValues(c).Inc()
	m.liveObjects.WithLabelValues(c).Inc()
}

func (m *AudioMetrics) ObjectRemoved(obj audio.Object) {
	c := obj.Category().String()
	m.objectsRemoved.WithLabelValues(c).Inc()
	m.liveObjects.WithLabelValues(c).Dec()
}

func (m *AudioMetrics) CreateRejected(category audio.Category, err error) {
	m.createRejections.WithLabelValues(category.String(), rejectionReason(err)).Inc()
}

func (m *AudioMetrics) CleanedUp(string) {
	m.cleanupsTotal.Inc()
	m.backendActive.Reset()
	for _, c := range audio.Categories {
		m.liveObjects.WithLabelValues(c.String()).Set(0)
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, audio.ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, audio.ErrDuplicateName):
		return "duplicate"
	default:
		return "backend"
	}
}
