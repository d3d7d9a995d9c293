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

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-audio-manager/internal/audio"
	"github.com/loqalabs/loqa-audio-manager/internal/logging"
	"github.com/loqalabs/loqa-audio-manager/internal/metrics"
	audionats "github.com/loqalabs/loqa-audio-manager/internal/nats"
	"github.com/loqalabs/loqa-audio-manager/internal/shutdown"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the audio manager until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}

			hooks := shutdown.New(logging.Module(logger, "shutdown"))
			var observers []audio.Observer

			if cfg.Metrics.Enabled {
				registry := prometheus.NewRegistry()
				m, err := metrics.NewAudioMetrics(registry)
				if err != nil {
					return err
				}
				observers = append(observers, m)

				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				metricsLogger := logging.Module(logger, "metrics")
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						metricsLogger.Error("Metrics server failed", "error", err)
					}
				}()
				hooks.Register("metrics-server", func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				})
				metricsLogger.Info("Serving metrics", "listen", cfg.Metrics.Listen)
			}

			var conn audionats.Conn
			if cfg.NATS.Enabled {
				natsLogger := logging.Module(logger, "nats")
				c, err := audionats.Connect(cfg.NATS.URL, cfg.NATS.ConnectTries, 2*time.Second, natsLogger)
				if err != nil {
					return err
				}
				conn = c
				hooks.Register("nats", conn.Close)
				observers = append(observers, audionats.NewEventPublisher(conn, cfg.NATS.SubjectPrefix, natsLogger))
			}

			mgr := newManager(cfg, logger, hooks, observers...)
			if err := mgr.Init(); err != nil {
				return err
			}

			if conn != nil {
				responder := audionats.NewInventoryResponder(conn, cfg.NATS.SubjectPrefix, mgr, logging.Module(logger, "nats"))
				if err := responder.Start(); err != nil {
					hooks.Run()
					return err
				}
			}

			hooks.WaitForSignal(cmd.Context())
			mgr.Dispose()
			return nil
		},
	}
}
