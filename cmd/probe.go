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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-audio-manager/internal/audio"
)

// attemptRecorder captures selector attempts for the probe report.
type attemptRecorder struct {
	backend  string
	attempts []audio.Attempt
}

func (r *attemptRecorder) BackendSelected(backend string, attempts []audio.Attempt) {
	r.backend = backend
	r.attempts = append([]audio.Attempt(nil), attempts...)
}
func (r *attemptRecorder) ObjectCreated(audio.Object) {}
func (r *attemptRecorder) ObjectRemoved(audio.Object) {}
func (r *attemptRecorder) CreateRejected(audio.Category, error) {}
func (r *attemptRecorder) CleanedUp(string) {}

func newProbeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Select an audio backend, report the result and shut it down",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}

			rec := &attemptRecorder{}
			mgr := newManager(cfg, logger, nil, rec)
			if err := mgr.Init(); err != nil {
				return err
			}
			defer mgr.Dispose()

			return writeProbeReport(cmd.OutOrStdout(), mgr, rec)
		},
	}
}

func writeProbeReport(w io.Writer, mgr *audio.Manager, rec *attemptRecorder) error {
	for _, a := range rec.attempts {
		status := "ok"
		if a.Err != nil {
			status = "failed: " + a.Err.Error()
		}
		if _, err := fmt.Fprintf(w, "tried %-10s %s\n", a.Backend, status); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "active backend: %s\n", rec.backend); err != nil {
		return err
	}

	for _, c := range audio.Categories {
		objects, err := mgr.ListByCategory(c)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%ss: %d/%d\n", c, mgr.Count(c), mgr.Limit(c)); err != nil {
			return err
		}
		for _, obj := range objects {
			if _, err := fmt.Fprintf(w, "  %s %q\n", obj.SystemName(), obj.UserName()); err != nil {
				return err
			}
		}
	}
	return nil
}
