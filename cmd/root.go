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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-audio-manager/internal/audio"
	"github.com/loqalabs/loqa-audio-manager/internal/config"
	"github.com/loqalabs/loqa-audio-manager/internal/logging"
)

type rootOptions struct {
	configFile string
	logLevel   string
	backend    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "loqa-audio",
		Short:         "Audio resource manager for the Loqa layout controller",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./config.yaml or $HOME/.loqa/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "audio backend to try first (miniaudio, portaudio, beep, null)")

	root.AddCommand(
		newServeCmd(opts),
		newProbeCmd(opts),
		newBackendsCmd(),
	)
	return root
}

// load resolves configuration and the root logger, applying flag overrides.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.backend != "" {
		cfg.Audio.Implementation = o.backend
	}

	logger, err := logging.New(cmd.ErrOrStderr(), logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newManager wires the selector and manager from configuration.
func newManager(cfg *config.Config, logger *slog.Logger, hooks audio.HookRegistry, observers ...audio.Observer) *audio.Manager {
	audioLogger := logging.Module(logger, "audio")
	selector := audio.NewSelector(cfg.Audio.Implementation, cfg.EngineConfig(), audio.WithLogger(audioLogger))
	return audio.NewManager(audio.Options{
		Selector:  selector,
		Limits:    cfg.Limits(),
		Hooks:     hooks,
		Observers: observers,
		Logger:    audioLogger,
	})
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List audio backends in preference order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			selector := audio.NewSelector("", audio.DefaultEngineConfig())
			for i, name := range selector.Names() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, name)
			}
			return nil
		},
	}
}
