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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/loqalabs/loqa-audio-manager/internal/audio"
)

// EnvPrefix prefixes every environment override, e.g. LOQA_AUDIO_IMPLEMENTATION.
const EnvPrefix = "LOQA"

type Config struct {
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	NATS    NATSConfig    `mapstructure:"nats" yaml:"nats"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

type AudioConfig struct {
	// Implementation names the backend to try before the preference order
	Implementation  string `mapstructure:"implementation" yaml:"implementation"`
	SampleRate      int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels        int    `mapstructure:"channels" yaml:"channels"`
	FramesPerBuffer int    `mapstructure:"frames_per_buffer" yaml:"frames_per_buffer"`
	MaxListeners    int    `mapstructure:"max_listeners" yaml:"max_listeners"`
	MaxSources      int    `mapstructure:"max_sources" yaml:"max_sources"`
	MaxBuffers      int    `mapstructure:"max_buffers" yaml:"max_buffers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	URL           string `mapstructure:"url" yaml:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
	ConnectTries  int    `mapstructure:"connect_tries" yaml:"connect_tries"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// SetDefaults installs the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	limits := audio.DefaultLimits()
	engine := audio.DefaultEngineConfig()

	v.SetDefault("audio.implementation", "")
	v.SetDefault("audio.sample_rate", engine.SampleRate)
	v.SetDefault("audio.channels", engine.Channels)
	v.SetDefault("audio.frames_per_buffer", engine.FramesPerBuffer)
	v.SetDefault("audio.max_listeners", limits.Listeners)
	v.SetDefault("audio.max_sources", limits.Sources)
	v.SetDefault("audio.max_buffers", limits.Buffers)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "audio")
	v.SetDefault("nats.connect_tries", 5)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9464")
}

// Load reads configFile, or config.yaml from the working directory and
// $HOME/.loqa when configFile is empty. A missing default file is not an error.
// Environment variables override file values.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".loqa"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	a := c.Audio
	if a.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", a.SampleRate)
	}
	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got %d", a.Channels)
	}
	if a.FramesPerBuffer <= 0 {
		return fmt.Errorf("audio.frames_per_buffer must be positive, got %d", a.FramesPerBuffer)
	}
	if a.MaxListeners < 0 || a.MaxSources < 0 || a.MaxBuffers < 0 {
		return errors.New("audio object limits must not be negative")
	}
	if a.MaxListeners == 0 && a.MaxSources == 0 && a.MaxBuffers == 0 {
		return errors.New("audio object limits must not all be zero")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if c.NATS.SubjectPrefix == "" {
		return errors.New("nats.subject_prefix must not be empty")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("metrics.listen is required when metrics are enabled")
	}
	return nil
}

// EngineConfig returns the device format for the backends.
func (c *Config) EngineConfig() audio.EngineConfig {
	return audio.EngineConfig{
		SampleRate:      c.Audio.SampleRate,
		Channels:        c.Audio.Channels,
		FramesPerBuffer: c.Audio.FramesPerBuffer,
	}
}

// Limits returns the per-category object caps.
func (c *Config) Limits() audio.Limits {
	return audio.Limits{
		Listeners: c.Audio.MaxListeners,
		Sources:   c.Audio.MaxSources,
		Buffers:   c.Audio.MaxBuffers,
	}
}
