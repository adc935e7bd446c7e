// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package logutil

import (
	"strings"

	"github.com/pingcap/log"
	"github.com/pvsune/redpanda/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultLogLevel     = "info"
	defaultLogMaxSizeMB = 300
	defaultLogMaxDays   = 0
	defaultLogMaxBackup = 0
)

// Config describes where and how verbosely the harness logs.
type Config struct {
	Level      string `toml:"level" json:"level"`
	File       string `toml:"file" json:"file"`
	Format     string `toml:"format" json:"format"`
	MaxSizeMB  int    `toml:"max-size" json:"max-size"`
	MaxDays    int    `toml:"max-days" json:"max-days"`
	MaxBackups int    `toml:"max-backups" json:"max-backups"`
}

// DefaultConfig returns the config used when the harness config has no [log] section.
func DefaultConfig() *Config {
	return &Config{
		Level:      defaultLogLevel,
		MaxSizeMB:  defaultLogMaxSizeMB,
		MaxDays:    defaultLogMaxDays,
		MaxBackups: defaultLogMaxBackup,
	}
}

// Validate checks the log level can be parsed.
func (c *Config) Validate() error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(c.Level))); err != nil {
		return errors.WrapError(errors.ErrInvalidConfig, err, "log level "+c.Level)
	}
	return nil
}

// InitLogger initializes the global pingcap logger. Output goes to stdout
// unless File is set, in which case the file is rotated by size.
func InitLogger(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	pclogConfig := &log.Config{
		Level:  strings.ToLower(cfg.Level),
		Format: cfg.Format,
		File: log.FileLogConfig{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxDays:    cfg.MaxDays,
			MaxBackups: cfg.MaxBackups,
		},
	}
	logger, props, err := log.InitLogger(pclogConfig)
	if err != nil {
		return errors.Trace(err)
	}
	log.ReplaceGlobals(logger, props)
	log.Info("logger initialized",
		zap.String("level", pclogConfig.Level),
		zap.String("file", cfg.File))
	return nil
}
