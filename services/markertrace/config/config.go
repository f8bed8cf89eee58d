// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads analyzer configuration from markertrace.config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the configuration file looked up in the project root.
const ConfigFileName = "markertrace.config.yaml"

// Config holds the analyzer configuration.
//
// Description:
//
//	All fields are optional: a missing config file is not an error and
//	zero-config works out of the box with Default values. The analyzer is
//	marker-agnostic; Marker and OpaqueModules are configuration, never
//	hardcoded downstream.
//
// Thread Safety: Safe for concurrent reads after construction.
type Config struct {
	// Marker is the canonical symbol name of the marker construct whose
	// aliases are tracked. Default: "typing.Annotated".
	Marker string `yaml:"marker"`

	// EntryModule is the dotted module identity of the entry unit. Empty
	// means the entry has no enclosing package (it is inferred from the
	// filesystem when possible).
	EntryModule string `yaml:"entry_module"`

	// OpaqueModules lists base module names classified as standard/built-in.
	// Imports of these are never descended into.
	OpaqueModules []string `yaml:"opaque_modules"`

	// SearchRoots lists directories searched for module source units, in
	// order. Empty means the entry unit's package root.
	SearchRoots []string `yaml:"search_roots"`

	// MaxModules bounds the number of modules one run will traverse.
	// 0 means unlimited.
	MaxModules int `yaml:"max_modules"`
}

// Default returns the zero-config defaults.
func Default() Config {
	return Config{
		Marker: "typing.Annotated",
		OpaqueModules: []string{
			"os", "sys", "importlib", "typing", "abc", "collections",
			"dataclasses", "enum", "functools", "itertools", "json",
			"math", "pathlib", "re",
		},
	}
}

// Load reads markertrace.config.yaml from the project root.
//
// Description:
//
//	If projectRoot is empty or the file does not exist, Default is
//	returned with no error. Fields left empty in the file keep their
//	defaults. Only an unreadable or unparseable existing file is an error.
func Load(projectRoot string) (Config, error) {
	cfg := Default()
	if projectRoot == "" {
		return cfg, nil
	}

	path := filepath.Join(projectRoot, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", ConfigFileName, err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}

	return cfg.merge(loaded), nil
}

// merge overlays non-zero fields of loaded onto c.
func (c Config) merge(loaded Config) Config {
	if loaded.Marker != "" {
		c.Marker = loaded.Marker
	}
	if loaded.EntryModule != "" {
		c.EntryModule = loaded.EntryModule
	}
	if len(loaded.OpaqueModules) > 0 {
		c.OpaqueModules = loaded.OpaqueModules
	}
	if len(loaded.SearchRoots) > 0 {
		c.SearchRoots = loaded.SearchRoots
	}
	if loaded.MaxModules > 0 {
		c.MaxModules = loaded.MaxModules
	}
	return c
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	if c.Marker == "" {
		return fmt.Errorf("marker must not be empty")
	}
	if c.MaxModules < 0 {
		return fmt.Errorf("max_modules must not be negative, got %d", c.MaxModules)
	}
	for _, root := range c.SearchRoots {
		if root == "" {
			return fmt.Errorf("search_roots must not contain empty entries")
		}
	}
	return nil
}
