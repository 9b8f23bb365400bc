//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of ImportMap.
//
// ImportMap is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ImportMap is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with ImportMap. If not, see https://www.gnu.org/licenses/.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/transform"
)

// Package config persists mapping configurations as YAML. A configuration is
// a tree keyed by `type`: every rule, value transformation and comparison
// node names its TypeId and nests its operands, branches and chains.

// Version is the configuration schema version written by this package.
const Version = "1"

// ErrUnsupportedVersion is returned for a configuration of an unknown schema version.
var ErrUnsupportedVersion = errors.New("unsupported configuration version")

// ConfigError locates a configuration problem within the tree.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config is the root of a mapping configuration.
type Config struct {
	Version string       `yaml:"version"`
	Target  string       `yaml:"target"`
	Columns []ColumnNode `yaml:"columns,omitempty"`
	Fields  []FieldNode  `yaml:"fields"`
}

// ColumnNode declares a destination column. When a configuration lists no
// columns the destination is derived from its fields.
type ColumnNode struct {
	Name      string         `yaml:"name"`
	Type      core.ValueType `yaml:"type,omitempty"`
	Required  bool           `yaml:"required,omitempty"`
	MaxLength int            `yaml:"maxLength,omitempty"`
}

// FieldNode configures one destination field.
type FieldNode struct {
	Name       string          `yaml:"name"`
	Type       core.ValueType  `yaml:"type,omitempty"`
	Required   bool            `yaml:"required,omitempty"`
	MaxLength  int             `yaml:"maxLength,omitempty"`
	Validation []AttributeNode `yaml:"validation,omitempty"`
	Rule       *RuleNode       `yaml:"rule,omitempty"`
}

// AttributeNode configures a validation attribute.
type AttributeNode struct {
	Type     string   `yaml:"type"`
	Min      string   `yaml:"min,omitempty"`
	Max      string   `yaml:"max,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"`
	Values   []string `yaml:"values,omitempty"`
	DataType string   `yaml:"dataType,omitempty"`
	Name     string   `yaml:"name,omitempty"`
}

// RuleNode configures a mapping rule.
type RuleNode struct {
	Type       string          `yaml:"type"`
	Detail     string          `yaml:"detail,omitempty"`
	Sources    []SourceNode    `yaml:"sources,omitempty"`
	Comparison *ComparisonNode `yaml:"comparison,omitempty"`
	WhenTrue   *RuleNode       `yaml:"whenTrue,omitempty"`
	WhenFalse  *RuleNode       `yaml:"whenFalse,omitempty"`
}

// SourceNode binds a source column and its transformation chain.
type SourceNode struct {
	Field           string          `yaml:"field"`
	Type            core.ValueType  `yaml:"type,omitempty"`
	Transformations []TransformNode `yaml:"transformations,omitempty"`
}

// TransformNode configures a value transformation.
type TransformNode struct {
	Type          string                   `yaml:"type"`
	Detail        string                   `yaml:"detail,omitempty"`
	DecimalPlaces *int                     `yaml:"decimalPlaces,omitempty"`
	InputLayout   string                   `yaml:"inputLayout,omitempty"`
	FieldName     string                   `yaml:"fieldName,omitempty"`
	Mappings      []transform.ValueMapping `yaml:"mappings,omitempty"`
	Comparison    *ComparisonNode          `yaml:"comparison,omitempty"`
	WhenTrue      *RuleNode                `yaml:"whenTrue,omitempty"`
	WhenFalse     *RuleNode                `yaml:"whenFalse,omitempty"`
}

// ComparisonNode configures a comparison operation.
type ComparisonNode struct {
	Type       string            `yaml:"type"`
	Left       *RuleNode         `yaml:"left,omitempty"`
	Right      *RuleNode         `yaml:"right,omitempty"`
	LowLimit   *RuleNode         `yaml:"lowLimit,omitempty"`
	HighLimit  *RuleNode         `yaml:"highLimit,omitempty"`
	Values     []*RuleNode       `yaml:"values,omitempty"`
	Pattern    string            `yaml:"pattern,omitempty"`
	Conditions []*ComparisonNode `yaml:"conditions,omitempty"`
}

// Parse decodes a YAML configuration. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a YAML configuration from r.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Err: errors.New("empty configuration")}
		}
		return nil, &ConfigError{Err: err}
	}
	if cfg.Version == "" {
		cfg.Version = Version
	}
	if cfg.Version != Version {
		return nil, &ConfigError{Path: "version", Err: fmt.Errorf("%w: %q", ErrUnsupportedVersion, cfg.Version)}
	}
	return &cfg, nil
}

// LoadFile reads and parses the configuration at path.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML with two-space indentation.
func Marshal(cfg *Config) ([]byte, error) {
	if cfg.Version == "" {
		cfg.Version = Version
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, &ConfigError{Err: err}
	}
	if err := enc.Close(); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return buf.Bytes(), nil
}

// WriteFile marshals cfg and writes it to path.
func WriteFile(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
