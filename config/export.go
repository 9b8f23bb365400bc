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
	"fmt"
	"slices"
	"strconv"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/filter"
	"github.com/aaronlmathis/importmap/mapping"
	"github.com/aaronlmathis/importmap/rules"
	"github.com/aaronlmathis/importmap/transform"
	"github.com/aaronlmathis/importmap/validators"
)

// Export converts a mapper back into a configuration tree. Building the
// exported configuration yields an equivalent mapper, except that custom
// resolvers and validators are referenced by name only.
func Export(m *mapping.Mapper) (*Config, error) {
	cfg := &Config{Version: Version, Target: m.Target.Name}

	derived := make([]core.ColumnDefinition, 0, len(m.Mappings))
	for i, fm := range m.Mappings {
		node, err := exportField(fm)
		if err != nil {
			return nil, &ConfigError{Path: fmt.Sprintf("fields[%d]", i), Err: err}
		}
		cfg.Fields = append(cfg.Fields, node)
		derived = append(derived, fm.Column())
	}
	if !slices.Equal(derived, m.Target.Columns) {
		for _, col := range m.Target.Columns {
			cfg.Columns = append(cfg.Columns, ColumnNode{
				Name: col.Name, Type: col.Type, Required: col.Required, MaxLength: col.MaxLength,
			})
		}
	}
	return cfg, nil
}

func exportField(fm *mapping.FieldMapping) (FieldNode, error) {
	node := FieldNode{
		Name:      fm.FieldName,
		Type:      fm.FieldType,
		Required:  fm.Required,
		MaxLength: fm.MaxLength,
	}
	for _, attr := range fm.ValidationAttributes {
		an, err := exportAttribute(attr)
		if err != nil {
			return node, err
		}
		node.Validation = append(node.Validation, an)
	}
	if fm.Rule != nil {
		node.Rule = exportRule(fm.Rule)
	}
	return node, nil
}

func exportAttribute(attr validators.Attribute) (AttributeNode, error) {
	n := AttributeNode{Type: attr.Kind()}
	switch a := attr.(type) {
	case validators.Required:
	case validators.StringLength:
		if a.Min != 0 {
			n.Min = strconv.Itoa(a.Min)
		}
		if a.Max != 0 {
			n.Max = strconv.Itoa(a.Max)
		}
	case validators.Pattern:
		if a.Regexp != nil {
			n.Pattern = a.Regexp.String()
		}
	case validators.Range:
		if a.Min != nil {
			n.Min = a.Min.String()
		}
		if a.Max != nil {
			n.Max = a.Max.String()
		}
	case validators.AllowedValues:
		n.Values = append([]string(nil), a.Values...)
	case validators.DataType:
		n.DataType = string(a.Type)
	case validators.Custom:
		n.Name = a.Name
	default:
		return n, fmt.Errorf("validation attribute %T cannot be exported", attr)
	}
	return n, nil
}

func exportRule(r core.Rule) *RuleNode {
	if r == nil {
		return nil
	}
	n := &RuleNode{Type: r.TypeID(), Detail: r.Detail()}
	for _, ft := range r.FieldTransformations() {
		src := SourceNode{Field: ft.Field.Name}
		if ft.Field.Type != core.TypeString {
			src.Type = ft.Field.Type
		}
		for _, step := range ft.Transformations {
			src.Transformations = append(src.Transformations, exportTransformation(step))
		}
		n.Sources = append(n.Sources, src)
	}
	if c, ok := r.(*rules.Conditional); ok {
		n.Comparison = exportComparison(c.Comparison())
		whenTrue, whenFalse := c.Branches()
		n.WhenTrue = exportRule(whenTrue)
		n.WhenFalse = exportRule(whenFalse)
	}
	return n
}

func exportTransformation(step core.ValueTransformation) TransformNode {
	n := TransformNode{Type: step.TypeID(), Detail: step.Detail()}
	switch t := step.(type) {
	case *transform.Calculate:
		places := t.DecimalPlaces
		n.DecimalPlaces = &places
	case *transform.DateFormat:
		n.InputLayout = t.InputLayout
	case *transform.Map:
		n.FieldName = t.FieldName
		n.Mappings = append([]transform.ValueMapping(nil), t.ValueMappings...)
	case *transform.Conditional:
		n.Comparison = exportComparison(t.Comparison)
		n.WhenTrue = exportRule(t.TrueRule)
		n.WhenFalse = exportRule(t.FalseRule)
	}
	return n
}

func exportComparison(c core.Comparison) *ComparisonNode {
	if c == nil {
		return nil
	}
	n := &ComparisonNode{Type: c.TypeID()}
	if s, ok := c.(interface{ Slot(string) core.Rule }); ok {
		n.Left = exportRule(s.Slot(filter.OperandLeft))
		n.Right = exportRule(s.Slot(filter.OperandRight))
		n.LowLimit = exportRule(s.Slot(filter.OperandLow))
		n.HighLimit = exportRule(s.Slot(filter.OperandHigh))
	}
	switch t := c.(type) {
	case *filter.In:
		for _, v := range t.Values {
			n.Values = append(n.Values, exportRule(v))
		}
	case *filter.And:
		n.Conditions = exportConditions(t.Conditions)
	case *filter.Or:
		n.Conditions = exportConditions(t.Conditions)
	case *filter.Not:
		n.Conditions = exportConditions([]core.Comparison{t.Condition})
	case *filter.RegexMatch:
		n.Pattern = t.Pattern
	}
	return n
}

func exportConditions(conditions []core.Comparison) []*ComparisonNode {
	out := make([]*ComparisonNode, 0, len(conditions))
	for _, c := range conditions {
		if c != nil {
			out = append(out, exportComparison(c))
		}
	}
	return out
}
