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
	"strconv"

	"github.com/aaronlmathis/importmap/catalog"
	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/filter"
	"github.com/aaronlmathis/importmap/mapping"
	"github.com/aaronlmathis/importmap/rules"
	"github.com/aaronlmathis/importmap/transform"
	"github.com/aaronlmathis/importmap/validators"
)

// BuildOption configures Build.
type BuildOption func(*builder)

// WithFunc registers a resolver for customFieldless rules whose detail is name.
func WithFunc(name string, fn core.CustomFunc) BuildOption {
	return func(b *builder) { b.funcs[name] = fn }
}

// WithValidator registers a check for custom validation attributes named name.
func WithValidator(name string, fn func(value *string) (bool, error)) BuildOption {
	return func(b *builder) { b.validators[name] = fn }
}

type builder struct {
	funcs      map[string]core.CustomFunc
	validators map[string]func(*string) (bool, error)
}

// conditionalSetter is implemented by the conditional rule and the
// conditional value transformation.
type conditionalSetter interface {
	SetComparison(core.Comparison) error
	SetBranches(whenTrue, whenFalse core.Rule) error
}

type operandSetter interface {
	ConfigureOperands(left, right, low, high core.Rule) error
}

type valuesSetter interface {
	SetValues(values []core.Rule)
}

type conditionsSetter interface {
	SetConditions(conditions []core.Comparison)
}

// Build instantiates the rule tree of cfg through the type registries and
// returns a mapper for its destination.
func Build(cfg *Config, opts ...BuildOption) (*mapping.Mapper, error) {
	b := &builder{
		funcs:      make(map[string]core.CustomFunc),
		validators: make(map[string]func(*string) (bool, error)),
	}
	for _, opt := range opts {
		opt(b)
	}

	target := core.TableDefinition{Name: cfg.Target}
	for i, col := range cfg.Columns {
		typ, err := valueType(col.Type)
		if err != nil {
			return nil, &ConfigError{Path: fmt.Sprintf("columns[%d]", i), Err: err}
		}
		target.Columns = append(target.Columns, core.ColumnDefinition{
			Name: col.Name, Type: typ, Required: col.Required, MaxLength: col.MaxLength,
		})
	}

	m := mapping.NewMapper(target)
	for i, node := range cfg.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		fm, err := b.field(path, node)
		if err != nil {
			return nil, err
		}
		m.Add(fm)
		if len(cfg.Columns) == 0 {
			m.Target.Columns = append(m.Target.Columns, fm.Column())
		}
	}
	return m, nil
}

func valueType(name core.ValueType) (core.ValueType, error) {
	if name == "" {
		return core.TypeString, nil
	}
	t, ok := core.ParseValueType(string(name))
	if !ok {
		return "", fmt.Errorf("unknown value type %q", name)
	}
	return t, nil
}

func (b *builder) field(path string, node FieldNode) (*mapping.FieldMapping, error) {
	if node.Name == "" {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("field name is required")}
	}
	typ, err := valueType(node.Type)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	fm := mapping.NewFieldMapping(node.Name, typ, nil)
	fm.Required = node.Required
	fm.MaxLength = node.MaxLength

	for i, an := range node.Validation {
		attr, err := b.attribute(an)
		if err != nil {
			return nil, &ConfigError{Path: fmt.Sprintf("%s.validation[%d]", path, i), Err: err}
		}
		fm.ValidationAttributes = append(fm.ValidationAttributes, attr)
	}

	if node.Rule != nil {
		rule, err := b.rule(path+".rule", node.Rule)
		if err != nil {
			return nil, err
		}
		fm.SetRule(rule)
	}
	return fm, nil
}

func (b *builder) attribute(n AttributeNode) (validators.Attribute, error) {
	switch n.Type {
	case validators.KindRequired:
		return validators.Required{}, nil
	case validators.KindStringLength:
		var a validators.StringLength
		var err error
		if n.Min != "" {
			if a.Min, err = strconv.Atoi(n.Min); err != nil {
				return nil, fmt.Errorf("stringLength min %q: %w", n.Min, err)
			}
		}
		if n.Max != "" {
			if a.Max, err = strconv.Atoi(n.Max); err != nil {
				return nil, fmt.Errorf("stringLength max %q: %w", n.Max, err)
			}
		}
		return a, nil
	case validators.KindPattern:
		return validators.NewPattern(n.Pattern)
	case validators.KindRange:
		return validators.NewRange(n.Min, n.Max)
	case validators.KindAllowedValues:
		return validators.AllowedValues{Values: append([]string(nil), n.Values...)}, nil
	case validators.KindDataType:
		return validators.DataType{Type: validators.FieldDataType(n.DataType)}, nil
	case validators.KindCustom:
		fn, ok := b.validators[n.Name]
		if !ok {
			return nil, fmt.Errorf("no validator registered as %q", n.Name)
		}
		return validators.Custom{Name: n.Name, Func: fn}, nil
	}
	return nil, fmt.Errorf("unknown validation type %q", n.Type)
}

func (b *builder) rule(path string, n *RuleNode) (core.Rule, error) {
	rule, err := catalog.NewRule(n.Type)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if n.Detail != "" {
		rule.SetDetail(n.Detail)
	}

	for i, src := range n.Sources {
		spath := fmt.Sprintf("%s.sources[%d]", path, i)
		ft, err := b.source(spath, src)
		if err != nil {
			return nil, err
		}
		if err := rule.AddFieldTransformation(ft); err != nil {
			return nil, &ConfigError{Path: spath, Err: err}
		}
	}

	if custom, ok := rule.(*rules.CustomFieldless); ok && n.Detail != "" {
		fn, ok := b.funcs[n.Detail]
		if !ok {
			return nil, &ConfigError{Path: path, Err: fmt.Errorf("no function registered as %q", n.Detail)}
		}
		custom.SetFunc(fn)
	}

	if err := b.conditional(path, rule, n.Comparison, n.WhenTrue, n.WhenFalse); err != nil {
		return nil, err
	}
	return rule, nil
}

// conditional wires comparison and branches into target when it accepts them.
func (b *builder) conditional(path string, target interface{}, cn *ComparisonNode, whenTrue, whenFalse *RuleNode) error {
	setter, ok := target.(conditionalSetter)
	if !ok {
		if cn != nil || whenTrue != nil || whenFalse != nil {
			return &ConfigError{Path: path, Err: fmt.Errorf("comparison and branches are only valid on conditionals")}
		}
		return nil
	}
	if cn != nil {
		cmp, err := b.comparison(path+".comparison", cn)
		if err != nil {
			return err
		}
		if err := setter.SetComparison(cmp); err != nil {
			return &ConfigError{Path: path + ".comparison", Err: err}
		}
	}
	var t, f core.Rule
	var err error
	if whenTrue != nil {
		if t, err = b.rule(path+".whenTrue", whenTrue); err != nil {
			return err
		}
	}
	if whenFalse != nil {
		if f, err = b.rule(path+".whenFalse", whenFalse); err != nil {
			return err
		}
	}
	if t != nil || f != nil {
		if err := setter.SetBranches(t, f); err != nil {
			return &ConfigError{Path: path, Err: err}
		}
	}
	return nil
}

func (b *builder) source(path string, n SourceNode) (*core.FieldTransformation, error) {
	if n.Field == "" {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("source field is required")}
	}
	ft := core.NewFieldTransformation(n.Field)
	if n.Type != "" {
		typ, err := valueType(n.Type)
		if err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
		ft.Field.Type = typ
	}
	for i, tn := range n.Transformations {
		step, err := b.transformation(fmt.Sprintf("%s.transformations[%d]", path, i), tn)
		if err != nil {
			return nil, err
		}
		ft.Add(step)
	}
	return ft, nil
}

func (b *builder) transformation(path string, n TransformNode) (core.ValueTransformation, error) {
	step, err := catalog.NewTransformation(n.Type)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if err := step.ValidateDetail(n.Detail); err != nil {
		return nil, &ConfigError{Path: path + ".detail", Err: err}
	}
	step.SetDetail(n.Detail)

	switch t := step.(type) {
	case *transform.Calculate:
		if n.DecimalPlaces != nil {
			t.SetDecimalPlaces(*n.DecimalPlaces)
		}
	case *transform.DateFormat:
		t.InputLayout = n.InputLayout
	case *transform.Map:
		t.FieldName = n.FieldName
		for _, vm := range n.Mappings {
			t.AddMapping(vm)
		}
	}

	if err := b.conditional(path, step, n.Comparison, n.WhenTrue, n.WhenFalse); err != nil {
		return nil, err
	}
	return step, nil
}

func (b *builder) comparison(path string, n *ComparisonNode) (core.Comparison, error) {
	cmp, err := catalog.NewComparison(n.Type)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	operand := func(name string, rn *RuleNode) (core.Rule, error) {
		if rn == nil {
			return nil, nil
		}
		return b.rule(path+"."+name, rn)
	}
	var slots [4]core.Rule
	for i, pair := range []struct {
		name string
		node *RuleNode
	}{
		{filter.OperandLeft, n.Left},
		{filter.OperandRight, n.Right},
		{filter.OperandLow, n.LowLimit},
		{filter.OperandHigh, n.HighLimit},
	} {
		if slots[i], err = operand(pair.name, pair.node); err != nil {
			return nil, err
		}
	}

	if setter, ok := cmp.(operandSetter); ok && slots != ([4]core.Rule{}) {
		if err := setter.ConfigureOperands(slots[0], slots[1], slots[2], slots[3]); err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
	}

	if vs, ok := cmp.(valuesSetter); ok {
		values := make([]core.Rule, 0, len(n.Values))
		for i, vn := range n.Values {
			v, err := operand(fmt.Sprintf("%s[%d]", filter.OperandValue, i), vn)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		vs.SetValues(values)
	}

	if cs, ok := cmp.(conditionsSetter); ok {
		conditions := make([]core.Comparison, 0, len(n.Conditions))
		for i, cn := range n.Conditions {
			c, err := b.comparison(fmt.Sprintf("%s.conditions[%d]", path, i), cn)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, c)
		}
		cs.SetConditions(conditions)
	}

	if rm, ok := cmp.(*filter.RegexMatch); ok {
		rm.Pattern = n.Pattern
	}

	if err := cmp.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cmp, nil
}
