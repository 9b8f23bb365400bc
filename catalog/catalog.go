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

package catalog

import (
	"sync"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/filter"
	"github.com/aaronlmathis/importmap/registry"
	"github.com/aaronlmathis/importmap/rules"
	"github.com/aaronlmathis/importmap/transform"
)

// Package catalog owns the process-wide registries of every built-in rule,
// value transformation and comparison. The registries are populated once, on
// first use, and are read-only afterwards.

var (
	once          sync.Once
	ruleReg       *registry.Registry[core.Rule]
	transformReg  *registry.Registry[core.ValueTransformation]
	comparisonReg *registry.Registry[core.Comparison]
)

func populate() {
	ruleReg = registry.New[core.Rule]("rule")
	ruleReg.MustRegister(rules.TypeCopy, func() core.Rule { return rules.NewCopy(nil) })
	ruleReg.MustRegister(rules.TypeCombineFields, func() core.Rule { return rules.NewCombineFields("") })
	ruleReg.MustRegister(rules.TypeConstant, func() core.Rule { return rules.NewConstant("") })
	ruleReg.MustRegister(rules.TypeFieldAccess, func() core.Rule { return rules.NewFieldAccess("") })
	ruleReg.MustRegister(rules.TypeIgnore, func() core.Rule { return rules.NewIgnore() })
	ruleReg.MustRegister(rules.TypeCustomFieldless, func() core.Rule { return rules.NewCustomFieldless(nil) })
	ruleReg.MustRegister(rules.TypeConditional, func() core.Rule { return rules.NewConditional() })

	transformReg = registry.New[core.ValueTransformation]("transformation")
	transformReg.MustRegister(transform.TypeInterpolate, func() core.ValueTransformation { return transform.NewInterpolate("") })
	transformReg.MustRegister(transform.TypeCalculate, func() core.ValueTransformation { return transform.NewCalculate("", transform.MinDecimalPlaces) })
	transformReg.MustRegister(transform.TypeRegexMatch, func() core.ValueTransformation { return transform.NewRegexMatch("") })
	transformReg.MustRegister(transform.TypeSubstring, func() core.ValueTransformation { return transform.NewSubstring(0, -1) })
	transformReg.MustRegister(transform.TypeMap, func() core.ValueTransformation { return transform.NewMap("") })
	transformReg.MustRegister(transform.TypeConditional, func() core.ValueTransformation { return transform.NewConditional(nil, nil, nil) })
	transformReg.MustRegister(transform.TypeTrim, func() core.ValueTransformation { return transform.NewTrim("") })
	transformReg.MustRegister(transform.TypeChangeCase, func() core.ValueTransformation { return transform.NewChangeCase("") })
	transformReg.MustRegister(transform.TypeDateFormat, func() core.ValueTransformation { return transform.NewDateFormat("", "") })

	comparisonReg = registry.New[core.Comparison]("comparison")
	comparisonReg.MustRegister(filter.TypeEquals, func() core.Comparison { return filter.NewEquals(nil, nil) })
	comparisonReg.MustRegister(filter.TypeNotEqual, func() core.Comparison { return filter.NewNotEqual(nil, nil) })
	comparisonReg.MustRegister(filter.TypeGreaterThan, func() core.Comparison { return filter.NewOrdering(filter.Greater, nil, nil) })
	comparisonReg.MustRegister(filter.TypeGreaterThanOrEqual, func() core.Comparison { return filter.NewOrdering(filter.GreaterOrEqual, nil, nil) })
	comparisonReg.MustRegister(filter.TypeLessThan, func() core.Comparison { return filter.NewOrdering(filter.Less, nil, nil) })
	comparisonReg.MustRegister(filter.TypeLessThanOrEqual, func() core.Comparison { return filter.NewOrdering(filter.LessOrEqual, nil, nil) })
	comparisonReg.MustRegister(filter.TypeBetween, func() core.Comparison { return filter.NewBetween(nil, nil, nil) })
	comparisonReg.MustRegister(filter.TypeNotBetween, func() core.Comparison { return filter.NewNotBetween(nil, nil, nil) })
	comparisonReg.MustRegister(filter.TypeContains, func() core.Comparison { return filter.NewContains(nil, nil) })
	comparisonReg.MustRegister(filter.TypeNotContains, func() core.Comparison { return filter.NewNotContains(nil, nil) })
	comparisonReg.MustRegister(filter.TypeStartsWith, func() core.Comparison { return filter.NewStartsWith(nil, nil) })
	comparisonReg.MustRegister(filter.TypeEndsWith, func() core.Comparison { return filter.NewEndsWith(nil, nil) })
	comparisonReg.MustRegister(filter.TypeIn, func() core.Comparison { return filter.NewIn(nil) })
	comparisonReg.MustRegister(filter.TypeNotIn, func() core.Comparison { return filter.NewNotIn(nil) })
	comparisonReg.MustRegister(filter.TypeIsNull, func() core.Comparison { return filter.NewIsNull(nil) })
	comparisonReg.MustRegister(filter.TypeIsNotNull, func() core.Comparison { return filter.NewIsNotNull(nil) })
	comparisonReg.MustRegister(filter.TypeIsNullOrEmpty, func() core.Comparison { return filter.NewIsNullOrEmpty(nil) })
	comparisonReg.MustRegister(filter.TypeIsNotNullOrEmpty, func() core.Comparison { return filter.NewIsNotNullOrEmpty(nil) })
	comparisonReg.MustRegister(filter.TypeIsNullOrWhiteSpace, func() core.Comparison { return filter.NewIsNullOrWhiteSpace(nil) })
	comparisonReg.MustRegister(filter.TypeIsNotNullOrWhiteSpace, func() core.Comparison { return filter.NewIsNotNullOrWhiteSpace(nil) })
	comparisonReg.MustRegister(filter.TypeIsTrue, func() core.Comparison { return filter.NewIsTrue(nil) })
	comparisonReg.MustRegister(filter.TypeIsFalse, func() core.Comparison { return filter.NewIsFalse(nil) })
	comparisonReg.MustRegister(filter.TypeRegexMatch, func() core.Comparison { return filter.NewRegexMatch(nil, "") })
	comparisonReg.MustRegister(filter.TypeAnd, func() core.Comparison { return filter.NewAnd() })
	comparisonReg.MustRegister(filter.TypeOr, func() core.Comparison { return filter.NewOr() })
	comparisonReg.MustRegister(filter.TypeNot, func() core.Comparison { return filter.NewNot(nil) })
}

// Rules returns the mapping rule registry.
func Rules() *registry.Registry[core.Rule] {
	once.Do(populate)
	return ruleReg
}

// Transformations returns the value transformation registry.
func Transformations() *registry.Registry[core.ValueTransformation] {
	once.Do(populate)
	return transformReg
}

// Comparisons returns the comparison registry.
func Comparisons() *registry.Registry[core.Comparison] {
	once.Do(populate)
	return comparisonReg
}

// NewRule creates a rule by TypeId.
func NewRule(typeID string) (core.Rule, error) {
	return Rules().CreateInstance(typeID)
}

// NewTransformation creates a value transformation by TypeId.
func NewTransformation(typeID string) (core.ValueTransformation, error) {
	return Transformations().CreateInstance(typeID)
}

// NewComparison creates a comparison by TypeId.
func NewComparison(typeID string) (core.Comparison, error) {
	return Comparisons().CreateInstance(typeID)
}
