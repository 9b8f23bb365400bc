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

package core

import "context"

// ContainsRule reports whether target is root or is reachable from root
// through Children. Identity is pointer identity.
func ContainsRule(root, target Rule) bool {
	if root == nil || target == nil {
		return false
	}
	visited := make(map[Rule]struct{})
	var walk func(r Rule) bool
	walk = func(r Rule) bool {
		if r == nil {
			return false
		}
		if r == target {
			return true
		}
		if _, ok := visited[r]; ok {
			return false
		}
		visited[r] = struct{}{}
		for _, child := range r.Children() {
			if walk(child) {
				return true
			}
		}
		return false
	}
	return walk(root)
}

// CheckOperand returns ErrRuleCycle when assigning operand under owner would
// make owner its own transitive operand.
func CheckOperand(owner, operand Rule) error {
	if owner == nil || operand == nil {
		return nil
	}
	if ContainsRule(operand, owner) {
		return ErrRuleCycle
	}
	return nil
}

// ComparisonRules returns the operand rules of c, nil-safe.
func ComparisonRules(c Comparison) []Rule {
	if c == nil {
		return nil
	}
	return c.Operands()
}

type activeRulesKey struct{}

type activeRule struct {
	rule Rule
	next *activeRule
}

// EnterRule marks r as under evaluation in the returned context. It returns
// ErrRuleCycle when r is already being evaluated further up the same call
// path, which happens when an operand, branch or chain step was mutated into
// a loop after it was attached.
func EnterRule(ctx context.Context, r Rule) (context.Context, error) {
	head, _ := ctx.Value(activeRulesKey{}).(*activeRule)
	for n := head; n != nil; n = n.next {
		if n.rule == r {
			return ctx, ErrRuleCycle
		}
	}
	return context.WithValue(ctx, activeRulesKey{}, &activeRule{rule: r, next: head}), nil
}
