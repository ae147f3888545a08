/*
 * thcrap patch mirror, (C) 2024 RetroCyber
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"strconv"
	"strings"
	"unicode"
)

// SelectionKind distinguishes the three shapes a patch-number prompt
// answer can take.
type SelectionKind int

const (
	SelectionCancel SelectionKind = iota
	SelectionAll
	SelectionIndices
)

// Selection is the parsed result of a patch-number prompt answer.
// Indices are 0-based, already bounds-checked and de-duplicated,
// ready to index directly into the patch slice the prompt was built
// from.
type Selection struct {
	Kind    SelectionKind
	Indices []int
}

// ParseSelection parses a user's answer to "which patches?" against a
// list of patchCount available patches. An empty answer selects all;
// "c" (any case) cancels; otherwise the answer is a comma/whitespace
// separated list of 1-based indices.
//
// Each token is validated as 1 ≤ i ≤ patchCount and converted to the
// 0-based index i-1 into the patch list. Tokens that are not an integer
// or fall outside that range are reported in invalid rather than
// silently applied to the wrong patch or causing a panic — the CLI
// logs them as a warning and continues with whatever validated.
func ParseSelection(raw string, patchCount int) (sel Selection, invalid []string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Selection{Kind: SelectionAll}, nil
	}
	if strings.EqualFold(trimmed, "c") {
		return Selection{Kind: SelectionCancel}, nil
	}

	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	seen := make(map[int]bool, len(fields))
	var indices []int
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > patchCount {
			invalid = append(invalid, f)
			continue
		}
		idx := n - 1
		if seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
	}
	return Selection{Kind: SelectionIndices, Indices: indices}, invalid
}
