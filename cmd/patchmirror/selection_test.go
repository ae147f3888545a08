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
	"reflect"
	"testing"
)

func TestParseSelection(t *testing.T) {
	const patchCount = 3

	testCases := []struct {
		raw         string
		wantKind    SelectionKind
		wantIndices []int
		wantInvalid []string
	}{
		{"", SelectionAll, nil, nil},
		{"   ", SelectionAll, nil, nil},
		{"c", SelectionCancel, nil, nil},
		{"C", SelectionCancel, nil, nil},
		{"1", SelectionIndices, []int{0}, nil},
		{"3", SelectionIndices, []int{2}, nil},
		{"1,2,3", SelectionIndices, []int{0, 1, 2}, nil},
		{"1 2 3", SelectionIndices, []int{0, 1, 2}, nil},
		{"1,1,1", SelectionIndices, []int{0}, nil},
		// out-of-range and non-numeric tokens are reported, never panic
		// or silently index the wrong patch.
		{"0", SelectionIndices, nil, []string{"0"}},
		{"4", SelectionIndices, nil, []string{"4"}},
		{"-1", SelectionIndices, nil, []string{"-1"}},
		{"abc", SelectionIndices, nil, []string{"abc"}},
		{"1,abc,4", SelectionIndices, []int{0}, []string{"abc", "4"}},
	}

	for _, tc := range testCases {
		sel, invalid := ParseSelection(tc.raw, patchCount)
		if sel.Kind != tc.wantKind {
			t.Errorf("ParseSelection(%q): Kind = %v, want %v", tc.raw, sel.Kind, tc.wantKind)
		}
		if !reflect.DeepEqual(sel.Indices, tc.wantIndices) {
			t.Errorf("ParseSelection(%q): Indices = %v, want %v", tc.raw, sel.Indices, tc.wantIndices)
		}
		if !reflect.DeepEqual(invalid, tc.wantInvalid) {
			t.Errorf("ParseSelection(%q): invalid = %v, want %v", tc.raw, invalid, tc.wantInvalid)
		}
	}
}

// TestParseSelectionBounds pins down the off-by-one decision directly: a
// prompt answer of "1" must select the first patch (index 0), and
// patchCount itself must be the last valid token.
func TestParseSelectionBounds(t *testing.T) {
	sel, invalid := ParseSelection("1", 1)
	if len(invalid) != 0 {
		t.Fatalf("unexpected invalid tokens: %v", invalid)
	}
	if len(sel.Indices) != 1 || sel.Indices[0] != 0 {
		t.Fatalf("ParseSelection(\"1\", 1) = %v, want [0]", sel.Indices)
	}

	_, invalid = ParseSelection("2", 1)
	if len(invalid) != 1 {
		t.Fatalf("ParseSelection(\"2\", 1) should reject index 2 as out of range, got invalid=%v", invalid)
	}
}

func TestPatchIDFromURL(t *testing.T) {
	testCases := []struct {
		url  string
		want string
	}{
		{"https://example.com/repo/patch/", "patch"},
		{"https://example.com/repo/patch", "patch"},
		{"https://example.com/patch", "patch"},
	}
	for _, tc := range testCases {
		if got := patchIDFromURL(tc.url); got != tc.want {
			t.Errorf("patchIDFromURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
