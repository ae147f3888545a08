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

package journal

import (
	"encoding/json"
	"testing"
)

func TestFileEntryRoundTrip(t *testing.T) {
	crc := uint32(0xdeadbeef)
	testCases := []FileEntry{
		{CRC32: &crc, Mode: ModeUpdate},
		{CRC32: nil, Mode: ModeRemove},
	}
	for _, want := range testCases {
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var got FileEntry
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got.Mode != want.Mode {
			t.Errorf("Mode = %v, want %v", got.Mode, want.Mode)
		}
		switch {
		case want.CRC32 == nil && got.CRC32 != nil:
			t.Errorf("CRC32 = %v, want nil", *got.CRC32)
		case want.CRC32 != nil && (got.CRC32 == nil || *got.CRC32 != *want.CRC32):
			t.Errorf("CRC32 = %v, want %v", got.CRC32, *want.CRC32)
		}
	}
}

func TestAddJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if a, err := ReadAdd(dir); err != nil || a != nil {
		t.Fatalf("ReadAdd on empty mirror: got (%v, %v), want (nil, nil)", a, err)
	}

	want := &Add{
		Repo:        "thpatch",
		Origin:      "https://example.com/repo/",
		PatchesTask: []string{"b", "c"},
		Downloading: "a",
	}
	if err := WriteAdd(dir, want); err != nil {
		t.Fatalf("WriteAdd: %v", err)
	}

	got, err := ReadAdd(dir)
	if err != nil {
		t.Fatalf("ReadAdd: %v", err)
	}
	if got.Repo != want.Repo || got.Origin != want.Origin || got.Downloading != want.Downloading {
		t.Fatalf("ReadAdd = %+v, want %+v", got, want)
	}
	if len(got.PatchesTask) != 2 || got.PatchesTask[0] != "b" || got.PatchesTask[1] != "c" {
		t.Fatalf("ReadAdd.PatchesTask = %v, want [b c]", got.PatchesTask)
	}

	if err := WriteAddFiles(dir, []byte(`{"a.txt":1}`)); err != nil {
		t.Fatalf("WriteAddFiles: %v", err)
	}
	raw, err := ReadAddFiles(dir)
	if err != nil {
		t.Fatalf("ReadAddFiles: %v", err)
	}
	if string(raw) != `{"a.txt":1}` {
		t.Fatalf("ReadAddFiles = %q, want %q", raw, `{"a.txt":1}`)
	}

	if err := CleanAdd(dir); err != nil {
		t.Fatalf("CleanAdd: %v", err)
	}
	if a, err := ReadAdd(dir); err != nil || a != nil {
		t.Fatalf("ReadAdd after CleanAdd: got (%v, %v), want (nil, nil)", a, err)
	}
	// CleanAdd must tolerate being called again on an already-clean mirror.
	if err := CleanAdd(dir); err != nil {
		t.Fatalf("CleanAdd on already-clean mirror: %v", err)
	}
}

func TestUpdateJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if u, err := ReadUpdate(dir); err != nil || u != nil {
		t.Fatalf("ReadUpdate on empty mirror: got (%v, %v), want (nil, nil)", u, err)
	}

	crc := uint32(42)
	want := &Update{
		RepoID:   "neighbor",
		Patch:    "patch1",
		PatchDir: "/mirror/neighbor/patch1",
		PatchURL: "https://example.com/neighbor/patch1/",
		NewHash:  "abc123",
		Files: map[string]FileEntry{
			"changed.txt": {CRC32: &crc, Mode: ModeUpdate},
			"gone.txt":    {CRC32: nil, Mode: ModeRemove},
		},
	}
	if err := WriteUpdate(dir, want); err != nil {
		t.Fatalf("WriteUpdate: %v", err)
	}

	got, err := ReadUpdate(dir)
	if err != nil {
		t.Fatalf("ReadUpdate: %v", err)
	}
	if got.RepoID != want.RepoID || got.NewHash != want.NewHash {
		t.Fatalf("ReadUpdate = %+v, want %+v", got, want)
	}
	if len(got.Files) != 2 {
		t.Fatalf("ReadUpdate.Files has %d entries, want 2", len(got.Files))
	}
	if got.Files["changed.txt"].Mode != ModeUpdate || *got.Files["changed.txt"].CRC32 != 42 {
		t.Fatalf("Files[changed.txt] = %+v, want Mode=u CRC32=42", got.Files["changed.txt"])
	}
	if got.Files["gone.txt"].Mode != ModeRemove || got.Files["gone.txt"].CRC32 != nil {
		t.Fatalf("Files[gone.txt] = %+v, want Mode=r CRC32=nil", got.Files["gone.txt"])
	}

	if err := CleanUpdate(dir); err != nil {
		t.Fatalf("CleanUpdate: %v", err)
	}
	if u, err := ReadUpdate(dir); err != nil || u != nil {
		t.Fatalf("ReadUpdate after CleanUpdate: got (%v, %v), want (nil, nil)", u, err)
	}
}
