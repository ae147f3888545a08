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

// Package journal implements the on-disk crash-recovery breadcrumbs
// written before any destructive or lengthy operation: __add.json +
// __files.js for ADD, __update.json for UPDATE.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// FileMode tags an UPDATE journal file entry as needing a fetch ("u")
// or a delete ("r").
type FileMode string

const (
	ModeUpdate FileMode = "u"
	ModeRemove FileMode = "r"
)

// FileEntry is one line of an UPDATE journal's files map: an integrity
// token (the upstream CRC32 for a fetch, the local token for a removal;
// nil when there is no token) and whether the file must be fetched or
// deleted.
type FileEntry struct {
	CRC32 *uint32
	Mode  FileMode
}

// MarshalJSON renders a FileEntry as a 2-element tuple
// [checksum_or_null, "u"|"r"].
func (e FileEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.CRC32, e.Mode})
}

// UnmarshalJSON parses the 2-element tuple form written by MarshalJSON.
func (e *FileEntry) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &e.CRC32); err != nil {
		return err
	}
	var mode string
	if err := json.Unmarshal(tuple[1], &mode); err != nil {
		return err
	}
	e.Mode = FileMode(mode)
	return nil
}

// Add is the __add.json journal. It is accompanied by __files.js
// holding the raw upstream files.js bytes for Downloading.
type Add struct {
	Repo        string   `json:"repo"`
	Origin      string   `json:"origin"`
	PatchesTask []string `json:"patches_task"`
	Downloading string   `json:"downloading"`
}

func addJournalPath(mirrorDir string) string   { return filepath.Join(mirrorDir, "__add.json") }
func addFilesJSPath(mirrorDir string) string   { return filepath.Join(mirrorDir, "__files.js") }
func updateJournalPath(mirrorDir string) string { return filepath.Join(mirrorDir, "__update.json") }

// WriteAdd persists the ADD journal, creating mirrorDir if needed.
func WriteAdd(mirrorDir string, a *Add) error {
	if err := os.MkdirAll(mirrorDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(addJournalPath(mirrorDir), data, 0o644)
}

// ReadAdd loads the ADD journal, returning (nil, nil) if it doesn't
// exist.
func ReadAdd(mirrorDir string) (*Add, error) {
	data, err := os.ReadFile(addJournalPath(mirrorDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a Add
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// WriteAddFiles persists the raw upstream files.js bytes for the
// in-flight patch verbatim.
func WriteAddFiles(mirrorDir string, raw []byte) error {
	return os.WriteFile(addFilesJSPath(mirrorDir), raw, 0o644)
}

// ReadAddFiles reads back the raw bytes written by WriteAddFiles.
func ReadAddFiles(mirrorDir string) ([]byte, error) {
	return os.ReadFile(addFilesJSPath(mirrorDir))
}

// CleanAdd removes both ADD journal files, tolerating their absence.
func CleanAdd(mirrorDir string) error {
	if err := removeIfExists(addJournalPath(mirrorDir)); err != nil {
		return err
	}
	return removeIfExists(addFilesJSPath(mirrorDir))
}

// Update is the __update.json journal.
type Update struct {
	RepoID   string               `json:"repo_id"`
	Patch    string               `json:"patch"`
	PatchDir string               `json:"patch_dir"`
	PatchURL string               `json:"patch_url"`
	NewHash  string               `json:"new_hash"`
	Files    map[string]FileEntry `json:"files"`
}

// WriteUpdate persists the UPDATE journal.
func WriteUpdate(mirrorDir string, u *Update) error {
	if err := os.MkdirAll(mirrorDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(updateJournalPath(mirrorDir), data, 0o644)
}

// ReadUpdate loads the UPDATE journal, returning (nil, nil) if it
// doesn't exist.
func ReadUpdate(mirrorDir string) (*Update, error) {
	data, err := os.ReadFile(updateJournalPath(mirrorDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CleanUpdate removes the UPDATE journal, tolerating its absence.
func CleanUpdate(mirrorDir string) error {
	return removeIfExists(updateJournalPath(mirrorDir))
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
