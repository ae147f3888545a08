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

// Package version is the pure file-backed key-value store for
// .version/<repo-id>.json records: the change-detection ground truth.
package version

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Record is the on-disk shape of .version/<repo-id>.json.
type Record struct {
	Origin  string            `json:"origin"`
	Patches map[string]string `json:"patches"`
}

func dir(mirrorDir string) string {
	return filepath.Join(mirrorDir, ".version")
}

func path(mirrorDir, repoID string) string {
	return filepath.Join(dir(mirrorDir), repoID+".json")
}

// Load reads the version record for repoID. A missing file is not an
// error: it returns a nil *Record.
func Load(mirrorDir, repoID string) (*Record, error) {
	data, err := os.ReadFile(path(mirrorDir, repoID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert records hash as the last-seen files.js digest for patchID under
// repoID. An existing origin is preserved; only patches is rewritten. If
// the existing file is structurally invalid, the store is rewritten
// from scratch with the supplied origin.
func Upsert(mirrorDir, repoID, origin, patchID, hash string) error {
	rec, err := loadTolerant(mirrorDir, repoID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &Record{Origin: origin, Patches: map[string]string{}}
	}
	if rec.Patches == nil {
		rec.Patches = map[string]string{}
	}
	rec.Patches[patchID] = hash
	return write(mirrorDir, repoID, rec)
}

// loadTolerant behaves like Load but treats a structurally invalid
// file (unparseable, or with an empty origin) the same as a missing
// one, per the Upsert contract above. A record with an origin but no
// patches map is kept; Upsert fills in the map.
func loadTolerant(mirrorDir, repoID string) (*Record, error) {
	data, err := os.ReadFile(path(mirrorDir, repoID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil
	}
	if rec.Origin == "" {
		return nil, nil
	}
	return &rec, nil
}

// Remove deletes patchID's entry from repoID's record: if patches
// becomes empty the record file is deleted; if .version/ becomes empty,
// the directory is removed.
func Remove(mirrorDir, repoID, patchID string) error {
	rec, err := Load(mirrorDir, repoID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	delete(rec.Patches, patchID)
	if len(rec.Patches) == 0 {
		if err := os.Remove(path(mirrorDir, repoID)); err != nil && !os.IsNotExist(err) {
			return err
		}
		return removeDirIfEmpty(mirrorDir)
	}
	return write(mirrorDir, repoID, rec)
}

func write(mirrorDir, repoID string, rec *Record) error {
	if err := os.MkdirAll(dir(mirrorDir), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path(mirrorDir, repoID), data, 0o644)
}

func removeDirIfEmpty(mirrorDir string) error {
	entries, err := os.ReadDir(dir(mirrorDir))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return os.Remove(dir(mirrorDir))
	}
	return nil
}

// ListRepoIDs enumerates the repos with a version record, used by the
// UPDATE discovery phase.
func ListRepoIDs(mirrorDir string) ([]string, error) {
	entries, err := os.ReadDir(dir(mirrorDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const suffix = ".json"
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			ids = append(ids, name[:len(name)-len(suffix)])
		}
	}
	return ids, nil
}
