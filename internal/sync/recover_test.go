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

package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/journal"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/version"
)

func TestRecoverNoJournalsIsNoop(t *testing.T) {
	mirrorDir := t.TempDir()
	e := newTestEngine(t, mirrorDir, &fakeBuilder{})
	if err := e.Recover(context.Background()); err != nil {
		t.Fatalf("Recover on a clean mirror: %v", err)
	}
}

func TestRecoverUpdateResumesOnlyOutstandingFiles(t *testing.T) {
	mirrorDir := t.TempDir()
	patchDir := filepath.Join(mirrorDir, "neighbor", "p1")
	if err := os.MkdirAll(patchDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	// already-fetched.txt matches its recorded CRC32, so recovery must
	// not re-fetch it; missing.txt does not exist yet and must be
	// fetched.
	if err := os.WriteFile(filepath.Join(patchDir, "already-fetched.txt"), []byte("same"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	matchingCRC, _, err := fileCRC32(filepath.Join(patchDir, "already-fetched.txt"))
	if err != nil {
		t.Fatalf("fileCRC32: %v", err)
	}

	var fetched int
	mux := http.NewServeMux()
	mux.HandleFunc("/p1/missing.txt", func(w http.ResponseWriter, r *http.Request) {
		fetched++
		w.Write([]byte("fresh"))
	})
	mux.HandleFunc("/p1/already-fetched.txt", func(w http.ResponseWriter, r *http.Request) {
		fetched++
		w.Write([]byte("should not be requested"))
	})
	mux.HandleFunc("/repo.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"neighbor","title":"Neighbor","contact":"a@b.c","servers":["https://n.example/"],"patches":{"p1":"Patch One"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	builder := &fakeBuilder{}
	e := newTestEngine(t, mirrorDir, builder)
	if err := version.Upsert(mirrorDir, "neighbor", srv.URL+"/", "p1", "priorhash"); err != nil {
		t.Fatalf("version.Upsert: %v", err)
	}

	missingCRC := uint32(123)
	if err := journal.WriteUpdate(mirrorDir, &journal.Update{
		RepoID: "neighbor", Patch: "p1", PatchDir: patchDir,
		PatchURL: srv.URL + "/p1/", NewHash: "newhash",
		Files: map[string]journal.FileEntry{
			"missing.txt":        {CRC32: &missingCRC, Mode: journal.ModeUpdate},
			"already-fetched.txt": {CRC32: &matchingCRC, Mode: journal.ModeUpdate},
		},
	}); err != nil {
		t.Fatalf("journal.WriteUpdate: %v", err)
	}

	if err := e.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if fetched != 1 {
		t.Fatalf("fetched = %d requests, want exactly 1 (missing.txt only)", fetched)
	}
	data, err := os.ReadFile(filepath.Join(patchDir, "missing.txt"))
	if err != nil {
		t.Fatalf("missing.txt should now exist: %v", err)
	}
	if string(data) != "fresh" {
		t.Fatalf("missing.txt = %q, want %q", data, "fresh")
	}

	rec, err := version.Load(mirrorDir, "neighbor")
	if err != nil {
		t.Fatalf("version.Load: %v", err)
	}
	if rec.Patches["p1"] != "newhash" {
		t.Fatalf("Patches[p1] = %q, want newhash", rec.Patches["p1"])
	}

	if _, err := os.Stat(filepath.Join(mirrorDir, "__update.json")); !os.IsNotExist(err) {
		t.Fatalf("__update.json should be removed after recovery, stat err = %v", err)
	}
}

func TestRecoverAddResumesQueueAndReVerifiesFiles(t *testing.T) {
	mirrorDir := t.TempDir()

	var fetchedA, fetchedB int
	mux := http.NewServeMux()
	mux.HandleFunc("/repo.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"thpatch","title":"Primary","contact":"a@b.c","servers":["https://u.example/"],"patches":{"p1":"Patch One","p2":"Patch Two"}}`))
	})
	mux.HandleFunc("/p1/a.txt", func(w http.ResponseWriter, r *http.Request) {
		fetchedA++
		w.Write([]byte("a contents"))
	})
	mux.HandleFunc("/p1/files.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"a.txt":555}`))
	})
	mux.HandleFunc("/p2/files.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"b.txt":99}`))
	})
	mux.HandleFunc("/p2/b.txt", func(w http.ResponseWriter, r *http.Request) {
		fetchedB++
		w.Write([]byte("b contents"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	builder := &fakeBuilder{}
	e := newTestEngine(t, mirrorDir, builder)

	if err := journal.WriteAdd(mirrorDir, &journal.Add{
		Repo: "thpatch", Origin: srv.URL + "/",
		PatchesTask: []string{"p2"}, Downloading: "p1",
	}); err != nil {
		t.Fatalf("journal.WriteAdd: %v", err)
	}
	// a.txt was listed in __files.js for the in-flight patch p1 but never
	// actually landed on disk before the crash.
	if err := journal.WriteAddFiles(mirrorDir, []byte(`{"a.txt":555}`)); err != nil {
		t.Fatalf("journal.WriteAddFiles: %v", err)
	}

	if err := e.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if fetchedA != 1 {
		t.Fatalf("a.txt fetched %d times, want 1", fetchedA)
	}
	if fetchedB != 1 {
		t.Fatalf("b.txt fetched %d times, want 1", fetchedB)
	}
	if _, err := os.Stat(filepath.Join(mirrorDir, "thpatch", "p1", "a.txt")); err != nil {
		t.Fatalf("p1/a.txt should exist after recovery: %v", err)
	}
	if _, err := os.Stat(filepath.Join(mirrorDir, "thpatch", "p2", "b.txt")); err != nil {
		t.Fatalf("p2/b.txt should exist after draining patches_task: %v", err)
	}

	if _, err := os.Stat(filepath.Join(mirrorDir, "__add.json")); !os.IsNotExist(err) {
		t.Fatalf("__add.json should be removed after recovery, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(mirrorDir, "__files.js")); !os.IsNotExist(err) {
		t.Fatalf("__files.js should be removed after recovery, stat err = %v", err)
	}
}
