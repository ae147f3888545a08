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

package publish

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/console"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/manifest"
)

type fakeBuilder struct {
	calls int
}

func (b *fakeBuilder) Build(ctx context.Context, srcDir, dstDir string) error {
	b.calls++
	return nil
}

func writePrimaryRepoJS(t *testing.T, mirrorDir, thpatchLocalID string, neighbors []string) {
	t.Helper()
	dir := filepath.Join(mirrorDir, thpatchLocalID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	doc := map[string]interface{}{
		"id":        "thpatch",
		"title":     "Touhou Community Reliant Automatic Patcher",
		"contact":   "admin@example.com",
		"servers":   []string{"https://thpatch.example/"},
		"patches":   map[string]string{},
		"neighbors": neighbors,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "repo.js"), data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestPublishNeighborLinksIntoPrimary(t *testing.T) {
	mirrorDir := t.TempDir()
	writePrimaryRepoJS(t, mirrorDir, "thpatch", nil)

	upstream := &manifest.RepoDescriptor{
		ID:      "neighbor",
		Title:   "Neighbor Repo",
		Patches: map[string]string{"p1": "Patch One"},
	}
	builder := &fakeBuilder{}
	err := Publish(context.Background(), console.Discard, mirrorDir, "neighbor", "https://mirror.example/", "thpatch", upstream, builder)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if builder.calls != 1 {
		t.Fatalf("builder.calls = %d, want 1", builder.calls)
	}

	raw, err := os.ReadFile(filepath.Join(mirrorDir, "thpatch", "repo.js"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	neighbors := gjson.GetBytes(raw, "neighbors").Array()
	if len(neighbors) != 1 || neighbors[0].String() != "https://mirror.example/neighbor/" {
		t.Fatalf("neighbors = %v, want [https://mirror.example/neighbor/]", neighbors)
	}

	// Republishing the same neighbor must not duplicate the entry.
	if err := Publish(context.Background(), console.Discard, mirrorDir, "neighbor", "https://mirror.example/", "thpatch", upstream, builder); err != nil {
		t.Fatalf("Publish (second time): %v", err)
	}
	raw, err = os.ReadFile(filepath.Join(mirrorDir, "thpatch", "repo.js"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	neighbors = gjson.GetBytes(raw, "neighbors").Array()
	if len(neighbors) != 1 {
		t.Fatalf("neighbors after republish = %v, want exactly 1 entry (no duplicate)", neighbors)
	}
}

func TestPublishPrimaryRepoSkipsCrossLink(t *testing.T) {
	mirrorDir := t.TempDir()
	upstream := &manifest.RepoDescriptor{ID: "thpatch", Title: "Primary"}
	builder := &fakeBuilder{}

	err := Publish(context.Background(), console.Discard, mirrorDir, "thpatch", "https://mirror.example/", "thpatch", upstream, builder)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if builder.calls != 1 {
		t.Fatalf("builder.calls = %d, want 1", builder.calls)
	}
	// The primary repo never cross-links into itself, so no repo.js
	// rewrite beyond what Build (faked here) would have produced.
	if _, err := os.Stat(filepath.Join(mirrorDir, "thpatch", "repo.js")); !os.IsNotExist(err) {
		t.Fatalf("primary repo.js should not be written by Publish itself, stat err = %v", err)
	}
}

func TestPublishMissingPrimaryRepoJSIsNotFatal(t *testing.T) {
	mirrorDir := t.TempDir()
	upstream := &manifest.RepoDescriptor{ID: "neighbor", Title: "Neighbor Repo"}
	builder := &fakeBuilder{}

	// No thpatch/repo.js exists yet: cross-link must warn and return nil,
	// not fail the whole publish.
	err := Publish(context.Background(), console.Discard, mirrorDir, "neighbor", "https://mirror.example/", "thpatch", upstream, builder)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestShellRepoBuilderRunsConfiguredCommand(t *testing.T) {
	var gotCommand, gotSrc, gotDst string
	b := ShellRepoBuilder{
		Command: "repo_build.sh",
		Run: func(ctx context.Context, command, srcDir, dstDir string) error {
			gotCommand, gotSrc, gotDst = command, srcDir, dstDir
			return nil
		},
	}
	if err := b.Build(context.Background(), "/mirror/neighbor", "/mirror/neighbor"); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if gotCommand != "repo_build.sh" || gotSrc != "/mirror/neighbor" || gotDst != "/mirror/neighbor" {
		t.Fatalf("Run args = (%q, %q, %q), want (%q, %q, %q)", gotCommand, gotSrc, gotDst, "repo_build.sh", "/mirror/neighbor", "/mirror/neighbor")
	}
}

func TestShellRepoBuilderNoRunnerIsError(t *testing.T) {
	b := ShellRepoBuilder{Command: "repo_build.sh"}
	if err := b.Build(context.Background(), "/mirror/neighbor", "/mirror/neighbor"); err == nil {
		t.Fatalf("Build with no Run configured should return an error")
	}
}
