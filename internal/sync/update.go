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
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/journal"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/manifest"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/probe"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/publish"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/version"
)

// UpdateWorkItem is one (repo, patch) pair whose upstream files.js hash
// has changed.
type UpdateWorkItem struct {
	RepoID   string
	Origin   string
	Patch    string
	PatchURL string
	NewHash  string
}

// CheckUpdates is the discovery phase: for every mirrored repo's
// version record, fetch each patch's current upstream hash and collect
// the ones that differ.
func (e *Engine) CheckUpdates(ctx context.Context) ([]UpdateWorkItem, error) {
	repoIDs, err := version.ListRepoIDs(e.MirrorDir)
	if err != nil {
		return nil, probe.NewError(err).Trace(e.MirrorDir).ToError()
	}

	var items []UpdateWorkItem
	for _, repoID := range repoIDs {
		rec, err := version.Load(e.MirrorDir, repoID)
		if err != nil {
			e.Log.Errorf("checking %s: %v", repoID, err)
			continue
		}
		if rec == nil {
			continue
		}
		for patch, storedHash := range rec.Patches {
			pURL := patchURL(rec.Origin, patch)
			newHash, err := manifest.FetchPatchVersion(ctx, e.Transport, pURL)
			if err != nil {
				// Non-fatal: skip this patch and keep checking the rest.
				e.Log.Errorf("version hash for %s/%s: %v", repoID, patch, err)
				continue
			}
			if newHash != storedHash {
				e.Log.Infof("%s/%s has a new version", repoID, patch)
				items = append(items, UpdateWorkItem{
					RepoID: repoID, Origin: rec.Origin, Patch: patch,
					PatchURL: pURL, NewHash: newHash,
				})
			}
		}
	}
	return items, nil
}

// fetchUpdateList computes the diff between a patch's local files.js
// and its current upstream files.js.
func (e *Engine) fetchUpdateList(ctx context.Context, patchDir, pURL string) (map[string]journal.FileEntry, error) {
	localMap, err := readLocalFileMap(patchDir)
	if err != nil {
		return nil, err
	}
	delete(localMap, "patch.js")

	originMap, err := manifest.FetchFileMapRaw(ctx, e.Transport, pURL)
	if err != nil {
		return nil, err
	}
	delete(originMap, "patch.js")

	diff := map[string]journal.FileEntry{}
	for key, localToken := range localMap {
		if localToken == nil {
			continue
		}
		originToken, ok := originMap[key]
		if !ok || originToken == nil {
			diff[key] = journal.FileEntry{CRC32: localToken, Mode: journal.ModeRemove}
		}
	}
	for key, originToken := range originMap {
		if originToken == nil {
			continue
		}
		localToken, ok := localMap[key]
		if !ok || localToken == nil || *localToken != *originToken {
			diff[key] = journal.FileEntry{CRC32: originToken, Mode: journal.ModeUpdate}
		}
	}
	return diff, nil
}

func readLocalFileMap(patchDir string) (map[string]*uint32, error) {
	data, err := os.ReadFile(filepath.Join(patchDir, "files.js"))
	if os.IsNotExist(err) {
		return map[string]*uint32{}, nil
	}
	if err != nil {
		return nil, err
	}
	var m map[string]*uint32
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ApplyUpdate converges one patch's on-disk files with its upstream
// state: diff, journal, fetch/delete, then record the new hash.
func (e *Engine) ApplyUpdate(ctx context.Context, item UpdateWorkItem) error {
	patchDir := e.patchDir(item.RepoID, item.Patch)

	diff, err := e.fetchUpdateList(ctx, patchDir, item.PatchURL)
	if err != nil {
		return probe.NewError(err).Trace(item.RepoID, item.Patch).ToError()
	}

	if len(diff) > 0 {
		if err := journal.WriteUpdate(e.MirrorDir, &journal.Update{
			RepoID: item.RepoID, Patch: item.Patch, PatchDir: patchDir,
			PatchURL: item.PatchURL, NewHash: item.NewHash, Files: diff,
		}); err != nil {
			return probe.NewError(err).Trace(item.RepoID, item.Patch).ToError()
		}
		e.executeDiff(ctx, patchDir, item.PatchURL, diff)
		if err := removeStaleFilesJS(patchDir); err != nil {
			return probe.NewError(err).Trace(patchDir).ToError()
		}
	}

	if err := version.Upsert(e.MirrorDir, item.RepoID, item.Origin, item.Patch, item.NewHash); err != nil {
		return probe.NewError(err).Trace(item.RepoID, item.Patch).ToError()
	}
	return nil
}

// executeDiff fetches every ModeUpdate entry concurrently through the
// update pool (size 5) and deletes every ModeRemove entry sequentially,
// collapsing empty parent directories upward.
func (e *Engine) executeDiff(ctx context.Context, patchDir, pURL string, diff map[string]journal.FileEntry) {
	var wg sync.WaitGroup
	for relPath, entry := range diff {
		if entry.Mode != journal.ModeUpdate {
			continue
		}
		relPath := relPath
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := ensureTrailingSlash(pURL) + relPath
			dst := filepath.Join(patchDir, filepath.FromSlash(relPath))
			if err := e.Transport.Download(ctx, e.UpdatePool, src, dst); err != nil {
				e.Log.Errorf("update %s: %v", src, err)
			} else {
				e.Log.Updatef("%s", dst)
			}
		}()
	}
	wg.Wait()

	for relPath, entry := range diff {
		if entry.Mode != journal.ModeRemove {
			continue
		}
		removeAndCollapse(e.Log, patchDir, relPath)
	}
}

// removeAndCollapse deletes patchDir/relPath and then removes any now-
// empty parent directories, stopping at patchDir.
func removeAndCollapse(log interface{ Removef(string, ...interface{}) }, patchDir, relPath string) {
	full := filepath.Join(patchDir, filepath.FromSlash(relPath))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return
	}
	log.Removef("%s", full)

	dir := filepath.Dir(full)
	for dir != patchDir && len(dir) > len(patchDir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func removeStaleFilesJS(patchDir string) error {
	err := os.Remove(filepath.Join(patchDir, "files.js"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RunUpdate is the top-level UPDATE driver: discovery, then convergence
// grouped and serialized by repo (patches within a repo run one at a
// time, and so do repos within a session), publishing once per repo and
// deleting the journal only after every repo has finished.
func (e *Engine) RunUpdate(ctx context.Context) error {
	items, err := e.CheckUpdates(ctx)
	if err != nil {
		return probe.NewError(err).Trace(e.MirrorDir).ToError()
	}

	byRepo := map[string][]UpdateWorkItem{}
	var order []string
	for _, it := range items {
		if _, seen := byRepo[it.RepoID]; !seen {
			order = append(order, it.RepoID)
		}
		byRepo[it.RepoID] = append(byRepo[it.RepoID], it)
	}

	for _, repoID := range order {
		for _, item := range byRepo[repoID] {
			if err := e.ApplyUpdate(ctx, item); err != nil {
				e.Log.Errorf("update %s/%s: %v", item.RepoID, item.Patch, err)
				continue
			}
		}
		if err := e.publishRepoAfterUpdate(ctx, repoID, byRepo[repoID][0].Origin); err != nil {
			e.Log.Errorf("publish %s: %v", repoID, err)
		}
	}

	if err := journal.CleanUpdate(e.MirrorDir); err != nil {
		return probe.NewError(err).Trace(e.MirrorDir).ToError()
	}
	return nil
}

func (e *Engine) publishRepoAfterUpdate(ctx context.Context, repoID, origin string) error {
	desc, err := manifest.FetchRepo(ctx, e.Transport, origin, manifest.ModeAddRepo)
	if err != nil {
		return probe.NewError(err).Trace(repoID, origin).ToError()
	}
	if err := publish.Publish(ctx, e.Log, e.MirrorDir, repoID, e.SiteURL, e.ThpatchLocalID, desc, e.Builder); err != nil {
		return probe.NewError(err).Trace(repoID).ToError()
	}
	return nil
}
