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
	"path/filepath"
	"sync"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/journal"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/manifest"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/probe"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/publish"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/transport"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/version"
)

// AddPatches runs the ADD state machine (enqueue, fetch manifest,
// download, record, advance, publish) for a list of patch ids under one
// repo. desc is the already-fetched upstream repo descriptor (used for
// the final publish step); repoURL is the repo's origin URL (trailing
// slash).
func (e *Engine) AddPatches(ctx context.Context, localRepoID, repoURL string, desc *manifest.RepoDescriptor, patchIDs []string) error {
	if err := e.drainAddQueue(ctx, localRepoID, repoURL, patchIDs); err != nil {
		return probe.NewError(err).Trace(localRepoID, repoURL).ToError()
	}

	// Publish once the whole queue has drained.
	if err := publish.Publish(ctx, e.Log, e.MirrorDir, localRepoID, e.SiteURL, e.ThpatchLocalID, desc, e.Builder); err != nil {
		return probe.NewError(err).Trace(localRepoID).ToError()
	}
	if err := journal.CleanAdd(e.MirrorDir); err != nil {
		return probe.NewError(err).Trace(e.MirrorDir).ToError()
	}
	return nil
}

// drainAddQueue runs the enqueue/fetch/download/record/advance loop for
// patchIDs, writing the ADD journal before each patch so a crash mid-way
// leaves a journal recovery can resume from. It does not publish or
// clean up the journal — callers (AddPatches, and recovery for the
// remaining patches_task) decide when the queue is fully drained.
func (e *Engine) drainAddQueue(ctx context.Context, localRepoID, repoURL string, patchIDs []string) error {
	remaining := append([]string(nil), patchIDs...)

	for len(remaining) > 0 {
		current := remaining[0]
		remaining = remaining[1:]

		// Enqueue: record the work remaining before touching the network.
		if err := journal.WriteAdd(e.MirrorDir, &journal.Add{
			Repo:        localRepoID,
			Origin:      repoURL,
			PatchesTask: remaining,
			Downloading: current,
		}); err != nil {
			return err
		}

		if err := e.addOnePatch(ctx, localRepoID, repoURL, current); err != nil {
			// Manifest unreachable, or the patch id is unknown upstream:
			// log and move on to the next queued patch.
			e.Log.Errorf("add %s/%s: %v", localRepoID, current, err)
			continue
		}
	}
	return nil
}

// addOnePatch fetches the manifest, downloads the patch's files, and
// records its version hash, assuming the enqueue journal write already
// happened.
func (e *Engine) addOnePatch(ctx context.Context, localRepoID, repoURL, patchID string) error {
	pURL := patchURL(repoURL, patchID)

	// Fetch manifest.
	fileMap, raw, err := manifest.FetchPatchFilesVerbatim(ctx, e.Transport, pURL)
	if err != nil {
		return err
	}
	if err := journal.WriteAddFiles(e.MirrorDir, raw); err != nil {
		return err
	}

	// Download.
	e.downloadFileMap(ctx, pURL, e.patchDir(localRepoID, patchID), fileMap, e.AddPool)

	// Record.
	hash, err := manifest.FetchPatchVersion(ctx, e.Transport, pURL)
	if err != nil {
		// A version-hash fetch failure is logged and this patch is
		// skipped, never fatal to the session.
		e.Log.Errorf("version hash for %s/%s: %v", localRepoID, patchID, err)
		return nil
	}
	return version.Upsert(e.MirrorDir, localRepoID, repoURL, patchID, hash)
}

// downloadFileMap concurrently downloads every non-null entry of
// fileMap through pool, logging but not propagating per-file failures:
// one bad download never aborts its peers.
func (e *Engine) downloadFileMap(ctx context.Context, baseURL, dstDir string, fileMap map[string]*uint32, pool *transport.Pool) {
	var wg sync.WaitGroup
	for relPath, token := range fileMap {
		if token == nil {
			continue
		}
		relPath := relPath
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := ensureTrailingSlash(baseURL) + relPath
			dst := filepath.Join(dstDir, filepath.FromSlash(relPath))
			if err := e.Transport.Download(ctx, pool, src, dst); err != nil {
				e.Log.Errorf("download %s: %v", src, err)
			}
		}()
	}
	wg.Wait()
}
