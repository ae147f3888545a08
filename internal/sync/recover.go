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

	"github.com/RetroCyber/thcrap-patch-mirror/internal/journal"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/manifest"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/probe"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/publish"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/version"
)

// Recover runs on startup, before any interactive add input is accepted
// or a scheduled update begins. It looks for a leftover UPDATE journal
// first, then an ADD journal; at most one should exist, since both kinds
// of session are serialized with the mirror's single-writer assumption.
// A mirror with no journals is a no-op.
func (e *Engine) Recover(ctx context.Context) error {
	if upd, err := journal.ReadUpdate(e.MirrorDir); err != nil {
		return probe.NewError(err).Trace(e.MirrorDir).ToError()
	} else if upd != nil {
		if err := e.recoverUpdate(ctx, upd); err != nil {
			return probe.NewError(err).Trace(upd.RepoID, upd.Patch).ToError()
		}
		return nil
	}

	if add, err := journal.ReadAdd(e.MirrorDir); err != nil {
		return probe.NewError(err).Trace(e.MirrorDir).ToError()
	} else if add != nil {
		if err := e.recoverAdd(ctx, add); err != nil {
			return probe.NewError(err).Trace(add.Repo, add.Downloading).ToError()
		}
		return nil
	}

	return nil
}

// recoverUpdate resumes an UPDATE journal by reducing its files list to
// only the entries that are still outstanding — a fetch whose file
// already matches the expected CRC32, or a removal whose file is
// already gone, needs no further work — and then runs the same
// fetch/delete step a fresh ApplyUpdate would, before publishing and
// discarding the journal.
func (e *Engine) recoverUpdate(ctx context.Context, upd *journal.Update) error {
	reduced := map[string]journal.FileEntry{}
	for relPath, entry := range upd.Files {
		switch entry.Mode {
		case journal.ModeUpdate:
			full := joinPatchPath(upd.PatchDir, relPath)
			if entry.CRC32 == nil {
				reduced[relPath] = entry
				continue
			}
			ok, err := fileMatchesCRC32(full, *entry.CRC32)
			if err != nil {
				return err
			}
			if !ok {
				reduced[relPath] = entry
			}
		case journal.ModeRemove:
			full := joinPatchPath(upd.PatchDir, relPath)
			if _, exists, err := fileCRC32(full); err != nil {
				return err
			} else if exists {
				reduced[relPath] = entry
			}
		}
	}

	e.executeDiff(ctx, upd.PatchDir, upd.PatchURL, reduced)
	if err := removeStaleFilesJS(upd.PatchDir); err != nil {
		return err
	}

	rec, err := version.Load(e.MirrorDir, upd.RepoID)
	if err != nil {
		return err
	}
	origin := upd.PatchURL
	if rec != nil {
		origin = rec.Origin
	}
	if err := version.Upsert(e.MirrorDir, upd.RepoID, origin, upd.Patch, upd.NewHash); err != nil {
		return err
	}

	desc, err := manifest.FetchRepo(ctx, e.Transport, origin, manifest.ModeAddRepo)
	if err != nil {
		return err
	}
	if err := publish.Publish(ctx, e.Log, e.MirrorDir, upd.RepoID, e.SiteURL, e.ThpatchLocalID, desc, e.Builder); err != nil {
		return err
	}
	return journal.CleanUpdate(e.MirrorDir)
}

// recoverAdd resumes an ADD journal: the in-flight patch's persisted
// __files.js is re-verified file by file via CRC32, mismatches are
// re-queued through the ADD pool, its version hash is re-fetched and
// recorded, and then every remaining queued patch runs through the
// normal ADD sequence before publishing and discarding both journal
// files.
func (e *Engine) recoverAdd(ctx context.Context, add *journal.Add) error {
	raw, err := journal.ReadAddFiles(e.MirrorDir)
	if err != nil {
		return err
	}
	var fileMap map[string]*uint32
	if err := json.Unmarshal(raw, &fileMap); err != nil {
		return err
	}

	patchDir := e.patchDir(add.Repo, add.Downloading)
	pURL := patchURL(add.Origin, add.Downloading)
	missing := map[string]*uint32{}
	for relPath, token := range fileMap {
		if token == nil {
			continue
		}
		ok, err := fileMatchesCRC32(joinPatchPath(patchDir, relPath), *token)
		if err != nil {
			return err
		}
		if !ok {
			missing[relPath] = token
		}
	}
	e.downloadFileMap(ctx, pURL, patchDir, missing, e.AddPool)

	hash, err := manifest.FetchPatchVersion(ctx, e.Transport, pURL)
	if err != nil {
		e.Log.Errorf("version hash for %s/%s: %v", add.Repo, add.Downloading, err)
	} else if err := version.Upsert(e.MirrorDir, add.Repo, add.Origin, add.Downloading, hash); err != nil {
		return err
	}

	if err := e.drainAddQueue(ctx, add.Repo, add.Origin, add.PatchesTask); err != nil {
		return err
	}

	desc, err := manifest.FetchRepo(ctx, e.Transport, add.Origin, manifest.ModeAddRepo)
	if err != nil {
		return err
	}
	if err := publish.Publish(ctx, e.Log, e.MirrorDir, add.Repo, e.SiteURL, e.ThpatchLocalID, desc, e.Builder); err != nil {
		return err
	}
	return journal.CleanAdd(e.MirrorDir)
}
