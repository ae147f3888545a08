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
	"fmt"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/manifest"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/probe"
)

// Probe classifies url as a repo root or a single patch: <url>/ must
// respond 200, or it fails as not accessible; then a 200 from
// <url>/repo.js selects repo mode, else a 200 from <url>/files.js
// selects patch mode, else it fails with "invalid URL". This is the
// gate into the ADD state machine. Every fault leaving this function
// carries a probe trace so the CLI can log it in full.
func (e *Engine) Probe(ctx context.Context, url string) (manifest.Mode, error) {
	base := ensureTrailingSlash(url)

	ok, err := e.Transport.Probe(ctx, base)
	if err != nil {
		return 0, probe.NewError(err).Trace(base).ToError()
	}
	if !ok {
		return 0, probe.NewError(fmt.Errorf("sync: %s is not accessible", base)).Trace(base).ToError()
	}

	if ok, err := e.Transport.Probe(ctx, base+"repo.js"); err != nil {
		return 0, probe.NewError(err).Trace(base).ToError()
	} else if ok {
		return manifest.ModeAddRepo, nil
	}

	if ok, err := e.Transport.Probe(ctx, base+"files.js"); err != nil {
		return 0, probe.NewError(err).Trace(base).ToError()
	} else if ok {
		return manifest.ModeAddPatch, nil
	}

	return 0, probe.NewError(fmt.Errorf("sync: invalid URL %s (neither repo.js nor files.js found)", base)).Trace(base).ToError()
}

// ResolveRepo fetches the repo descriptor for url under mode and
// derives the repo URL and local repo id (thpatch-remapped) a caller
// needs to start an ADD session.
func (e *Engine) ResolveRepo(ctx context.Context, url string, mode manifest.Mode) (localRepoID, repoURL string, desc *manifest.RepoDescriptor, err error) {
	desc, err = manifest.FetchRepo(ctx, e.Transport, url, mode)
	if err != nil {
		return "", "", nil, probe.NewError(err).Trace(url).ToError()
	}
	switch mode {
	case manifest.ModeAddRepo:
		repoURL = ensureTrailingSlash(url)
	case manifest.ModeAddPatch:
		repoURL = parentDir(ensureTrailingSlash(url))
	default:
		return "", "", nil, probe.NewError(fmt.Errorf("sync: invalid mode %d", mode)).Trace(url).ToError()
	}
	return e.localRepoID(desc.ID), repoURL, desc, nil
}

// parentDir strips the last path segment off a slash-terminated URL.
func parentDir(u string) string {
	trimmed := u[:len(u)-1]
	idx := -1
	for i := len(trimmed) - 1; i >= 0; i-- {
		if trimmed[i] == '/' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return u
	}
	return trimmed[:idx+1]
}
