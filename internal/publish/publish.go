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

// Package publish writes a mirrored repo's served repo.js, invokes the
// external repo_build step, and cross-links mirrored repos into the
// primary repo's neighbors list. Removing the stale local files.js is
// done by the sync engine before it calls Publish.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/console"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/manifest"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/probe"
)

// RepoBuilder is the seam for the repo_build step: it regenerates a
// mirrored repo's served repo.js/files.js from the on-disk tree.
type RepoBuilder interface {
	Build(ctx context.Context, srcDir, dstDir string) error
}

// primaryUpstreamID is the upstream id that marks the primary repo.
const primaryUpstreamID = "thpatch"

// requiredRepoKeys are the keys validated before cross-linking into the
// primary repo's repo.js.
var requiredRepoKeys = []string{"contact", "id", "patches", "servers", "title"}

// Publish regenerates a repo's served manifest and, unless it is the
// primary repo itself, links it into the primary repo's neighbors.
// localRepoID is the on-disk directory name for the repo just synced
// (already thpatch-remapped by the sync engine if applicable); upstream
// is the repo descriptor fetched during ADD/UPDATE; thpatchLocalID is
// the configured local folder name for the primary repo.
func Publish(ctx context.Context, log console.Logger, mirrorDir, localRepoID, siteURL, thpatchLocalID string, upstream *manifest.RepoDescriptor, build RepoBuilder) error {
	repoDir := filepath.Join(mirrorDir, localRepoID)
	mirrorRepoURL := mirrorRepoURL(siteURL, localRepoID)

	if upstream.ID == primaryUpstreamID {
		// Primary repo: republish the upstream repo.js verbatim under
		// the remapped local id, no field rewrite.
		if err := build.Build(ctx, repoDir, repoDir); err != nil {
			return probe.NewError(err).Trace(repoDir).ToError()
		}
	} else {
		rewritten := *upstream
		rewritten.Servers = []string{mirrorRepoURL}
		if err := writeRepoJS(repoDir, &rewritten); err != nil {
			return probe.NewError(err).Trace(repoDir).ToError()
		}
		if err := build.Build(ctx, repoDir, repoDir); err != nil {
			return probe.NewError(err).Trace(repoDir).ToError()
		}
	}

	if localRepoID == thpatchLocalID {
		return nil
	}
	if err := crossLink(log, mirrorDir, thpatchLocalID, mirrorRepoURL); err != nil {
		return probe.NewError(err).Trace(mirrorDir).ToError()
	}
	return nil
}

func mirrorRepoURL(siteURL, localRepoID string) string {
	return ensureTrailingSlash(ensureTrailingSlash(siteURL) + localRepoID)
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func writeRepoJS(repoDir string, desc *manifest.RepoDescriptor) error {
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(repoDir, "repo.js"), data, 0o644)
}

// crossLink inserts mirrorRepoURL into the primary repo's repo.js
// neighbors list exactly once. Missing required keys or a
// not-yet-established primary repo are warned and skipped, never
// fatal.
func crossLink(log console.Logger, mirrorDir, thpatchLocalID, mirrorRepoURL string) error {
	primaryPath := filepath.Join(mirrorDir, thpatchLocalID, "repo.js")
	raw, err := os.ReadFile(primaryPath)
	if os.IsNotExist(err) {
		log.Warningf("cross-link: %s has not been established yet, skipping", primaryPath)
		return nil
	}
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(raw) {
		log.Warningf("cross-link: %s is not valid JSON, skipping", primaryPath)
		return nil
	}
	parsed := gjson.ParseBytes(raw)
	for _, key := range requiredRepoKeys {
		if !parsed.Get(key).Exists() {
			log.Warningf("cross-link: %s is missing required key %q, skipping", primaryPath, key)
			return nil
		}
	}

	neighbors := parsed.Get("neighbors")
	var list []string
	if neighbors.Exists() {
		for _, v := range neighbors.Array() {
			list = append(list, v.String())
		}
	}
	for _, existing := range list {
		if existing == mirrorRepoURL {
			// Already linked: nothing to do.
			return nil
		}
	}
	list = append(list, mirrorRepoURL)

	updated, err := sjson.SetBytes(raw, "neighbors", list)
	if err != nil {
		return err
	}
	if err := os.WriteFile(primaryPath, updated, 0o644); err != nil {
		return err
	}
	log.Successf("added neighbor %s to %s", mirrorRepoURL, thpatchLocalID)
	return nil
}

// ShellRepoBuilder shells out to an external repo_build executable,
// e.g. the site's own Node/Python manifest generator, invoked as an
// opaque step.
type ShellRepoBuilder struct {
	Command string // path to the repo_build executable
	Run     func(ctx context.Context, command, srcDir, dstDir string) error
}

// Build invokes the configured command with (srcDir, dstDir) arguments.
func (b ShellRepoBuilder) Build(ctx context.Context, srcDir, dstDir string) error {
	if b.Run == nil {
		return probe.NewError(fmt.Errorf("publish: no repo_build runner configured")).Trace(b.Command).ToError()
	}
	if err := b.Run(ctx, b.Command, srcDir, dstDir); err != nil {
		return probe.NewError(err).Trace(b.Command, srcDir, dstDir).ToError()
	}
	return nil
}
