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

// Package sync implements the ADD and UPDATE state machines plus the
// recovery path: the core of the mirror.
package sync

import (
	"path/filepath"
	"strings"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/console"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/probe"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/publish"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/transport"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/version"
)

// Recommended pool sizes.
const (
	AddPoolSize    = 10
	UpdatePoolSize = 5
)

// Default per-file transfer parameters.
const (
	DefaultRateKiBps  = 1024
	DefaultMaxRetries = 5
)

// Engine coordinates Transport, the manifest client, and the version
// store, and is the sole writer of the version store and journals.
type Engine struct {
	Transport *transport.Client

	AddPool    *transport.Pool
	UpdatePool *transport.Pool

	MirrorDir      string
	SiteURL        string
	ThpatchLocalID string

	Builder publish.RepoBuilder
	Log     console.Logger
}

// NewEngine wires up an Engine with the recommended pool sizes.
func NewEngine(t *transport.Client, mirrorDir, siteURL, thpatchLocalID string, builder publish.RepoBuilder, log console.Logger) *Engine {
	if log == nil {
		log = console.Discard
	}
	return &Engine{
		Transport:      t,
		AddPool:        transport.NewPool(AddPoolSize),
		UpdatePool:     transport.NewPool(UpdatePoolSize),
		MirrorDir:      mirrorDir,
		SiteURL:        siteURL,
		ThpatchLocalID: thpatchLocalID,
		Builder:        builder,
		Log:            log,
	}
}

// localRepoID maps an upstream repo id to its on-disk directory name:
// the primary repo (upstream id "thpatch") is remapped to the
// configured local folder name; every other id is used verbatim.
func (e *Engine) localRepoID(upstreamID string) string {
	if upstreamID == "thpatch" {
		return e.ThpatchLocalID
	}
	return upstreamID
}

func (e *Engine) repoDir(localRepoID string) string {
	return filepath.Join(e.MirrorDir, localRepoID)
}

func (e *Engine) patchDir(localRepoID, patchID string) string {
	return filepath.Join(e.MirrorDir, localRepoID, patchID)
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func patchURL(repoURL, patchID string) string {
	return ensureTrailingSlash(ensureTrailingSlash(repoURL) + patchID)
}

// RemoveFromVersionStore drops patchID from repoID's version record
// without touching the mirrored files on disk: the patch stays mirrored
// but is no longer polled by update, the "one-time patch" behavior the
// add CLI offers after a successful add.
func (e *Engine) RemoveFromVersionStore(repoID, patchID string) error {
	if err := version.Remove(e.MirrorDir, repoID, patchID); err != nil {
		return probe.NewError(err).Trace(repoID, patchID).ToError()
	}
	return nil
}
