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

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/minio/cli"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/config"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/console"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/manifest"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/probe"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/sync"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/transport"
)

var addCmd = cli.Command{
	Name:   "add",
	Usage:  "add a new repo or single patch to the mirror, interactively",
	Action: addAction,
	Flags:  globalFlags,
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} [FLAGS]

FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}
`,
}

func addAction(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return probe.NewError(err).Trace("add", "config").ToError()
	}

	log := console.New(os.Stdout)
	client, err := transport.NewClient(sync.DefaultRateKiBps, sync.DefaultMaxRetries, "", log)
	if err != nil {
		return probe.NewError(err).Trace("add", "transport").ToError()
	}
	// Interactive session: render a per-file progress bar. The update
	// command leaves this nil since its output goes to a log file, not a
	// terminal.
	client.Progress = transport.NewProgress()
	engine := sync.NewEngine(client, cfg.MirrorDir, cfg.SiteURL, cfg.Thpatch, newRepoBuilder(cfg, log), log)

	background := context.Background()
	if err := engine.Recover(background); err != nil {
		return probe.NewError(err).Trace("add", "recovering prior session").ToError()
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Repo or patch URL: ")
	url, _ := reader.ReadString('\n')
	url = strings.TrimSpace(url)
	if url == "" {
		return probe.NewError(fmt.Errorf("add: no URL given")).Trace("add").ToError()
	}

	mode, err := engine.Probe(background, url)
	if err != nil {
		return probe.NewError(err).Trace("add", url).ToError()
	}

	localRepoID, repoURL, desc, err := engine.ResolveRepo(background, url, mode)
	if err != nil {
		return probe.NewError(err).Trace("add", url).ToError()
	}

	var patchIDs []string
	switch mode {
	case manifest.ModeAddPatch:
		patchIDs = []string{patchIDFromURL(url)}
	case manifest.ModeAddRepo:
		patchIDs, err = promptPatchSelection(reader, desc)
		if err != nil {
			return err
		}
		if patchIDs == nil {
			log.Infof("add: cancelled")
			return nil
		}
	}

	if len(patchIDs) == 0 {
		log.Warningf("add: no patches selected")
		return nil
	}

	if err := engine.AddPatches(background, localRepoID, repoURL, desc, patchIDs); err != nil {
		return probe.NewError(err).Trace("add", localRepoID).ToError()
	}

	if mode == manifest.ModeAddPatch && len(patchIDs) == 1 {
		fmt.Printf("Treat %s as a one-time patch (stop polling it for updates)? [y/N]: ", patchIDs[0])
		answer, _ := reader.ReadString('\n')
		if strings.EqualFold(strings.TrimSpace(answer), "y") {
			if err := engine.RemoveFromVersionStore(localRepoID, patchIDs[0]); err != nil {
				return probe.NewError(err).Trace("add", localRepoID, patchIDs[0]).ToError()
			}
		}
	}

	log.Successf("add: %s is now mirrored", localRepoID)
	return nil
}

// patchIDFromURL returns the last non-empty path segment of a
// slash-terminated patch URL, its upstream patch id.
func patchIDFromURL(u string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(u), "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// promptPatchSelection lists desc's patches, prompts for a selection, and
// returns the chosen patch ids: all of them in listing order for a blank
// answer, otherwise in the order the numbers were typed. A nil, nil
// return means the user cancelled.
func promptPatchSelection(reader *bufio.Reader, desc *manifest.RepoDescriptor) ([]string, error) {
	ids := make([]string, 0, len(desc.Patches))
	for id := range desc.Patches {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("Repo %q (%s) offers %d patch(es):\n", desc.Title, desc.ID, len(ids))
	for i, id := range ids {
		fmt.Printf("  %2d) %s - %s\n", i+1, id, desc.Patches[id])
	}
	fmt.Print("Which patches? (blank = all, comma/space separated numbers, c = cancel): ")

	raw, _ := reader.ReadString('\n')
	sel, invalid := ParseSelection(raw, len(ids))
	for _, tok := range invalid {
		fmt.Fprintf(os.Stderr, "ignoring invalid selection %q\n", tok)
	}

	switch sel.Kind {
	case SelectionCancel:
		return nil, nil
	case SelectionAll:
		return ids, nil
	default:
		chosen := make([]string, 0, len(sel.Indices))
		for _, idx := range sel.Indices {
			chosen = append(chosen, ids[idx])
		}
		return chosen, nil
	}
}
