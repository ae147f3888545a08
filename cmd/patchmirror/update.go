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
	"context"
	"os"
	"path/filepath"

	"github.com/minio/cli"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/config"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/console"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/probe"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/sync"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/transport"
)

var updateCmd = cli.Command{
	Name:   "update",
	Usage:  "check every mirrored patch for upstream changes and converge, non-interactively",
	Action: updateAction,
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "mirror",
			Usage: "directory to mirror into, used only the first time (cached afterward)",
		},
		cli.StringFlag{
			Name:  "log-dir",
			Usage: "directory for daily-rotating update logs",
			Value: "logs",
		},
		cli.IntFlag{
			Name:  "log-retention-days",
			Usage: "how many days of rotated logs to keep",
			Value: 7,
		},
	}, globalFlags...),
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} [FLAGS]

FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}
`,
}

func updateAction(ctx *cli.Context) error {
	scriptDir, err := os.Getwd()
	if err != nil {
		return probe.NewError(err).Trace("update").ToError()
	}

	mirrorDir, err := config.LoadMirrorDir(scriptDir, ctx.String("mirror"))
	if err != nil {
		return probe.NewError(err).Trace("update", "mirror directory").ToError()
	}

	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return probe.NewError(err).Trace("update", "config").ToError()
	}

	logDir := ctx.String("log-dir")
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(scriptDir, logDir)
	}
	file, err := console.OpenDailyRotating(logDir, ctx.Int("log-retention-days"))
	if err != nil {
		return probe.NewError(err).Trace("update", logDir).ToError()
	}
	defer file.Close()
	log := &console.Tee{Console: console.New(os.Stdout), File: file}

	client, err := transport.NewClient(sync.DefaultRateKiBps, sync.DefaultMaxRetries, "", log)
	if err != nil {
		return probe.NewError(err).Trace("update", "transport").ToError()
	}
	engine := sync.NewEngine(client, mirrorDir, cfg.SiteURL, cfg.Thpatch, newRepoBuilder(cfg, log), log)

	background := context.Background()
	if err := engine.Recover(background); err != nil {
		return probe.NewError(err).Trace("update", "recovering prior session").ToError()
	}

	if err := engine.RunUpdate(background); err != nil {
		return probe.NewError(err).Trace("update").ToError()
	}
	log.Successf("update: run complete")
	return nil
}
