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

// Command patchmirror is the CLI: an interactive "add" to start
// mirroring a repo or single patch, and a non-interactive "update" meant
// to run from cron/a scheduler.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/cli"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/console"
)

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Usage: "path to config.json",
		Value: "config.json",
	},
}

var helpTemplate = `NAME:
  {{.Name}} - {{.Usage}}

USAGE:
  {{.Name}} {{if .VisibleFlags}}[FLAGS] {{end}}COMMAND{{if .VisibleFlags}} [COMMAND FLAGS | -h]{{end}} [ARGUMENTS...]

COMMANDS:
  {{range .VisibleCommands}}{{join .Names ", "}}{{ "\t" }}{{.Usage}}
  {{end}}{{if .VisibleFlags}}
GLOBAL FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}{{end}}
`

var appCmds = []cli.Command{
	addCmd,
	updateCmd,
}

func registerApp(name string) *cli.App {
	cli.HelpFlag = cli.BoolFlag{
		Name:  "help, h",
		Usage: "show help",
	}

	app := cli.NewApp()
	app.Name = name
	app.Usage = "mirror and republish thcrap-style patch repositories"
	app.Commands = appCmds
	app.Flags = globalFlags
	app.CustomAppHelpTemplate = helpTemplate
	app.HideHelpCommand = true
	app.CommandNotFound = func(ctx *cli.Context, command string) {
		fmt.Fprintf(os.Stderr, "%q is not a %s command. See '%s --help'.\n", command, ctx.App.Name, ctx.App.Name)
	}
	return app
}

func main() {
	appName := filepath.Base(os.Args[0])
	log := console.New(os.Stderr)
	fatalIf(log, registerApp(appName).Run(os.Args), appName)
}
