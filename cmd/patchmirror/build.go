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
	"fmt"
	"os/exec"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/config"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/console"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/publish"
)

// logOnlyBuilder backs publish.RepoBuilder when no external repo_build
// command is configured: Publish has already written repo.js itself, so
// there is nothing left to regenerate and this is a logging no-op.
type logOnlyBuilder struct {
	Log console.Logger
}

func (b logOnlyBuilder) Build(ctx context.Context, srcDir, dstDir string) error {
	b.Log.Debugf("build: %s -> %s (no repo_build command configured)", srcDir, dstDir)
	return nil
}

// newRepoBuilder selects the repo_build implementation: a configured
// repo_build_cmd shells out to it with (srcDir, dstDir) arguments,
// otherwise the mirror falls back to the logging no-op.
func newRepoBuilder(cfg *config.Config, log console.Logger) publish.RepoBuilder {
	if cfg.RepoBuildCmd == "" {
		return logOnlyBuilder{Log: log}
	}
	return publish.ShellRepoBuilder{
		Command: cfg.RepoBuildCmd,
		Run:     runRepoBuildCmd,
	}
}

// runRepoBuildCmd resolves command on PATH and runs it with
// (srcDir, dstDir) arguments, the opaque repo_build contract.
func runRepoBuildCmd(ctx context.Context, command, srcDir, dstDir string) error {
	resolved, err := exec.LookPath(command)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, resolved, srcDir, dstDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("repo_build %s %s %s: %w: %s", command, srcDir, dstDir, err, out)
	}
	return nil
}
