// Copyright 2023 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tool runs the external programs the caller depends on (BLAST+,
// ARIBA, NCBI datasets, SRA toolkit) and checks that they are installed.
package tool

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"v.io/x/lib/lookpath"
)

// Paths names the executables. A bare name is resolved through $PATH.
type Paths struct {
	MakeBlastDB string
	Blastn      string
	Ariba       string
	Datasets    string
	FasterqDump string
}

// DefaultPaths expects every tool on $PATH.
var DefaultPaths = Paths{
	MakeBlastDB: "makeblastdb",
	Blastn:      "blastn",
	Ariba:       "ariba",
	Datasets:    "datasets",
	FasterqDump: "fasterq-dump",
}

// WithBlastDir returns a copy of p whose BLAST+ executables live in dir.
func (p Paths) WithBlastDir(dir string) Paths {
	if dir == "" {
		return p
	}
	p.MakeBlastDB = filepath.Join(dir, "makeblastdb")
	p.Blastn = filepath.Join(dir, "blastn")
	return p
}

// Runner runs an external program to completion. Implementations must be safe
// for concurrent use.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// Exec is a Runner backed by os/exec. The program's combined output is
// captured and attached to the error when the program fails.
type Exec struct{}

// maxOutput bounds how much of a failing program's output ends up in the
// error.
const maxOutput = 4096

// Run implements Runner.
func (Exec) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	log.Debug.Printf("exec: %s", strings.Join(cmd.Args, " "))
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if len(out) > maxOutput {
		out = out[len(out)-maxOutput:]
	}
	return errors.E(err, fmt.Sprintf("%s %s", filepath.Base(name), strings.Join(args, " ")),
		strings.TrimSpace(string(out)))
}

// Status is the result of looking up one executable.
type Status struct {
	Name string
	// Path is the resolved location; empty when Err is set.
	Path string
	Err  error
}

// Check resolves every executable in p, in a fixed order.
func Check(p Paths) []Status {
	env := map[string]string{"PATH": os.Getenv("PATH")}
	var statuses []Status
	for _, name := range []string{p.MakeBlastDB, p.Blastn, p.Ariba, p.Datasets, p.FasterqDump} {
		s := Status{Name: name}
		s.Path, s.Err = look(env, name)
		statuses = append(statuses, s)
	}
	return statuses
}

func look(env map[string]string, name string) (string, error) {
	if !strings.ContainsRune(name, filepath.Separator) {
		return lookpath.Look(env, name)
	}
	info, err := os.Stat(name)
	if err != nil {
		return "", err
	}
	if info.IsDir() || info.Mode()&0111 == 0 {
		return "", errors.E(errors.NotAllowed, name, "is not executable")
	}
	return name, nil
}
