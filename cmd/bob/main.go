// Copyright 2015 Light Code Labs, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command bob is a reverse-proxy and general-purpose web server. Most
// of its behavior is driven by a YAML configuration document; a few
// subcommands assemble a minimal one-shot configuration directly from
// flags for quick, config-file-free use.
package main

import (
	"log"

	"github.com/KimMachineGun/automemlimit/memlimit"
	_ "go.uber.org/automaxprocs"
)

func main() {
	// Match the container's memory quota (or system memory, if
	// uncontained) the same way automaxprocs above matches the CPU
	// quota. Logging isn't set up yet at this point, so failures are
	// only worth a line on stderr, not a fatal exit.
	if _, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithProvider(
			memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem),
		),
	); err != nil {
		log.Printf("automemlimit: %v", err)
	}

	Execute()
}
