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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	logFilter string
	logFile   string
)

var rootCmd = &cobra.Command{
	Use:   "bob",
	Short: "bob is a reverse proxy and web server",
	Long: `bob proxies and serves HTTP traffic from a YAML-configured set of
virtual servers: static files, FastCGI applications, and reverse-proxied
upstreams, behind a shared pipeline of authentication, rate limiting,
rewriting, and request-scanning middleware.

	bob run --config bob.yaml

Some subcommands assemble a minimal server from flags alone, without a
config file, for quick ad hoc use:

	bob file-server --root ./public --listen :8080
	bob reverse-proxy --to http://127.0.0.1:9000 --listen :8080
	bob fastcgi --connect tcp://127.0.0.1:9000 --root ./public --listen :8080`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFilter, "log", "", "log filter string, e.g. \"info,sanitizer=warn\" (overridden by BOB_LOG)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this rotated file instead of stderr")
}
