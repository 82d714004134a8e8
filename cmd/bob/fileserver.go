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
	"github.com/spf13/cobra"

	"bob/gateway/handlers"
)

var fileServerFlags struct {
	root   string
	listen string
	browse bool
}

var fileServerCmd = &cobra.Command{
	Use:   "file-server",
	Short: "Serve static files from a directory, without a config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		h := handlers.File{
			Root:       fileServerFlags.root,
			IndexFiles: []string{"index.html"},
			// --browse maps to ListDir: shown only when no index
			// document is present in the requested directory.
			ListDir: fileServerFlags.browse,
		}
		return quickServe(fileServerFlags.listen, h)
	},
}

func init() {
	rootCmd.AddCommand(fileServerCmd)
	fileServerCmd.Flags().StringVar(&fileServerFlags.root, "root", ".", "directory to serve")
	fileServerCmd.Flags().StringVar(&fileServerFlags.listen, "listen", ":8080", "address to listen on")
	// --browse shows a directory listing when no index.html is present,
	// matching the observable meaning of Caddy's identically named flag.
	fileServerCmd.Flags().BoolVar(&fileServerFlags.browse, "browse", false, "enable directory listings")
}
