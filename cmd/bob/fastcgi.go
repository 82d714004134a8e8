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

	"github.com/spf13/cobra"

	"bob/gateway/handlers/fastcgi"
)

var fastcgiFlags struct {
	connect string
	root    string
	listen  string
}

var fastcgiCmd = &cobra.Command{
	Use:   "fastcgi",
	Short: "Bridge requests to a FastCGI application, without a config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := fastcgi.NewHandler(fastcgiFlags.connect, fastcgiFlags.root, []string{"index.php"})
		if err != nil {
			return fmt.Errorf("building fastcgi handler: %w", err)
		}
		return quickServe(fastcgiFlags.listen, h)
	},
}

func init() {
	rootCmd.AddCommand(fastcgiCmd)
	fastcgiCmd.Flags().StringVar(&fastcgiFlags.connect, "connect", "tcp://127.0.0.1:9000", "FastCGI backend address (tcp://host:port or unix:///path)")
	fastcgiCmd.Flags().StringVar(&fastcgiFlags.root, "root", ".", "document root the FastCGI application resolves scripts against")
	fastcgiCmd.Flags().StringVar(&fastcgiFlags.listen, "listen", ":8080", "address to listen on")
	fastcgiCmd.MarkFlagRequired("connect")
}
