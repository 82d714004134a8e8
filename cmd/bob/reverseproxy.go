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
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"bob/gateway/handlers"
)

var reverseProxyFlags struct {
	to         string
	listen     string
	verifySSL  bool
	changeHost bool
	timeout    time.Duration
}

var reverseProxyCmd = &cobra.Command{
	Use:   "reverse-proxy",
	Short: "Reverse proxy to a single upstream, without a config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := url.Parse(reverseProxyFlags.to)
		if err != nil {
			return fmt.Errorf("invalid --to URL %q: %w", reverseProxyFlags.to, err)
		}
		h := &handlers.Proxy{
			Resolve:    target,
			Timeout:    reverseProxyFlags.timeout,
			VerifySSL:  reverseProxyFlags.verifySSL,
			ChangeHost: reverseProxyFlags.changeHost,
		}
		return quickServe(reverseProxyFlags.listen, h)
	},
}

func init() {
	rootCmd.AddCommand(reverseProxyCmd)
	reverseProxyCmd.Flags().StringVar(&reverseProxyFlags.to, "to", "", "upstream URL to proxy to")
	reverseProxyCmd.Flags().StringVar(&reverseProxyFlags.listen, "listen", ":8080", "address to listen on")
	reverseProxyCmd.Flags().BoolVar(&reverseProxyFlags.verifySSL, "verify-ssl", true, "verify the upstream's TLS certificate")
	reverseProxyCmd.Flags().BoolVar(&reverseProxyFlags.changeHost, "change-host", false, "rewrite the Host header to the upstream's")
	reverseProxyCmd.Flags().DurationVar(&reverseProxyFlags.timeout, "timeout", 30*time.Second, "upstream round-trip timeout")
	reverseProxyCmd.MarkFlagRequired("to")
}
