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
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"bob/gateway"
	"bob/gateway/middleware"
	"bob/internal/obslog"
)

// quickServe assembles a single, catch-all VirtualServer around one
// handler and serves it until interrupted. It backs the config-free
// file-server, fastcgi, and reverse-proxy subcommands, the same way
// the teacher's own one-off commands build a throwaway config around a
// single directive.
func quickServe(listen string, handler gateway.Handler) error {
	log, err := obslog.Init(obslog.Config{Filter: logFilter, File: logFile})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return fmt.Errorf("invalid --listen address %q: %w", listen, err)
	}

	vs := &gateway.VirtualServer{
		Listen: []gateway.ListenerBinding{{Host: host, Port: port}},
		Chains: []*gateway.Chain{{
			Links: []*gateway.Link{{Handler: handler}},
		}},
	}
	wrappers := []gateway.Middleware{
		middleware.RequestIDMiddleware(middleware.RequestIDConfig{HeaderName: "X-Request-Id"}),
		middleware.Logger(middleware.LoggerConfig{}),
	}
	if err := vs.Assemble(wrappers); err != nil {
		return err
	}

	dispatcher, err := gateway.NewDispatcher([]*gateway.VirtualServer{vs})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("serving", zap.String("listen", listen))
	return dispatcher.Serve(ctx)
}
