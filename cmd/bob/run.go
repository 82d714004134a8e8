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
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bob/config"
	"bob/gateway"
	"bob/internal/obslog"
	"bob/internal/obsmetrics"
)

var runFlags struct {
	configPath    string
	metricsListen string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start bob from a YAML configuration file",
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runFlags.configPath, "config", "c", "bob.yaml", "path to the YAML configuration document")
	runCmd.Flags().StringVar(&runFlags.metricsListen, "metrics-listen", "", "address to expose /metrics on (disabled if empty)")
}

func runServer(cmd *cobra.Command, args []string) error {
	log, err := obslog.Init(obslog.Config{Filter: logFilter, File: logFile})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	serverConfigs, err := config.Load(runFlags.configPath)
	if err != nil {
		return err
	}

	servers, err := config.Assemble(serverConfigs, nil)
	if err != nil {
		return fmt.Errorf("assembling configuration: %w", err)
	}

	dispatcher, err := gateway.NewDispatcher(servers)
	if err != nil {
		return fmt.Errorf("building dispatcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runFlags.metricsListen != "" {
		metricsSrv := &http.Server{Addr: runFlags.metricsListen, Handler: obsmetrics.Handler()}
		go func() {
			log.Info("serving metrics", zap.String("address", runFlags.metricsListen))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics listener failed", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			metricsSrv.Close()
		}()
	}

	log.Info("starting", zap.Int("servers", len(servers)))
	return dispatcher.Serve(ctx)
}
