/*
Copyright 2024 The WeaveCore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command weaved is the device daemon: it loads a device's persistent
// store and configuration, then runs the reliable tunnel(s) to its
// service, the fabric heartbeat, and the software-update and
// certificate-provisioning clients until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	weavecore "github.com/weaveio/weavecore"
	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/store"
)

func main() {
	configPath := flag.String("config", weavecore.DefaultConfigPath, "path to weaved's YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, trace.DebugReport(err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return trace.Wrap(err)
	}

	log := newLogger(cfg.LogLevel)

	kv, err := openStore(cfg)
	if err != nil {
		return trace.Wrap(err, "opening persistent store")
	}

	eng := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{
			LocalNodeID: exchange.NodeID(cfg.NodeID),
			Log: log.WithField(trace.Component, weavecore.ComponentExchange),
		})

	d, err := NewDaemon(cfg, eng, kv, log, clockwork.NewRealClock())
	if err != nil {
		_ = kv.Close()
		return trace.Wrap(err, "wiring daemon")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("exchange engine exited")
		}
	}()

	log.WithField("node_id", cfg.NodeID).Info("weaved starting")
	return d.Run(ctx)
}

func openStore(cfg Config) (store.Store, error) {
	if cfg.DataDir == "" {
		return store.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, trace.Wrap(err)
	}
	return store.OpenBoltStore(cfg.DataDir + "/weaved.db")
}

func newLogger(level string) logrus.FieldLogger {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l.WithField(trace.Component, weavecore.ComponentDaemon)
}
