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

package main

import (
	"context"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/weaveio/weavecore/lib/certprov"
	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/heartbeat"
	"github.com/weaveio/weavecore/lib/store"
	"github.com/weaveio/weavecore/lib/swupdate"
	"github.com/weaveio/weavecore/lib/tunnel"
)

// Daemon bundles the long-running components a device runs: the
// reliable tunnel(s) to the service, fabric heartbeat, and the
// software-update and certificate-provisioning clients, all driven off
// a single exchange.Engine. Mirrors lib/service.TeleportProcess's role
// of owning and starting every subsystem from one Config.
type Daemon struct {
	cfg Config
	log logrus.FieldLogger
	clock clockwork.Clock

	store store.Store
	engine exchange.Engine

	primary *tunnel.ConnMgr
	backup *tunnel.ConnMgr
	heartbeat *heartbeat.Sender
	swupdate *swupdate.Client
	certprov *certprov.Client
	opAuth *deviceOpAuth
}

// NewDaemon wires a Daemon from cfg. engine is injected rather than
// constructed here: lib/exchange ships only the in-process Engine
// implementation (see lib/exchange's package doc) used to test the
// other components, so a real deployment supplies whatever
// network-backed Engine it builds against that same interface; main.go
// wires the in-process engine for local/demo operation.
func NewDaemon(cfg Config, eng exchange.Engine, kv store.Store, log logrus.FieldLogger, clock clockwork.Clock) (*Daemon, error) {
	d := &Daemon{cfg: cfg, log: log, clock: clock, store: kv, engine: eng}

	sshClientCfg, err := buildSSHClientConfig(kv)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	primaryDialer, err := tunnel.NewSSHDialer(tunnel.SSHDialerConfig{
			Addr: cfg.Tunnel.PrimaryAddr,
			ClientConfig: sshClientCfg,
			Log: log.WithField(trace.Component, "tunnel:primary"),
		})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	d.primary, err = tunnel.NewConnMgr(tunnel.Config{
			Classification: tunnel.ClassificationPrimary,
			Dialer: primaryDialer,
			Engine: eng,
			PeerNodeID: exchange.NodeID(cfg.Tunnel.PeerNodeID),
			ResolveBinding: resolveBindingImmediately,
			LivenessInterval: cfg.Tunnel.LivenessInterval,
			ReconnectThreshold: cfg.Tunnel.ReconnectThreshold,
			Clock: clock,
			Log: log.WithField(trace.Component, "tunnel:primary"),
		})
	if err != nil {
		return nil, trace.Wrap(err, "configuring primary tunnel")
	}

	if cfg.Tunnel.BackupAddr != "" {
		backupDialer, err := tunnel.NewSSHDialer(tunnel.SSHDialerConfig{
				Addr: cfg.Tunnel.BackupAddr,
				ClientConfig: sshClientCfg,
				Log: log.WithField(trace.Component, "tunnel:backup"),
			})
		if err != nil {
			return nil, trace.Wrap(err)
		}
		d.backup, err = tunnel.NewConnMgr(tunnel.Config{
				Classification: tunnel.ClassificationBackup,
				Dialer: backupDialer,
				Engine: eng,
				PeerNodeID: exchange.NodeID(cfg.Tunnel.PeerNodeID),
				ResolveBinding: resolveBindingImmediately,
				ReconnectThreshold: cfg.Tunnel.ReconnectThreshold,
				Clock: clock,
				Log: log.WithField(trace.Component, "tunnel:backup"),
			})
		if err != nil {
			return nil, trace.Wrap(err, "configuring backup tunnel")
		}
	}

	if cfg.Heartbeat.Enabled {
		d.heartbeat, err = heartbeat.NewSender(heartbeat.SenderConfig{
				Engine: eng,
				PeerNodeID: exchange.NodeID(cfg.Tunnel.PeerNodeID),
				ResolveBinding: resolveBindingImmediately,
				Interval: cfg.Heartbeat.Interval,
				Clock: clock,
				Log: log.WithField(trace.Component, "heartbeat"),
			})
		if err != nil {
			return nil, trace.Wrap(err, "configuring heartbeat sender")
		}
	}

	if cfg.SWUpdate.Enabled {
		d.swupdate, err = swupdate.NewClient(swupdate.ClientConfig{
				Engine: eng,
				PeerNodeID: exchange.NodeID(cfg.Tunnel.PeerNodeID),
				ResolveBinding: resolveBindingImmediately,
				OnUpdateAvailable: func(resp swupdate.ImageQueryResponse) {
					log.WithField("uri", resp.URI).Info("software update available")
				},
				OnNoUpdateAvailable: func() {
					log.Debug("no software update available")
				},
				OnQueryError: func(err error) {
					log.WithError(err).Warn("software update query failed")
				},
				Clock: clock,
				Log: log.WithField(trace.Component, "swupdate"),
			})
		if err != nil {
			return nil, trace.Wrap(err, "configuring software-update client")
		}
	}

	if cfg.CertProv.Enabled {
		d.opAuth, err = newDeviceOpAuth(kv)
		if err != nil {
			return nil, trace.Wrap(err, "loading operational identity")
		}
		d.certprov, err = certprov.NewClient(certprov.ClientConfig{
				Engine: eng,
				PeerNodeID: exchange.NodeID(cfg.Tunnel.PeerNodeID),
				ResolveBinding: resolveBindingImmediately,
				OnCertReplaced: func(replaced bool) {
					log.WithField("replaced", replaced).Info("certificate provisioning complete")
				},
				OnFailed: func(err error) {
					log.WithError(err).Error("certificate provisioning failed")
				},
				Clock: clock,
				Log: log.WithField(trace.Component, "certprov"),
			})
		if err != nil {
			return nil, trace.Wrap(err, "configuring certificate-provisioning client")
		}
	}

	return d, nil
}

// resolveBindingImmediately is the security-handshake stand-in used
// when no CASE session-establishment implementation is wired in; it
// treats every binding as immediately ready, matching the other
// packages' test fixtures.
func resolveBindingImmediately(b *exchange.Binding) {
	b.Resolve(exchange.BindingReady, nil)
}

// Run starts every enabled subsystem and blocks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.primary.TryConnectingNow(); err != nil {
		d.log.WithError(err).Warn("initial primary tunnel connection failed; reconnect loop will retry")
	}
	if d.backup != nil {
		if err := d.backup.TryConnectingNow(); err != nil {
			d.log.WithError(err).Warn("initial backup tunnel connection failed; reconnect loop will retry")
		}
	}
	if d.heartbeat != nil {
		go func() {
			if err := d.heartbeat.Run(ctx); err != nil && ctx.Err() == nil {
				d.log.WithError(err).Error("heartbeat sender exited")
			}
		}()
	}

	if d.certprov != nil {
		if err := d.certprov.RequestCertificate(certprov.RequestParams{
				ReqType: d.cfg.CertProv.ReqType,
				OpAuth: d.opAuth,
			}); err != nil {
			d.log.WithError(err).Warn("certificate provisioning request failed to send")
		}
	}

	if d.swupdate != nil {
		if err := d.swupdate.Query(swupdate.ImageQuery{
				Product: swupdate.ProductSpec{
					VendorID: d.cfg.SWUpdate.VendorID,
					ProductID: d.cfg.SWUpdate.ProductID,
					ProductRevision: d.cfg.SWUpdate.ProductRevision,
				},
				Version: d.cfg.SWUpdate.CurrentVersion,
				IntegrityTypes: []uint8{swupdate.IntegrityTypeSHA256},
				UpdateSchemes: []uint8{swupdate.UpdateSchemeBDX},
			}); err != nil {
			d.log.WithError(err).Warn("software update query failed to send")
		}
	}

	<-ctx.Done()
	d.Close()
	return nil
}

// Close releases every subsystem's resources.
func (d *Daemon) Close() {
	d.primary.Close()
	if d.backup != nil {
		d.backup.Close()
	}
	if err := d.store.Close(); err != nil {
		d.log.WithError(err).Warn("error closing persistent store")
	}
}
