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
	"os"
	"time"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v2"

	"github.com/weaveio/weavecore/lib/certprov"
)

// Config is weaved's on-disk YAML configuration.
type Config struct {
	// DataDir holds the bbolt-backed persistent store file. Empty means
	// run with an in-memory store (used for --dev/testing).
	DataDir string `yaml:"data_dir,omitempty"`

	NodeID uint64 `yaml:"node_id"`
	LogLevel string `yaml:"log_level,omitempty"`
	ServiceID string `yaml:"service_id,omitempty"`

	Tunnel TunnelConfig `yaml:"tunnel"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat,omitempty"`
	SWUpdate SWUpdateConfig `yaml:"software_update,omitempty"`
	CertProv CertProvConfig `yaml:"cert_provisioning,omitempty"`
}

// TunnelConfig configures the primary (and optional backup) reliable
// tunnel to the service.
type TunnelConfig struct {
	PeerNodeID uint64 `yaml:"peer_node_id"`
	PrimaryAddr string `yaml:"primary_addr"`
	BackupAddr string `yaml:"backup_addr,omitempty"`

	LivenessInterval time.Duration `yaml:"liveness_interval,omitempty"`
	ReconnectThreshold int `yaml:"reconnect_threshold,omitempty"`
}

// HeartbeatConfig configures the fabric liveness announcement.
type HeartbeatConfig struct {
	Enabled bool `yaml:"enabled"`
	Interval time.Duration `yaml:"interval,omitempty"`
}

// SWUpdateConfig configures the software-update query client.
type SWUpdateConfig struct {
	Enabled bool `yaml:"enabled"`
	VendorID uint16 `yaml:"vendor_id,omitempty"`
	ProductID uint16 `yaml:"product_id,omitempty"`
	ProductRevision uint16 `yaml:"product_revision,omitempty"`
	CurrentVersion string `yaml:"current_version,omitempty"`
}

// CertProvConfig configures the certificate-provisioning client.
type CertProvConfig struct {
	Enabled bool `yaml:"enabled"`
	ReqType uint8 `yaml:"req_type,omitempty"`
}

func (c *Config) checkAndSetDefaults() error {
	if c.NodeID == 0 {
		return trace.BadParameter("weaved: node_id is required")
	}
	if c.Tunnel.PrimaryAddr == "" {
		return trace.BadParameter("weaved: tunnel.primary_addr is required")
	}
	if c.Tunnel.PeerNodeID == 0 {
		return trace.BadParameter("weaved: tunnel.peer_node_id is required")
	}
	if c.Tunnel.ReconnectThreshold <= 0 {
		c.Tunnel.ReconnectThreshold = 3
	}
	if c.Heartbeat.Interval <= 0 {
		c.Heartbeat.Interval = time.Minute
	}
	if c.CertProv.ReqType == 0 {
		c.CertProv.ReqType = certprov.ReqTypeGetInitialOpDeviceCert
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

// LoadConfig reads and validates a Config from path.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, trace.Wrap(err, "reading config file %v", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, trace.Wrap(err, "parsing config file %v", path)
	}
	if err := cfg.checkAndSetDefaults(); err != nil {
		return cfg, trace.Wrap(err)
	}
	return cfg, nil
}
