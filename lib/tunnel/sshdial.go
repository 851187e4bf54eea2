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

package tunnel

import (
	"net"
	"time"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// SSHDialerConfig configures an SSHDialer.
type SSHDialerConfig struct {
	// Addr is the service peer's host:port.
	Addr string
	// ClientConfig carries the device's client identity (host key
	// callback, auth methods); callers build this from their own key
	// material, mirroring TunnelAuthDialerConfig.ClientConfig.
	ClientConfig *ssh.ClientConfig
	// DialTimeout bounds the TCP+SSH handshake. Defaults to 15s.
	DialTimeout time.Duration

	Log logrus.FieldLogger
}

func (c *SSHDialerConfig) checkAndSetDefaults() error {
	if c.Addr == "" {
		return trace.BadParameter("tunnel: SSHDialerConfig.Addr is required")
	}
	if c.ClientConfig == nil {
		return trace.BadParameter("tunnel: SSHDialerConfig.ClientConfig is required")
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 15 * time.Second
	}
	if c.Log == nil {
		c.Log = logrus.WithField(trace.Component, "tunnel:ssh")
	}
	return nil
}

// SSHDialer is the production Dialer: it opens the tunnel's underlying
// transport as a single multiplexed SSH connection to the service peer,
// the same shape lib/reversetunnel/transport.go uses to reach a
// Teleport auth server through a reverse tunnel.
type SSHDialer struct {
	cfg SSHDialerConfig
}

// NewSSHDialer returns a Dialer that dials cfg.Addr over SSH.
func NewSSHDialer(cfg SSHDialerConfig) (*SSHDialer, error) {
	if err := cfg.checkAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &SSHDialer{cfg: cfg}, nil
}

// Dial opens a new SSH connection to the configured peer.
func (d *SSHDialer) Dial() (Conn, error) {
	deadline := time.Now().Add(d.cfg.DialTimeout)
	conn, err := net.DialTimeout("tcp", d.cfg.Addr, d.cfg.DialTimeout)
	if err != nil {
		return nil, trace.ConnectionProblem(err, "tunnel: dialing %v", d.cfg.Addr)
	}
	_ = conn.SetDeadline(deadline)
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, d.cfg.Addr, d.cfg.ClientConfig)
	if err != nil {
		conn.Close()
		return nil, trace.ConnectionProblem(err, "tunnel: SSH handshake with %v failed", d.cfg.Addr)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(clientConn, chans, reqs)
	return &sshConn{client: client, tcpConn: conn, log: d.cfg.Log}, nil
}

// sshConn adapts an *ssh.Client to the tunnel's Conn contract: keepalive
// is programmed as periodic "keepalive@weave" global requests (SSH has
// no socket-level SO_KEEPALIVE knob exposed through x/crypto/ssh), and
// user-timeout is approximated by giving up on an unanswered keepalive
// after that many missed probes.
type sshConn struct {
	client *ssh.Client
	tcpConn net.Conn
	log logrus.FieldLogger

	stop chan struct{}
}

func (c *sshConn) SetKeepalive(p KeepaliveParams) error {
	if c.stop != nil {
		close(c.stop)
	}
	c.stop = make(chan struct{})
	go c.keepaliveLoop(p, c.stop)
	return nil
}

func (c *sshConn) keepaliveLoop(p KeepaliveParams, stop chan struct{}) {
	if p.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	missed := 0
	for {
		select {
			case <-stop:
			return
			case <-ticker.C:
			ok, _, err := c.client.SendRequest("keepalive@weave", true, nil)
			if err != nil || !ok {
				missed++
				if p.MaxProbes > 0 && missed >= p.MaxProbes {
					c.log.Warn("tunnel: SSH keepalive missed threshold, closing")
					c.client.Close()
					return
				}
				continue
			}
			missed = 0
		}
	}
}

func (c *sshConn) Close() error {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	return c.client.Close()
}
