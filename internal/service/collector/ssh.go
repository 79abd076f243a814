package collector

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHCollector ssh:，除通用指标外，指标名对应资源配置 "ssh.command.<指标名>"，
// 取命令输出的第一个数值
//
//	ssh:load   ->  ssh.command.load = "cut -d' ' -f1 /proc/loadavg"
type SSHCollector struct {
	Timeout time.Duration
}

func (c *SSHCollector) Collect(ctx context.Context, t Target) (float64, error) {
	ep, err := endpointFrom(t, "ssh", 22, c.Timeout)
	if err != nil {
		return 0, err
	}

	var cmd string
	if t.Metric != MetricAvailability && t.Metric != MetricResponseTime {
		v, ok := t.Config.Get("ssh.command." + t.Metric)
		if !ok || strings.TrimSpace(v) == "" {
			return 0, fmt.Errorf("%w: ssh:%s has no ssh.command.%s configured", ErrUnknownMetric, t.Metric, t.Metric)
		}
		cmd = v
	}

	ctx, cancel := context.WithTimeout(ctx, ep.Timeout)
	defer cancel()

	var client *ssh.Client
	connect := func(ctx context.Context) error {
		client, err = dialSSH(ctx, ep)
		return err
	}
	if v, ok, err := probe(ctx, t.Metric, connect); ok {
		if client != nil {
			client.Close()
		}
		return v, err
	}
	if err := connect(ctx); err != nil {
		return 0, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return 0, fmt.Errorf("ssh session on %s: %w", ep.Addr(), err)
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdout = &stdout
	if err := session.Run(cmd); err != nil {
		return 0, fmt.Errorf("ssh run %s on %s: %w", t.Metric, ep.Addr(), err)
	}
	return firstNumber(stdout.String())
}

// dialSSH TCP 连接受 ctx 控制，握手受 deadline 控制
func dialSSH(ctx context.Context, ep Endpoint) (*ssh.Client, error) {
	cfg := &ssh.ClientConfig{
		User:            ep.User,
		Auth:            []ssh.AuthMethod{ssh.Password(ep.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: 支持资源配置 ssh.host_key 固定主机公钥
		Timeout:         ep.Timeout,
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", ep.Addr(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	cConn, chans, reqs, err := ssh.NewClientConn(conn, ep.Addr(), cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", ep.Addr(), err)
	}
	return ssh.NewClient(cConn, chans, reqs), nil
}

func firstNumber(out string) (float64, error) {
	for _, field := range strings.Fields(out) {
		if f, err := strconv.ParseFloat(field, 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("no numeric value in output %q", strings.TrimSpace(out))
}
