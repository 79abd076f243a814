package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPCollector ftp:，除通用指标外支持 size:<路径> (文件字节数)
type FTPCollector struct {
	Timeout time.Duration
}

func (c *FTPCollector) Collect(ctx context.Context, t Target) (float64, error) {
	ep, err := endpointFrom(t, "ftp", 21, c.Timeout)
	if err != nil {
		return 0, err
	}
	if ep.User == "" {
		ep.User = "anonymous"
	}

	ctx, cancel := context.WithTimeout(ctx, ep.Timeout)
	defer cancel()

	var conn *ftp.ServerConn
	login := func(ctx context.Context) error {
		conn, err = ftp.Dial(ep.Addr(), ftp.DialWithContext(ctx), ftp.DialWithTimeout(ep.Timeout))
		if err != nil {
			return err
		}
		if err = conn.Login(ep.User, ep.Password); err != nil {
			_ = conn.Quit()
			conn = nil
		}
		return err
	}
	if v, ok, err := probe(ctx, t.Metric, login); ok {
		if conn != nil {
			_ = conn.Quit()
		}
		return v, err
	}

	path, ok := strings.CutPrefix(t.Metric, "size:")
	if !ok || path == "" {
		return 0, fmt.Errorf("%w: ftp:%s", ErrUnknownMetric, t.Metric)
	}
	if err := login(ctx); err != nil {
		return 0, fmt.Errorf("ftp login %s: %w", ep.Addr(), err)
	}
	defer conn.Quit()

	size, err := conn.FileSize(path)
	if err != nil {
		return 0, fmt.Errorf("ftp size %s on %s: %w", path, ep.Addr(), err)
	}
	return float64(size), nil
}
