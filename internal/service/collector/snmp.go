package collector

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// SNMP 资源配置键
const (
	SNMPHostKey      = "snmp.host"
	SNMPPortKey      = "snmp.port"
	SNMPCommunityKey = "snmp.community" // 一般放在加密配置中
	SNMPVersionKey   = "snmp.version"   // 1 / 2c
)

var ErrSNMPNoValue = errors.New("snmp agent returned no value")

// SNMPCollector 通过 SNMP GET 采集，DSN 中的指标部分为 OID
type SNMPCollector struct {
	Timeout time.Duration
	Retries int
}

func (c *SNMPCollector) Collect(ctx context.Context, t Target) (float64, error) {
	params, err := c.params(ctx, t)
	if err != nil {
		return 0, err
	}
	// GoSNMP 不是并发安全的，每次采集新建实例
	if err := params.Connect(); err != nil {
		return 0, fmt.Errorf("snmp connect %s: %w", params.Target, err)
	}
	defer params.Conn.Close()

	oid := t.Metric
	result, err := params.Get([]string{oid})
	if err != nil {
		return 0, fmt.Errorf("snmp get %s on %s: %w", oid, params.Target, err)
	}
	if result.Error != gosnmp.NoError {
		return 0, fmt.Errorf("snmp get %s on %s: %s", oid, params.Target, result.Error)
	}
	if len(result.Variables) == 0 {
		return 0, ErrSNMPNoValue
	}
	return pduValue(result.Variables[0])
}

func (c *SNMPCollector) params(ctx context.Context, t Target) (*gosnmp.GoSNMP, error) {
	host, ok := t.Config.Get(SNMPHostKey)
	if !ok || host == "" {
		return nil, fmt.Errorf("resource %s has no %s configured", t.Measurement.Entity, SNMPHostKey)
	}
	port := uint16(161)
	if v, ok := t.Config.Get(SNMPPortKey); ok {
		p, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", SNMPPortKey, v, err)
		}
		port = uint16(p)
	}
	community := "public"
	if v, ok := t.Config.Get(SNMPCommunityKey); ok {
		community = v
	}
	ver := gosnmp.Version2c
	if v, ok := t.Config.Get(SNMPVersionKey); ok {
		switch strings.ToLower(v) {
		case "1", "v1":
			ver = gosnmp.Version1
		case "2c", "v2c", "":
		default:
			return nil, fmt.Errorf("unsupported %s %q", SNMPVersionKey, v)
		}
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &gosnmp.GoSNMP{
		Target:    host,
		Port:      port,
		Community: community,
		Version:   ver,
		Timeout:   timeout,
		Retries:   c.Retries,
		Transport: "udp",
		Context:   ctx,
	}, nil
}

// pduValue 把数值类 PDU 转为 float64；字符串类型尝试按数字解析
func pduValue(pdu gosnmp.SnmpPDU) (float64, error) {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return 0, fmt.Errorf("%w: %s is %s", ErrSNMPNoValue, pdu.Name, pdu.Type)
	case gosnmp.OctetString:
		b, ok := pdu.Value.([]byte)
		if !ok {
			return 0, fmt.Errorf("unexpected octet string value %T", pdu.Value)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
		if err != nil {
			return 0, fmt.Errorf("%s is not numeric: %q", pdu.Name, string(b))
		}
		return f, nil
	case gosnmp.OpaqueFloat:
		if f, ok := pdu.Value.(float32); ok {
			return float64(f), nil
		}
	case gosnmp.OpaqueDouble:
		if f, ok := pdu.Value.(float64); ok {
			return f, nil
		}
	}
	f, _ := new(big.Float).SetInt(gosnmp.ToBigInt(pdu.Value)).Float64()
	return f, nil
}
