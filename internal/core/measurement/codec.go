/**
 * 调度指标二进制编解码
 * @author: sun977
 * @date: 2026.03.02
 * @description: ScheduledMeasurement 固定二进制布局 + Base64 包装
 * @func: 布局顺序(大端):
 *   dsn(u16长度+UTF-8) | interval(i64) | derivedId(i64) | dsnId(i64) |
 *   entityType(i32) | entityId(i32) | category(u16长度+UTF-8) | units(u16长度+UTF-8)
 *   没有版本字节，任何布局变更对所有生产者/消费者都是破坏性变更
 */
package measurement

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// 固定宽度部分: 3*int64 + 2*int32
const fixedSize = 8*3 + 4*2

// Encode 编码为 Base64 字符串 (标准字母表，不换行)
func Encode(m ScheduledMeasurement) (string, error) {
	raw, err := MarshalBinary(m)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode 从 Base64 字符串解码
// 任何格式错误都返回 *DecodeError，不会返回半填充的记录
func Decode(s string) (ScheduledMeasurement, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return ScheduledMeasurement{}, &DecodeError{Err: ErrInvalidBase64}
	}
	return UnmarshalBinary(raw)
}

// MarshalBinary 生成未包装的字节布局
func MarshalBinary(m ScheduledMeasurement) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(fixedSize + 6 + len(m.DSN) + len(m.Category) + len(m.Units))

	if err := writeString(&buf, m.DSN); err != nil {
		return nil, err
	}
	var fixed [fixedSize]byte
	binary.BigEndian.PutUint64(fixed[0:8], uint64(m.Interval))
	binary.BigEndian.PutUint64(fixed[8:16], uint64(m.DerivedID))
	binary.BigEndian.PutUint64(fixed[16:24], uint64(m.DSNID))
	binary.BigEndian.PutUint32(fixed[24:28], uint32(m.Entity.Type))
	binary.BigEndian.PutUint32(fixed[28:32], uint32(m.Entity.ID))
	buf.Write(fixed[:])
	if err := writeString(&buf, m.Category); err != nil {
		return nil, err
	}
	if err := writeString(&buf, m.Units); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary 解析未包装的字节布局
func UnmarshalBinary(raw []byte) (ScheduledMeasurement, error) {
	r := &reader{buf: raw}
	var m ScheduledMeasurement

	m.DSN = r.string("dsn")
	m.Interval = r.int64("interval")
	m.DerivedID = r.int64("derivedId")
	m.DSNID = r.int64("dsnId")
	m.Entity.Type = r.int32("entityType")
	m.Entity.ID = r.int32("entityId")
	m.Category = r.string("category")
	m.Units = r.string("units")

	if r.err != nil {
		return ScheduledMeasurement{}, r.err
	}
	if r.off != len(raw) {
		return ScheduledMeasurement{}, &DecodeError{Offset: r.off, Err: ErrTrailingBytes}
	}
	return m, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return ErrStringTooLong
	}
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
	return nil
}

// reader 顺序读取，第一次出错后后续读取全部短路
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(field string, n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = &DecodeError{Field: field, Offset: r.off, Err: ErrTruncated}
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) int64(field string) int64 {
	b := r.take(field, 8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *reader) int32(field string) int32 {
	b := r.take(field, 4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *reader) string(field string) string {
	nb := r.take(field, 2)
	if nb == nil {
		return ""
	}
	start := r.off
	b := r.take(field, int(binary.BigEndian.Uint16(nb)))
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.err = &DecodeError{Field: field, Offset: start, Err: ErrInvalidUTF8}
		return ""
	}
	return string(b)
}
