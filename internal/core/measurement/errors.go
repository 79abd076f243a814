package measurement

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated     = errors.New("record truncated")          // 缓冲区长度不足
	ErrTrailingBytes = errors.New("record has trailing bytes") // 解码后仍有剩余字节
	ErrInvalidBase64 = errors.New("record is not valid base64")
	ErrInvalidUTF8   = errors.New("record string is not valid utf-8")
	ErrStringTooLong = errors.New("record string exceeds 65535 bytes")
)

// DecodeError 记录解码失败，Field 为出错的字段名
type DecodeError struct {
	Field  string
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode measurement record: %v", e.Err)
	}
	return fmt.Sprintf("decode measurement record: field %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
