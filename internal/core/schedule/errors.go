package schedule

import (
	"errors"
	"fmt"
)

// ErrInvalidScheduleConfig 调度参数非法 (interval<=0 或 offset 不在 [0, interval) 内)
var ErrInvalidScheduleConfig = errors.New("invalid schedule config")

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidScheduleConfig, fmt.Sprintf(format, args...))
}
