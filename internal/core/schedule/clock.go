/**
 * 调度时钟
 * @author: sun977
 * @date: 2026.03.02
 * @description: 按 interval/offset 计算对齐的下一次/上一次触发时间
 * @func: 所有时间均为 int64 毫秒，对负数 now 取非负模
 */
package schedule

// ValidateConfig 检查 interval/offset 组合
func ValidateConfig(interval, offset int64) error {
	if interval <= 0 {
		return invalidConfig("interval must be positive, got %d", interval)
	}
	if offset < 0 || offset >= interval {
		return invalidConfig("offset %d outside [0, %d)", offset, interval)
	}
	return nil
}

// mod 非负取模，保证 now 为负时对齐点仍然在 now 之前
func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// NextFireTime 返回 >= now 且与 offset 模 interval 同余的最早时间
// 调用方必须先通过 ValidateConfig
func NextFireTime(interval, offset, now int64) int64 {
	t := now - mod(now, interval) + offset
	if t < now {
		t += interval
	}
	return t
}

// PrevFireTime 返回 <= now 且与 offset 模 interval 同余的最晚时间
func PrevFireTime(interval, offset, now int64) int64 {
	t := now - mod(now, interval) + offset
	if t > now {
		t -= interval
	}
	return t
}

// Advance 触发后推进 item.NextTime
// 正常情况下加一个 interval；若仍落后于 now (进程挂起/时钟跳变)，直接重新对齐，不补发积压的触发
func Advance(item *Item, now int64) {
	next := item.NextTime + item.Interval
	if next < now {
		next = NextFireTime(item.Interval, item.Offset, now)
	}
	item.NextTime = next
}
