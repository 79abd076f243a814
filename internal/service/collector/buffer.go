package collector

import (
	"sync"

	"neofleet/internal/pkg/communication"
)

// Buffer 有界 FIFO，写满时丢弃最旧的采集值
type Buffer struct {
	mu      sync.Mutex
	items   []communication.MeasurementReport
	limit   int
	dropped uint64
}

// NewBuffer 创建缓冲，limit<=0 时使用 10000
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = 10000
	}
	return &Buffer{limit: limit}
}

// Add 追加采集值
func (b *Buffer) Add(reports ...communication.MeasurementReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, reports...)
	b.trim()
}

// Requeue 上报失败时放回队首，仍受容量限制
func (b *Buffer) Requeue(reports []communication.MeasurementReport) {
	if len(reports) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(append(make([]communication.MeasurementReport, 0, len(reports)+len(b.items)), reports...), b.items...)
	b.trim()
}

func (b *Buffer) trim() {
	if over := len(b.items) - b.limit; over > 0 {
		b.items = append([]communication.MeasurementReport(nil), b.items[over:]...)
		b.dropped += uint64(over)
	}
}

// Drain 取出最多 max 条，max<=0 表示全部
func (b *Buffer) Drain(max int) []communication.MeasurementReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.items)
	if max > 0 && max < n {
		n = max
	}
	out := append([]communication.MeasurementReport(nil), b.items[:n]...)
	b.items = append([]communication.MeasurementReport(nil), b.items[n:]...)
	return out
}

// Len 当前条数
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Dropped 因容量被丢弃的累计条数
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
