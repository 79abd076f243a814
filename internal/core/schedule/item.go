package schedule

// Mode 初始化 NextTime 的语义
type Mode int

const (
	ModeNext Mode = iota // NextTime >= now
	ModePrev             // NextTime <= now，用于创建后立即补一次
)

func (m Mode) String() string {
	if m == ModePrev {
		return "prev"
	}
	return "next"
}

// Item 一条周期或一次性的调度项
type Item struct {
	ID       int64 // 进程内唯一，非负
	Payload  any   // 由调用方解释，通常是 measurement.ScheduledMeasurement
	Interval int64 // 毫秒
	Offset   int64 // 毫秒，[0, Interval)
	NextTime int64 // 毫秒时间戳
	Repeat   bool
}

// NewItem 校验参数并按 mode 计算首次触发时间
func NewItem(id int64, payload any, interval, offset int64, repeat bool, now int64, mode Mode) (Item, error) {
	if id < 0 {
		return Item{}, invalidConfig("id must be non-negative, got %d", id)
	}
	if err := ValidateConfig(interval, offset); err != nil {
		return Item{}, err
	}
	item := Item{
		ID:       id,
		Payload:  payload,
		Interval: interval,
		Offset:   offset,
		Repeat:   repeat,
	}
	if mode == ModePrev {
		item.NextTime = PrevFireTime(interval, offset, now)
	} else {
		item.NextTime = NextFireTime(interval, offset, now)
	}
	return item, nil
}

// Due 是否到期
func (i Item) Due(now int64) bool {
	return i.NextTime <= now
}
