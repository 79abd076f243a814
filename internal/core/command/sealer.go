package command

// Sealer 加密配置值在线上传输前的封装/解封
// 调用可能较慢，队列服务不会在持锁时调用翻译器
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// PlainSealer 不做任何处理，仅用于测试与本地调试
type PlainSealer struct{}

func (PlainSealer) Seal(s string) (string, error) { return s, nil }
func (PlainSealer) Open(s string) (string, error) { return s, nil }
