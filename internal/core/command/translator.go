/**
 * 命令翻译器注册表
 * @author: sun977
 * @date: 2026.03.03
 * @description: 命令类型 -> 翻译器的平铺映射，每种类型只有一个翻译器，没有默认回退
 * @func: Register 覆盖旧注册；Lookup 未命中返回 false，由调用方记为 "command not implemented"
 */
package command

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Translator 单个命令类型的翻译函数
// Request/Response 在 Master 端使用，Unpack 在 Agent 端把信封还原为领域命令
// 翻译函数只做数据整形，不得持有队列服务的锁
type Translator struct {
	Request  func(cmd Command) (*Request, error)
	Response func(resp *Response) (any, error)
	Unpack   func(req *Request) (Command, error)
}

// Registry 翻译器注册表
type Registry struct {
	mu          sync.RWMutex
	translators map[Type]Translator
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{translators: make(map[Type]Translator)}
}

// Register 注册翻译器，同类型重复注册时覆盖
func (r *Registry) Register(t Type, tr Translator) error {
	if !t.Valid() {
		return fmt.Errorf("register translator: %w: %q", ErrUnknownCommandType, string(t))
	}
	if tr.Request == nil || tr.Response == nil {
		return fmt.Errorf("register translator for %s: request and response functions are required", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translators[t] = tr
	return nil
}

// MustRegister 启动期注册，失败直接 panic
func (r *Registry) MustRegister(t Type, tr Translator) {
	if err := r.Register(t, tr); err != nil {
		panic(err)
	}
}

// Unregister 删除翻译器
func (r *Registry) Unregister(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.translators, t)
}

// Lookup 查找翻译器
func (r *Registry) Lookup(t Type) (Translator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tr, ok := r.translators[t]
	return tr, ok
}

// Types 已注册类型，按名称排序
func (r *Registry) Types() []Type {
	r.mu.RLock()
	out := make([]Type, 0, len(r.translators))
	for t := range r.translators {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TranslateRequest 查找并执行请求翻译，错误统一包装为 *TranslationError
func (r *Registry) TranslateRequest(cmd Command) (*Request, error) {
	if cmd == nil {
		return nil, &TranslationError{Err: fmt.Errorf("nil command")}
	}
	t := cmd.CommandType()
	tr, ok := r.Lookup(t)
	if !ok {
		return nil, &TranslationError{Type: t, Err: ErrUnknownCommandType}
	}
	req, err := guard(t, "", func() (*Request, error) { return tr.Request(cmd) })
	if err != nil {
		return nil, asTranslationError(t, "", err)
	}
	if err := req.Validate(); err != nil {
		return nil, &TranslationError{Type: t, Err: err}
	}
	return req, nil
}

// UnpackRequest Agent 端：解析关联ID并还原领域命令
func (r *Registry) UnpackRequest(req *Request) (CorrelationID, Command, error) {
	if err := req.Validate(); err != nil {
		return CorrelationID{}, nil, &TranslationError{Err: err}
	}
	cid, err := ParseCorrelationID(req.CorrelationID)
	if err != nil {
		return CorrelationID{}, nil, &TranslationError{CorrelationID: req.CorrelationID, Err: err}
	}
	tr, ok := r.Lookup(cid.Type)
	if !ok || tr.Unpack == nil {
		return cid, nil, &TranslationError{Type: cid.Type, CorrelationID: req.CorrelationID, Err: ErrUnknownCommandType}
	}
	cmd, err := guard(cid.Type, req.CorrelationID, func() (Command, error) { return tr.Unpack(req) })
	if err != nil {
		return cid, nil, asTranslationError(cid.Type, req.CorrelationID, err)
	}
	return cid, cmd, nil
}

// TranslateResponse Master 端：按命令类型把结果信封解码为领域响应
func (r *Registry) TranslateResponse(t Type, resp *Response) (any, error) {
	id := ""
	if resp != nil {
		id = resp.CorrelationID
	}
	tr, ok := r.Lookup(t)
	if !ok || tr.Response == nil {
		return nil, &TranslationError{Type: t, CorrelationID: id, Err: ErrUnknownCommandType}
	}
	out, err := guard(t, id, func() (any, error) { return tr.Response(resp) })
	if err != nil {
		return nil, asTranslationError(t, id, err)
	}
	return out, nil
}

// guard 调用外部注册的翻译函数，panic 转为 *TranslationError
func guard[T any](t Type, correlationID string, fn func() (T, error)) (out T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			out = zero
			err = &TranslationError{Type: t, CorrelationID: correlationID, Err: fmt.Errorf("%w: %v", ErrTranslatorPanic, rec)}
		}
	}()
	return fn()
}

func asTranslationError(t Type, correlationID string, err error) error {
	var te *TranslationError
	if errors.As(err, &te) {
		return err
	}
	return &TranslationError{Type: t, CorrelationID: correlationID, Err: err}
}
