// Package capability 维护工具名称到可调用能力的注册表。
package capability

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound 表示按名称找不到能力。
	ErrNotFound = errors.New("capability not found")
	// ErrDuplicate 表示重复注册同名能力。
	ErrDuplicate = errors.New("capability already registered")
	// ErrSealed 表示注册表已封闭，不再接受注册。
	ErrSealed = errors.New("capability registry is sealed")
)

// Handler 是一个可调用的能力。返回值可以是 map、结构体或 JSON 字符串，由 Decode 统一为结构化结果。
type Handler interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// HandlerFunc 让普通函数实现 Handler。
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Invoke 调用 f(ctx, args)。
func (f HandlerFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Descriptor 描述一个能力：名称、给模型看的说明与参数 schema，以及处理器。
type Descriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

// Registry 只在启动阶段由单个 goroutine 注册，Seal 之后只读，请求间并发读取无需加锁。
type Registry struct {
	sealed  bool
	order   []string
	entries map[string]*Descriptor
}

// NewRegistry 创建一个空注册表。
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Descriptor)}
}

// Register 注册一个能力，名称重复或注册表已封闭时返回错误。
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.New("capability name is empty")
	}
	if d.Handler == nil {
		return fmt.Errorf("capability %q has no handler", d.Name)
	}
	if r.sealed {
		return fmt.Errorf("%w: %s", ErrSealed, d.Name)
	}
	if _, ok := r.entries[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.Name)
	}
	if d.Parameters == nil {
		d.Parameters = ObjectSchema(nil)
	}
	r.entries[d.Name] = &d
	r.order = append(r.order, d.Name)
	return nil
}

// MustRegister 与 Register 相同，出错时 panic，只在启动装配时使用。
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Seal 封闭注册表。
func (r *Registry) Seal() {
	r.sealed = true
}

// Resolve 按名称查找能力。
func (r *Registry) Resolve(name string) (*Descriptor, error) {
	d, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return d, nil
}

// Descriptors 按注册顺序返回所有能力。
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Names 按注册顺序返回能力名称。
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len 返回已注册能力数量。
func (r *Registry) Len() int {
	return len(r.order)
}
