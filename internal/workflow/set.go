package workflow

import (
	"errors"
	"fmt"
	"strings"

	"music-copilot-go/internal/capability"
)

// Set 是按注册顺序排列的工作流集合，启动后只读。
type Set struct {
	order  []*Descriptor
	byName map[string]*Descriptor
}

// NewSet 按给定顺序组装工作流集合，名称重复或定义不完整时返回错误。
func NewSet(descriptors ...*Descriptor) (*Set, error) {
	s := &Set{byName: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if d == nil || d.Name == "" {
			return nil, errors.New("workflow name is empty")
		}
		if d.Steps == nil {
			return nil, fmt.Errorf("workflow %q has no steps", d.Name)
		}
		if _, ok := s.byName[d.Name]; ok {
			return nil, fmt.Errorf("workflow %q registered twice", d.Name)
		}
		s.byName[d.Name] = d
		s.order = append(s.order, d)
	}
	return s, nil
}

// Get 按名称查找工作流。
func (s *Set) Get(name string) (*Descriptor, bool) {
	d, ok := s.byName[name]
	return d, ok
}

// All 按注册顺序返回全部工作流。
func (s *Set) All() []*Descriptor {
	return append([]*Descriptor(nil), s.order...)
}

// Validate 在启动时检查每个工作流的静态步骤定义：
// 引用的能力必须已注册，动态参数只能引用更早步骤的输出键。
func (s *Set) Validate(reg *capability.Registry) error {
	var errs []error
	for _, d := range s.order {
		steps := d.Steps("", NewExecutionContext(nil))
		produced := make(map[string]bool, len(steps))
		for _, step := range steps {
			if step.Capability != "" {
				if _, err := reg.Resolve(step.Capability); err != nil {
					errs = append(errs, fmt.Errorf("workflow %s step %s: %w", d.Name, step.Name, err))
				}
			}
			for arg, dyn := range step.DynamicArgs {
				if !produced[dyn.Source] {
					errs = append(errs, fmt.Errorf("workflow %s step %s: argument %s reads %q before it is produced",
						d.Name, step.Name, arg, dyn.Source))
				}
			}
			if step.Capability != "" && step.OutputKey != "" {
				produced[step.OutputKey] = true
			}
		}
	}
	return errors.Join(errs...)
}

// Describe 生成工作流说明文本，供系统提示词使用。
func (s *Set) Describe() string {
	var b strings.Builder
	b.WriteString("## 可用的高级技能（Skills）\n当用户需要完整的多步骤方案时，可以启用以下 Skill：\n\n")
	for _, d := range s.order {
		kws := d.TriggerKeywords
		if len(kws) > 4 {
			kws = kws[:4]
		}
		fmt.Fprintf(&b, "- **%s**：%s（触发词：%s）\n", d.Name, d.Description, strings.Join(kws, "、"))
	}
	return strings.TrimRight(b.String(), "\n")
}
