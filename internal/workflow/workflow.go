// Package workflow 定义关键词触发的多步骤工作流，以及它们的路由与执行。
package workflow

import (
	"music-copilot-go/internal/model"
)

// DynamicArg 从前序步骤的结果中取一个参数值。
// Extract 必须是纯函数，返回 false 表示取不到，该参数将被省略。
type DynamicArg struct {
	Source  string
	Extract func(result map[string]any) (any, bool)
}

// Step 是工作流中的一个步骤。Capability 为空时只播报进度，不产生结果。
type Step struct {
	Name        string
	Description string
	Capability  string
	Args        map[string]any
	DynamicArgs map[string]DynamicArg
	OutputKey   string
}

// Descriptor 描述一个工作流。
type Descriptor struct {
	Name            string
	Description     string
	TriggerKeywords []string

	// Steps 根据用户输入与本次执行上下文生成有序步骤。
	Steps func(text string, ec *ExecutionContext) []Step
	// Cards 按已有的输出键合成卡片。
	Cards func(ec *ExecutionContext) []model.Card
	// Summarize 生成引用具体数据的总结文本。
	Summarize func(ec *ExecutionContext) string
}

// ExecutionContext 保存一次工作流执行中各步骤的结果，按写入顺序排列。
// 只在单次执行内使用，执行结束即丢弃。
type ExecutionContext struct {
	inputs  map[string]any
	results map[string]map[string]any
	order   []string
}

// NewExecutionContext 创建执行上下文，inputs 为从请求中提取的只读参数。
func NewExecutionContext(inputs map[string]any) *ExecutionContext {
	if inputs == nil {
		inputs = map[string]any{}
	}
	return &ExecutionContext{
		inputs:  inputs,
		results: make(map[string]map[string]any),
	}
}

// Input 读取请求参数。
func (ec *ExecutionContext) Input(key string) (any, bool) {
	v, ok := ec.inputs[key]
	return v, ok
}

// Inputs 返回请求参数。
func (ec *ExecutionContext) Inputs() map[string]any {
	return ec.inputs
}

// Set 写入一个步骤结果。
func (ec *ExecutionContext) Set(key string, result map[string]any) {
	if _, ok := ec.results[key]; !ok {
		ec.order = append(ec.order, key)
	}
	ec.results[key] = result
}

// Result 读取一个步骤结果。
func (ec *ExecutionContext) Result(key string) (map[string]any, bool) {
	r, ok := ec.results[key]
	return r, ok
}

// Keys 按写入顺序返回已有的输出键。
func (ec *ExecutionContext) Keys() []string {
	return append([]string(nil), ec.order...)
}

// resolveArgs 合并固定参数与动态参数。
func (ec *ExecutionContext) resolveArgs(step Step) map[string]any {
	args := make(map[string]any, len(step.Args)+len(step.DynamicArgs))
	for k, v := range step.Args {
		args[k] = v
	}
	for name, dyn := range step.DynamicArgs {
		src, ok := ec.results[dyn.Source]
		if !ok || dyn.Extract == nil {
			continue
		}
		if v, ok := dyn.Extract(src); ok {
			args[name] = v
		}
	}
	return args
}
