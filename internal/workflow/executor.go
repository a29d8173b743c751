package workflow

import (
	"context"
	"fmt"
	"iter"

	"music-copilot-go/internal/capability"
	"music-copilot-go/internal/model"
	"music-copilot-go/pkg/log"
)

// Executor 按顺序执行工作流步骤并产生编排事件。
type Executor struct {
	registry *capability.Registry
}

// NewExecutor 创建工作流执行器。
func NewExecutor(registry *capability.Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute 返回一次工作流执行的事件序列，序列只能遍历一次。
//
// 每个步骤先发出 step_start；若步骤指定了能力则调用并发出 step_result，
// 单步失败以 {"error": msg} 作为结果保存，不影响后续步骤。
// 全部步骤结束后依次发出卡片、一段总结文本和携带总结的 done。
// 步骤或合成阶段的 panic 会转换为一个 error 事件并结束执行。
// ctx 取消后不再发起新的能力调用，也不再产生事件。
func (e *Executor) Execute(ctx context.Context, wf *Descriptor, text string, inputs map[string]any) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		inYield := false
		emit := func(ev model.Event) bool {
			inYield = true
			ok := yield(ev)
			inYield = false
			return ok
		}

		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if inYield {
				// 消费方的 panic 原样抛出
				panic(p)
			}
			log.Errorf("[Workflow] 工作流 %s 执行异常: %v", wf.Name, p)
			emit(model.ErrorEvent{Content: model.FriendlyErrorMessage})
		}()

		ec := NewExecutionContext(inputs)
		steps := wf.Steps(text, ec)
		log.Infof("[Workflow] 开始执行工作流 %s，共 %d 个步骤", wf.Name, len(steps))

		for _, step := range steps {
			if !emit(model.StepStartEvent{Step: step.Name, Description: step.Description}) {
				return
			}
			if step.Capability == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				log.Infof("[Workflow] 工作流 %s 在步骤 %s 前被取消: %v", wf.Name, step.Name, err)
				return
			}

			result := e.invoke(ctx, wf.Name, step, ec)
			ec.Set(step.OutputKey, result)
			if !emit(model.StepResultEvent{Step: step.Name, Data: result}) {
				return
			}
		}

		if wf.Cards != nil {
			for _, card := range wf.Cards(ec) {
				if !emit(model.CardEvent{Card: card}) {
					return
				}
			}
		}

		summary := ""
		if wf.Summarize != nil {
			summary = wf.Summarize(ec)
		}
		if summary != "" && !emit(model.TokenEvent{Content: summary}) {
			return
		}
		emit(model.DoneEvent{Summary: summary})
	}
}

func (e *Executor) invoke(ctx context.Context, workflowName string, step Step, ec *ExecutionContext) map[string]any {
	d, err := e.registry.Resolve(step.Capability)
	if err != nil {
		log.Warnf("[Workflow] 工作流 %s 步骤 %s 找不到能力: %v", workflowName, step.Name, err)
		return capability.ErrorResult(fmt.Errorf("未找到工具 %s", step.Capability))
	}
	args := ec.resolveArgs(step)
	log.Debugf("[Workflow] 步骤 %s 调用 %s，参数: %v", step.Name, step.Capability, args)
	result, err := capability.Call(ctx, d, args)
	if err != nil {
		log.Warnf("[Workflow] 步骤 %s 调用 %s 失败: %v", step.Name, step.Capability, err)
	}
	return result
}
