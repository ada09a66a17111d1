// Package train 实现同步分布式训练的 master 侧：
// 每轮聚合 worker 的梯度负载，对全局模型做一步优化器更新并广播。
// worker（外部协作方）只需产出 Params 负载；迭代终止条件由外部驱动判断。
package train

import (
	"github.com/rushteam/wdkit/core"
	"github.com/rushteam/wdkit/model"
)

// SerializationType 标记 Params 中模型参数的语义：权重还是梯度。
type SerializationType int32

const (
	// SerializationWeights 表示 Model 携带的是模型权重（master → worker 广播）
	SerializationWeights SerializationType = iota
	// SerializationGradients 表示 Model 携带的是本轮梯度（worker → master 上报）
	SerializationGradients
)

func (t SerializationType) String() string {
	switch t {
	case SerializationWeights:
		return "weights"
	case SerializationGradients:
		return "gradients"
	default:
		return "unknown"
	}
}

// Params 是训练轮次的负载：worker 上报梯度 + 计数/误差，
// master 广播权重 + 聚合后的计数/误差。
type Params struct {
	SerializationType SerializationType

	TrainCount      int64
	ValidationCount int64
	TrainError      float64
	ValidationError float64

	// Model 按 SerializationType 携带权重或梯度；形状必须与全局模型一致
	Model *model.WideAndDeep
}

// Combine 把 other 累加到当前对象：计数、误差求和，模型参数逐元素相加。
// 满足结合律与交换律 —— 任意顺序聚合的数值结果一致（浮点求和顺序误差除外）。
// 形状不一致属于契约违反，返回 SHAPE_MISMATCH 错误。
func (p *Params) Combine(other *Params) error {
	if other == nil {
		return nil
	}
	if p.SerializationType != other.SerializationType {
		return core.NewDomainError(core.ModuleTrain, core.ErrorCodeInvalidInput,
			"train: cannot combine weights payload with gradients payload")
	}
	if p.Model != nil && other.Model != nil {
		if err := p.Model.Combine(other.Model); err != nil {
			return err
		}
	} else if other.Model != nil {
		p.Model = other.Model
	}
	p.TrainCount += other.TrainCount
	p.ValidationCount += other.ValidationCount
	p.TrainError += other.TrainError
	p.ValidationError += other.ValidationError
	return nil
}
