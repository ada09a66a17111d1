package train

import (
	"fmt"
	"math"
	"strings"

	"github.com/rushteam/wdkit/core"
	"github.com/rushteam/wdkit/model"
)

// Optimizer 对全局模型执行一步更新：weights ← step(weights, gradients)。
// 梯度形状必须与模型一致；不一致属于契约违反，Step 返回 SHAPE_MISMATCH 错误。
type Optimizer interface {
	Name() string
	Step(m, grads *model.WideAndDeep) error
}

// NewOptimizer 按名字创建优化器（sgd / adagrad，空串取 sgd）。
func NewOptimizer(name string, learningRate float64) (Optimizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sgd":
		return &SGD{LearningRate: learningRate}, nil
	case "adagrad":
		return &AdaGrad{LearningRate: learningRate}, nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

// stepVectors 对模型与梯度的参数切片成对执行 fn；先做整体形状校验。
// isBias 标记该切片是否为 bias 向量，优化器据此决定是否施加 L2 衰减。
func stepVectors(m, grads *model.WideAndDeep, fn func(i int, w, g []float32, isBias bool)) error {
	if !m.ShapeEquals(grads) {
		return core.NewDomainError(core.ModuleTrain, core.ErrorCodeShapeMismatch,
			"train: gradient shapes do not match model")
	}
	ws, gs, mask := m.ParamVectors(), grads.ParamVectors(), m.BiasMask()
	for i := range ws {
		fn(i, ws[i], gs[i], mask[i])
	}
	return nil
}

// SGD 是带 L2 权重衰减的随机梯度下降：w ← w - lr·(g + l2·w)。
// L2 系数取模型自身的正则配置；bias 不做衰减。
type SGD struct {
	LearningRate float64
}

func (s *SGD) Name() string { return "sgd" }

func (s *SGD) Step(m, grads *model.WideAndDeep) error {
	lr := float32(s.LearningRate)
	l2 := m.L2
	err := stepVectors(m, grads, func(_ int, w, g []float32, isBias bool) {
		decay := l2
		if isBias {
			decay = 0
		}
		for j := range w {
			w[j] -= lr * (g[j] + decay*w[j])
		}
	})
	if err != nil {
		return err
	}
	m.WideBias -= lr * grads.WideBias
	return nil
}

// AdaGrad 按参数累积历史梯度平方，自适应缩放学习率：
//
//	acc ← acc + g²
//	w   ← w - lr·g / (√acc + ε)
//
// L2 衰减并入梯度项，与 SGD 一样 bias 不做衰减。
// 累积状态在第一次 Step 时按模型形状惰性创建。
type AdaGrad struct {
	LearningRate float64
	Epsilon      float64

	acc     *model.WideAndDeep
	accBias float64
}

func (a *AdaGrad) Name() string { return "adagrad" }

func (a *AdaGrad) Step(m, grads *model.WideAndDeep) error {
	if a.Epsilon == 0 {
		a.Epsilon = 1e-8
	}
	if a.acc == nil {
		a.acc = m.ZeroClone()
	} else if !a.acc.ShapeEquals(m) {
		return core.NewDomainError(core.ModuleTrain, core.ErrorCodeShapeMismatch,
			"train: adagrad state shape does not match model")
	}

	lr := a.LearningRate
	eps := a.Epsilon
	l2 := float64(m.L2)
	accVecs := a.acc.ParamVectors()
	err := stepVectors(m, grads, func(i int, w, g []float32, isBias bool) {
		acc := accVecs[i]
		decay := l2
		if isBias {
			decay = 0
		}
		for j := range w {
			grad := float64(g[j]) + decay*float64(w[j])
			accV := float64(acc[j]) + grad*grad
			acc[j] = float32(accV)
			w[j] -= float32(lr * grad / (math.Sqrt(accV) + eps))
		}
	})
	if err != nil {
		return err
	}
	grad := float64(grads.WideBias)
	a.accBias += grad * grad
	m.WideBias -= float32(lr * grad / (math.Sqrt(a.accBias) + eps))
	return nil
}
