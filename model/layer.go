package model

import "github.com/rushteam/wdkit/core"

// DenseLayer 是全连接层：仿射变换 + 激活。
// Weights[neuron][input] 行主序存储，层独占自己的参数。
type DenseLayer struct {
	Weights [][]float32
	Bias    []float32
	Act     Activation
}

// NewDenseLayer 创建 out×in 的全连接层，权重置零，待初始化或从 checkpoint 恢复。
func NewDenseLayer(out, in int, act Activation) *DenseLayer {
	weights := make([][]float32, out)
	for i := range weights {
		weights[i] = make([]float32, in)
	}
	return &DenseLayer{
		Weights: weights,
		Bias:    make([]float32, out),
		Act:     act,
	}
}

// OutDim 返回输出维度。
func (l *DenseLayer) OutDim() int { return len(l.Bias) }

// InDim 返回输入维度。
func (l *DenseLayer) InDim() int {
	if len(l.Weights) == 0 {
		return 0
	}
	return len(l.Weights[0])
}

// Forward 计算 act(W·x + b)，纯函数，不修改层状态。
func (l *DenseLayer) Forward(in []float32) []float32 {
	out := make([]float32, l.OutDim())
	for i, row := range l.Weights {
		sum := l.Bias[i]
		for j := 0; j < len(row) && j < len(in); j++ {
			sum += row[j] * in[j]
		}
		out[i] = l.Act.Apply(sum)
	}
	return out
}

// InitWeights 用初始化器重置层参数。
func (l *DenseLayer) InitWeights(init core.WeightInitializer) {
	l.Weights = init.InitMatrix(l.OutDim(), l.InDim())
	l.Bias = init.InitVector(l.OutDim())
}
