package model

import (
	"fmt"
	"math"
	"strings"
)

// Activation 是激活函数类型，随层一起序列化，反序列化后按名字还原。
type Activation string

const (
	ActReLU     Activation = "relu"
	ActSigmoid  Activation = "sigmoid"
	ActTanh     Activation = "tanh"
	ActIdentity Activation = "identity"
)

// ParseActivation 解析激活函数名（大小写不敏感）；空串回退为 relu。
func ParseActivation(s string) (Activation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relu":
		return ActReLU, nil
	case "sigmoid":
		return ActSigmoid, nil
	case "tanh":
		return ActTanh, nil
	case "identity", "linear":
		return ActIdentity, nil
	default:
		return "", fmt.Errorf("unknown activation %q", s)
	}
}

// Apply 对单个值应用激活函数。
func (a Activation) Apply(x float32) float32 {
	switch a {
	case ActReLU:
		if x > 0 {
			return x
		}
		return 0
	case ActSigmoid:
		return float32(1.0 / (1.0 + math.Exp(-float64(x))))
	case ActTanh:
		return float32(math.Tanh(float64(x)))
	default:
		return x
	}
}

// ApplyVec 对向量逐元素应用激活函数，返回新切片。
func (a Activation) ApplyVec(in []float32) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = a.Apply(v)
	}
	return out
}
