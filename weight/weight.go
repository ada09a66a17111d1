// Package weight 提供模型权重初始化器（core.WeightInitializer 的实现）。
//
// 设计原则：
//   - 实现除随机源外无状态；随机源在构造时注入，可播种，便于测试复现
//   - 输出形状与请求严格一致；有限参数范围内不会产出 NaN/Inf
package weight

import (
	"math/rand"
	"time"

	"github.com/rushteam/wdkit/core"
)

// RangeRandom 在 [min, max) 区间均匀采样的初始化器。
type RangeRandom struct {
	min, max float32
	rnd      *rand.Rand
}

// Option 配置初始化器的随机源。
type Option func(*options)

type options struct {
	seed    int64
	hasSeed bool
}

// WithSeed 固定随机种子（测试用；默认用时间播种）。
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
		o.hasSeed = true
	}
}

func newRand(opts []Option) *rand.Rand {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.hasSeed {
		return rand.New(rand.NewSource(o.seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewRangeRandom 创建区间均匀初始化器；min > max 时自动交换。
func NewRangeRandom(min, max float32, opts ...Option) *RangeRandom {
	if min > max {
		min, max = max, min
	}
	return &RangeRandom{min: min, max: max, rnd: newRand(opts)}
}

// InitWeight 采样单个权重。
func (r *RangeRandom) InitWeight() float32 {
	return (r.max-r.min)*r.rnd.Float32() + r.min
}

// InitVector 采样长度为 length 的权重向量。
func (r *RangeRandom) InitVector(length int) []float32 {
	v := make([]float32, length)
	for i := range v {
		v[i] = r.InitWeight()
	}
	return v
}

// InitMatrix 采样 rows×cols 的权重矩阵。
func (r *RangeRandom) InitMatrix(rows, cols int) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		m[i] = r.InitVector(cols)
	}
	return m
}

// Min 返回区间下界。
func (r *RangeRandom) Min() float32 { return r.min }

// Max 返回区间上界。
func (r *RangeRandom) Max() float32 { return r.max }

var _ core.WeightInitializer = (*RangeRandom)(nil)
