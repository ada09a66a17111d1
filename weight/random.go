package weight

import (
	"math/rand"

	"github.com/rushteam/wdkit/core"
)

// Randomizer 是统计随机化器的能力接口：给定当前值采样一个新值。
// current 参数面向"扰动已有权重"的调用方；全新初始化时传固定哨兵值，
// 实现可以忽略它。
type Randomizer interface {
	Randomize(current float32) float32
}

// noUse 是全新初始化时传给 Randomizer 的哨兵值：此时没有"当前值"可言。
const noUse float32 = 666

// Random 把任意 Randomizer 适配成 core.WeightInitializer。
type Random struct {
	r Randomizer
}

// NewRandom 创建基于 Randomizer 的初始化器。
func NewRandom(r Randomizer) *Random {
	return &Random{r: r}
}

// InitWeight 采样单个权重。
func (w *Random) InitWeight() float32 {
	return w.r.Randomize(noUse)
}

// InitVector 采样长度为 length 的权重向量。
func (w *Random) InitVector(length int) []float32 {
	v := make([]float32, length)
	for i := range v {
		v[i] = w.r.Randomize(noUse)
	}
	return v
}

// InitMatrix 采样 rows×cols 的权重矩阵。
func (w *Random) InitMatrix(rows, cols int) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		m[i] = w.InitVector(cols)
	}
	return m
}

var _ core.WeightInitializer = (*Random)(nil)

// Gaussian 是正态分布随机化器 N(mean, stddev²)，忽略 current。
type Gaussian struct {
	mean, stddev float64
	rnd          *rand.Rand
}

// NewGaussian 创建正态分布随机化器。
func NewGaussian(mean, stddev float64, opts ...Option) *Gaussian {
	return &Gaussian{mean: mean, stddev: stddev, rnd: newRand(opts)}
}

// Randomize 采样 N(mean, stddev²)；current 被忽略。
func (g *Gaussian) Randomize(_ float32) float32 {
	return float32(g.rnd.NormFloat64()*g.stddev + g.mean)
}
