package model

import (
	"fmt"

	"github.com/rushteam/wdkit/core"
)

// Arch 描述 Wide&Deep 图的结构，由列配置 + 训练参数推导而来。
type Arch struct {
	// DenseColumnIDs 数值列（dense 输入），顺序决定前向输入布局
	DenseColumnIDs []int
	// EmbedColumnIDs 走 embedding 的类别列；EmbedDims 与之一一对应
	EmbedColumnIDs []int
	EmbedDims      []int
	// WideColumnIDs wide 线性部分的类别列
	WideColumnIDs []int
	// BinCounts 每个类别列的 bin 数（不含缺失槽位）
	BinCounts map[int]int
	// HiddenNodes 各隐层神经元数；Activations 与之一一对应（缺省 relu）
	HiddenNodes []int
	Activations []string
	// L2 正则系数
	L2 float32
}

// WideAndDeep 是 Wide&Deep 表格模型图：
//   - Wide 部分：稀疏类别列上的线性模型（每类别一个标量权重 + 全局 bias）
//   - Deep 部分：dense 数值输入拼接 embedding 后过多层感知机
//   - 输出：deep 输出与 wide 标量相加后过输出激活（sigmoid）
//
// 列 id 列表的顺序是布局契约：前向输入、序列化都按此顺序，构造后不再变化。
// 训练循环就地修改权重；推理期间模型只读，可被任意并发安全调用。
type WideAndDeep struct {
	DenseColumnIDs []int
	EmbedColumnIDs []int
	WideColumnIDs  []int

	// EmbedTables 每个 embedding 列独占一张 (binCount+1)×dim 表，末行为缺失槽位
	EmbedTables map[int][][]float32
	// WideWeights 每个 wide 列一个 binCount+1 的权重向量，末位为缺失槽位
	WideWeights map[int][]float32
	WideBias    float32

	Layers    []*DenseLayer
	OutputAct Activation
	L2        float32
}

// NewWideAndDeep 按结构描述构建模型图。权重全部置零，
// 由 WeightInitializer 或 checkpoint 恢复填充（见 InitWeights / UpdateFrom）。
func NewWideAndDeep(arch Arch) (*WideAndDeep, error) {
	if len(arch.EmbedDims) != len(arch.EmbedColumnIDs) {
		return nil, fmt.Errorf("embed dims (%d) must match embed columns (%d)",
			len(arch.EmbedDims), len(arch.EmbedColumnIDs))
	}
	w := &WideAndDeep{
		DenseColumnIDs: append([]int(nil), arch.DenseColumnIDs...),
		EmbedColumnIDs: append([]int(nil), arch.EmbedColumnIDs...),
		WideColumnIDs:  append([]int(nil), arch.WideColumnIDs...),
		EmbedTables:    make(map[int][][]float32, len(arch.EmbedColumnIDs)),
		WideWeights:    make(map[int][]float32, len(arch.WideColumnIDs)),
		OutputAct:      ActSigmoid,
		L2:             arch.L2,
	}

	deepIn := len(arch.DenseColumnIDs)
	for i, id := range arch.EmbedColumnIDs {
		bins, ok := arch.BinCounts[id]
		if !ok || bins <= 0 {
			return nil, fmt.Errorf("embed column %d: missing bin count", id)
		}
		dim := arch.EmbedDims[i]
		if dim <= 0 {
			return nil, fmt.Errorf("embed column %d: invalid embed dim %d", id, dim)
		}
		table := make([][]float32, bins+1) // +1 缺失槽位
		for r := range table {
			table[r] = make([]float32, dim)
		}
		w.EmbedTables[id] = table
		deepIn += dim
	}
	for _, id := range arch.WideColumnIDs {
		bins, ok := arch.BinCounts[id]
		if !ok || bins <= 0 {
			return nil, fmt.Errorf("wide column %d: missing bin count", id)
		}
		w.WideWeights[id] = make([]float32, bins+1)
	}

	in := deepIn
	for i, nodes := range arch.HiddenNodes {
		if nodes <= 0 {
			return nil, fmt.Errorf("hidden layer %d: invalid size %d", i, nodes)
		}
		actName := ""
		if i < len(arch.Activations) {
			actName = arch.Activations[i]
		}
		act, err := ParseActivation(actName)
		if err != nil {
			return nil, fmt.Errorf("hidden layer %d: %w", i, err)
		}
		w.Layers = append(w.Layers, NewDenseLayer(nodes, in, act))
		in = nodes
	}
	// 输出层：回归到 1 维，激活留给 OutputAct 统一处理
	w.Layers = append(w.Layers, NewDenseLayer(1, in, ActIdentity))
	return w, nil
}

// DeepInDim 返回 deep 部分输入向量的维度（dense + 所有 embedding 拼接）。
func (w *WideAndDeep) DeepInDim() int {
	dim := len(w.DenseColumnIDs)
	for _, id := range w.EmbedColumnIDs {
		if t := w.EmbedTables[id]; len(t) > 0 {
			dim += len(t[0])
		}
	}
	return dim
}

// Forward 前向计算，返回模型输出（通常 1 维分数）。
//
// 纯函数：只读权重，不产生任何隐藏状态，允许多条记录并发调用。
// 稀疏下标越界（含保留缺失下标超过表行数的情况）一律落到末行缺失槽位。
func (w *WideAndDeep) Forward(dense []float32, embed, wide []core.SparseInput) []float32 {
	// 1. Wide 线性部分
	wideScore := w.WideBias
	for _, si := range wide {
		weights, ok := w.WideWeights[si.ColumnID]
		if !ok || len(weights) == 0 {
			continue
		}
		wideScore += weights[clampIndex(si.Index, len(weights))]
	}

	// 2. Deep 输入：dense（按 DenseColumnIDs 序）在前，embedding（按 EmbedColumnIDs 序）在后
	deepIn := make([]float32, 0, w.DeepInDim())
	deepIn = append(deepIn, dense...)
	for _, si := range embed {
		table, ok := w.EmbedTables[si.ColumnID]
		if !ok || len(table) == 0 {
			continue
		}
		deepIn = append(deepIn, table[clampIndex(si.Index, len(table))]...)
	}

	// 3. MLP 逐层仿射 + 激活
	cur := deepIn
	for _, layer := range w.Layers {
		cur = layer.Forward(cur)
	}

	// 4. deep 输出与 wide 标量相加，再过输出激活
	out := make([]float32, len(cur))
	for i, v := range cur {
		out[i] = w.OutputAct.Apply(v + wideScore)
	}
	return out
}

// clampIndex 把越界（或缺失保留）下标收敛到末位缺失槽位；负数同样视为缺失。
func clampIndex(idx, size int) int {
	if idx < 0 || idx >= size {
		return size - 1
	}
	return idx
}

// InitWeights 用初始化器填充全部参数（fresh training 的第 0 轮路径）。
func (w *WideAndDeep) InitWeights(init core.WeightInitializer) {
	for _, id := range w.EmbedColumnIDs {
		t := w.EmbedTables[id]
		if len(t) == 0 {
			continue
		}
		w.EmbedTables[id] = init.InitMatrix(len(t), len(t[0]))
	}
	for _, id := range w.WideColumnIDs {
		w.WideWeights[id] = init.InitVector(len(w.WideWeights[id]))
	}
	w.WideBias = init.InitWeight()
	for _, layer := range w.Layers {
		layer.InitWeights(init)
	}
}

// UpdateFrom 把 other 的权重整体覆盖到当前模型（checkpoint 恢复路径）。
// 形状必须完全一致，否则返回 SHAPE_MISMATCH 错误且当前模型保持不变。
func (w *WideAndDeep) UpdateFrom(other *WideAndDeep) error {
	if err := w.checkShape(other); err != nil {
		return err
	}
	dst, src := w.ParamVectors(), other.ParamVectors()
	for i := range dst {
		copy(dst[i], src[i])
	}
	w.WideBias = other.WideBias
	return nil
}

// Combine 把 other 的参数逐元素累加到当前对象（梯度聚合：满足结合律与交换律）。
func (w *WideAndDeep) Combine(other *WideAndDeep) error {
	if err := w.checkShape(other); err != nil {
		return err
	}
	dst, src := w.ParamVectors(), other.ParamVectors()
	for i := range dst {
		for j := range dst[i] {
			dst[i][j] += src[i][j]
		}
	}
	w.WideBias += other.WideBias
	return nil
}

// ZeroClone 返回形状相同、参数全零的模型，用作梯度/优化器状态的容器。
func (w *WideAndDeep) ZeroClone() *WideAndDeep {
	c := &WideAndDeep{
		DenseColumnIDs: append([]int(nil), w.DenseColumnIDs...),
		EmbedColumnIDs: append([]int(nil), w.EmbedColumnIDs...),
		WideColumnIDs:  append([]int(nil), w.WideColumnIDs...),
		EmbedTables:    make(map[int][][]float32, len(w.EmbedTables)),
		WideWeights:    make(map[int][]float32, len(w.WideWeights)),
		OutputAct:      w.OutputAct,
		L2:             w.L2,
	}
	for id, t := range w.EmbedTables {
		nt := make([][]float32, len(t))
		for r := range t {
			nt[r] = make([]float32, len(t[r]))
		}
		c.EmbedTables[id] = nt
	}
	for id, v := range w.WideWeights {
		c.WideWeights[id] = make([]float32, len(v))
	}
	for _, l := range w.Layers {
		c.Layers = append(c.Layers, NewDenseLayer(l.OutDim(), l.InDim(), l.Act))
	}
	return c
}

// ParamVectors 按确定顺序返回全部参数切片（embedding 行 → wide 向量 → 各层权重行与 bias）。
// 返回的是底层切片本身，调用方可就地更新；WideBias 标量不在其中，由各操作单独处理。
func (w *WideAndDeep) ParamVectors() [][]float32 {
	var vecs [][]float32
	for _, id := range w.EmbedColumnIDs {
		for _, row := range w.EmbedTables[id] {
			vecs = append(vecs, row)
		}
	}
	for _, id := range w.WideColumnIDs {
		vecs = append(vecs, w.WideWeights[id])
	}
	for _, l := range w.Layers {
		for _, row := range l.Weights {
			vecs = append(vecs, row)
		}
		vecs = append(vecs, l.Bias)
	}
	return vecs
}

// BiasMask 与 ParamVectors 逐项对齐，标记哪些参数切片是 bias 向量。
// 优化器据此跳过 bias 的 L2 衰减。
func (w *WideAndDeep) BiasMask() []bool {
	var mask []bool
	for _, id := range w.EmbedColumnIDs {
		for range w.EmbedTables[id] {
			mask = append(mask, false)
		}
	}
	for range w.WideColumnIDs {
		mask = append(mask, false)
	}
	for _, l := range w.Layers {
		for range l.Weights {
			mask = append(mask, false)
		}
		mask = append(mask, true)
	}
	return mask
}

// ShapeEquals 判断两个模型的参数形状是否完全一致。
func (w *WideAndDeep) ShapeEquals(other *WideAndDeep) bool {
	return w.checkShape(other) == nil
}

func (w *WideAndDeep) checkShape(other *WideAndDeep) error {
	if other == nil {
		return core.NewDomainError(core.ModuleModel, core.ErrorCodeShapeMismatch, "model: nil model")
	}
	a, b := w.ParamVectors(), other.ParamVectors()
	if len(a) != len(b) {
		return core.NewDomainError(core.ModuleModel, core.ErrorCodeShapeMismatch,
			fmt.Sprintf("model: param vector count mismatch %d vs %d", len(a), len(b)))
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return core.NewDomainError(core.ModuleModel, core.ErrorCodeShapeMismatch,
				fmt.Sprintf("model: param vector %d length mismatch %d vs %d", i, len(a[i]), len(b[i])))
		}
	}
	return nil
}
