package model

import (
	"math"
	"testing"

	"github.com/rushteam/wdkit/core"
)

// tinyArch 构造单 dense 列 + 单类别列（embedding+wide 复用）+ 单隐层的小模型结构。
func tinyArch() Arch {
	return Arch{
		DenseColumnIDs: []int{0},
		EmbedColumnIDs: []int{1},
		EmbedDims:      []int{2},
		WideColumnIDs:  []int{1},
		BinCounts:      map[int]int{1: 3},
		HiddenNodes:    []int{4},
	}
}

func TestNewWideAndDeep(t *testing.T) {
	w, err := NewWideAndDeep(tinyArch())
	if err != nil {
		t.Fatalf("NewWideAndDeep: %v", err)
	}

	// dense 1 维 + embedding 2 维
	if got := w.DeepInDim(); got != 3 {
		t.Errorf("DeepInDim() = %d, want 3", got)
	}
	// 3 个 bin + 缺失槽位
	if got := len(w.EmbedTables[1]); got != 4 {
		t.Errorf("embed table rows = %d, want 4", got)
	}
	if got := len(w.WideWeights[1]); got != 4 {
		t.Errorf("wide weights = %d, want 4", got)
	}
	// 1 个隐层 + 输出层
	if got := len(w.Layers); got != 2 {
		t.Errorf("layers = %d, want 2", got)
	}
	if w.Layers[1].OutDim() != 1 || w.Layers[1].Act != ActIdentity {
		t.Error("output layer must be 1-dim identity")
	}
}

func TestNewWideAndDeep_InvalidArch(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Arch)
	}{
		{"embed dims mismatch", func(a *Arch) { a.EmbedDims = nil }},
		{"missing bin count", func(a *Arch) { delete(a.BinCounts, 1) }},
		{"zero embed dim", func(a *Arch) { a.EmbedDims = []int{0} }},
		{"zero hidden nodes", func(a *Arch) { a.HiddenNodes = []int{0} }},
		{"bad activation", func(a *Arch) { a.Activations = []string{"softplus"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arch := tinyArch()
			tt.mod(&arch)
			if _, err := NewWideAndDeep(arch); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// handBuilt 返回一个权重手工设定、输出可手算的模型：
// 无隐层，deep 输出 = dense[0]*1 + embed 两维之和，wide = 权重查表 + bias。
func handBuilt(t *testing.T) *WideAndDeep {
	t.Helper()
	w, err := NewWideAndDeep(Arch{
		DenseColumnIDs: []int{0},
		EmbedColumnIDs: []int{1},
		EmbedDims:      []int{2},
		WideColumnIDs:  []int{1},
		BinCounts:      map[int]int{1: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	w.EmbedTables[1] = [][]float32{{0.1, 0.2}, {0.3, 0.4}, {0, 0}} // 末行缺失槽位
	w.WideWeights[1] = []float32{1, 2, -1}
	w.WideBias = 0.5
	// 输出层 1×3：恒等累加全部 deep 输入
	w.Layers[0].Weights = [][]float32{{1, 1, 1}}
	w.Layers[0].Bias = []float32{0}
	return w
}

func sigmoid(x float64) float32 {
	return float32(1.0 / (1.0 + math.Exp(-x)))
}

func TestForward_KnownValue(t *testing.T) {
	w := handBuilt(t)

	out := w.Forward(
		[]float32{2},
		[]core.SparseInput{{ColumnID: 1, Index: 1}},
		[]core.SparseInput{{ColumnID: 1, Index: 0}},
	)
	if len(out) != 1 {
		t.Fatalf("output dim = %d, want 1", len(out))
	}
	// deep = 2 + 0.3 + 0.4 = 2.7; wide = 0.5 + 1 = 1.5; sigmoid(4.2)
	want := sigmoid(float64(float32(2.7) + float32(1.5)))
	if math.Abs(float64(out[0]-want)) > 1e-6 {
		t.Errorf("Forward = %v, want %v", out[0], want)
	}
}

func TestForward_MissingIndexClamped(t *testing.T) {
	w := handBuilt(t)

	// 下标越界（如展开后的缺失保留下标大于表行数）一律落到末行缺失槽位
	outMissing := w.Forward(
		[]float32{0},
		[]core.SparseInput{{ColumnID: 1, Index: 99}},
		[]core.SparseInput{{ColumnID: 1, Index: 99}},
	)
	outLast := w.Forward(
		[]float32{0},
		[]core.SparseInput{{ColumnID: 1, Index: 2}},
		[]core.SparseInput{{ColumnID: 1, Index: 2}},
	)
	if outMissing[0] != outLast[0] {
		t.Errorf("out-of-bounds index should hit missing slot: %v vs %v", outMissing[0], outLast[0])
	}
}

func TestForward_Pure(t *testing.T) {
	w := handBuilt(t)
	dense := []float32{1.5}
	embed := []core.SparseInput{{ColumnID: 1, Index: 0}}
	wide := []core.SparseInput{{ColumnID: 1, Index: 1}}

	first := w.Forward(dense, embed, wide)[0]
	for i := 0; i < 5; i++ {
		if got := w.Forward(dense, embed, wide)[0]; got != first {
			t.Fatalf("Forward must be pure: got %v then %v", first, got)
		}
	}
}

func TestCombine(t *testing.T) {
	a := handBuilt(t)
	b := handBuilt(t)

	aBefore := a.WideWeights[1][0]
	if err := a.Combine(b); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if got, want := a.WideWeights[1][0], aBefore*2; got != want {
		t.Errorf("combined wide weight = %v, want %v", got, want)
	}
	if got := a.WideBias; got != 1.0 {
		t.Errorf("combined bias = %v, want 1.0", got)
	}
	// b 不被修改
	if b.WideWeights[1][0] != aBefore {
		t.Error("Combine must not mutate the argument")
	}
}

func TestCombine_ShapeMismatch(t *testing.T) {
	a := handBuilt(t)
	other, err := NewWideAndDeep(tinyArch())
	if err != nil {
		t.Fatal(err)
	}
	err = a.Combine(other)
	if err == nil {
		t.Fatal("expected shape mismatch error")
	}
	if !core.IsShapeMismatch(err) {
		t.Errorf("expected SHAPE_MISMATCH, got %v", err)
	}
}

func TestUpdateFrom(t *testing.T) {
	src := handBuilt(t)
	dst := src.ZeroClone()

	if err := dst.UpdateFrom(src); err != nil {
		t.Fatalf("UpdateFrom: %v", err)
	}
	if dst.WideBias != src.WideBias {
		t.Errorf("bias not copied: %v vs %v", dst.WideBias, src.WideBias)
	}
	if dst.EmbedTables[1][1][0] != src.EmbedTables[1][1][0] {
		t.Error("embed table not copied")
	}

	// 拷贝后互不影响
	dst.EmbedTables[1][1][0] = 99
	if src.EmbedTables[1][1][0] == 99 {
		t.Error("UpdateFrom must deep copy, not alias")
	}
}

func TestZeroClone(t *testing.T) {
	w := handBuilt(t)
	z := w.ZeroClone()

	if !w.ShapeEquals(z) {
		t.Fatal("ZeroClone must preserve shape")
	}
	for _, vec := range z.ParamVectors() {
		for _, v := range vec {
			if v != 0 {
				t.Fatal("ZeroClone must be all zeros")
			}
		}
	}
	if z.WideBias != 0 {
		t.Error("ZeroClone bias must be zero")
	}
}

func TestParamVectors_Writable(t *testing.T) {
	w := handBuilt(t)
	vecs := w.ParamVectors()
	if len(vecs) == 0 {
		t.Fatal("no param vectors")
	}
	// 返回底层切片，就地更新直接作用到模型
	vecs[0][0] = 42
	if w.EmbedTables[1][0][0] != 42 {
		t.Error("ParamVectors must expose the underlying slices")
	}
}
