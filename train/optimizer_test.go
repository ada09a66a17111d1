package train

import (
	"math"
	"testing"

	"github.com/rushteam/wdkit/core"
	"github.com/rushteam/wdkit/model"
)

func testModel(t *testing.T, l2 float32) *model.WideAndDeep {
	t.Helper()
	m, err := model.NewWideAndDeep(model.Arch{
		DenseColumnIDs: []int{0},
		WideColumnIDs:  []int{1},
		BinCounts:      map[int]int{1: 2},
		L2:             l2,
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func constGrads(m *model.WideAndDeep, g float32, bias float32) *model.WideAndDeep {
	grads := m.ZeroClone()
	for _, vec := range grads.ParamVectors() {
		for i := range vec {
			vec[i] = g
		}
	}
	grads.WideBias = bias
	return grads
}

func TestNewOptimizer(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		wantErr  bool
	}{
		{"sgd", "sgd", false},
		{"SGD", "sgd", false},
		{"", "sgd", false},
		{"adagrad", "adagrad", false},
		{"momentum", "", true},
	}
	for _, tt := range tests {
		opt, err := NewOptimizer(tt.name, 0.1)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewOptimizer(%q): expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewOptimizer(%q): %v", tt.name, err)
			continue
		}
		if opt.Name() != tt.wantName {
			t.Errorf("NewOptimizer(%q).Name() = %q, want %q", tt.name, opt.Name(), tt.wantName)
		}
	}
}

func TestSGD_Step(t *testing.T) {
	m := testModel(t, 0)
	m.WideWeights[1][0] = 1.0
	m.WideBias = 0.5

	opt := &SGD{LearningRate: 0.1}
	if err := opt.Step(m, constGrads(m, 2, 1)); err != nil {
		t.Fatalf("Step: %v", err)
	}

	// w = 1 - 0.1*2 = 0.8
	if got := m.WideWeights[1][0]; math.Abs(float64(got)-0.8) > 1e-6 {
		t.Errorf("weight = %v, want 0.8", got)
	}
	// bias = 0.5 - 0.1*1 = 0.4
	if got := m.WideBias; math.Abs(float64(got)-0.4) > 1e-6 {
		t.Errorf("bias = %v, want 0.4", got)
	}
}

func TestSGD_L2Decay(t *testing.T) {
	m := testModel(t, 0.5)
	m.WideWeights[1][0] = 1.0
	m.WideBias = 1.0

	opt := &SGD{LearningRate: 0.1}
	if err := opt.Step(m, constGrads(m, 0, 0)); err != nil {
		t.Fatal(err)
	}

	// 零梯度下权重仍被衰减：w = 1 - 0.1*(0 + 0.5*1) = 0.95
	if got := m.WideWeights[1][0]; math.Abs(float64(got)-0.95) > 1e-6 {
		t.Errorf("weight = %v, want 0.95", got)
	}
	// bias 不做衰减
	if m.WideBias != 1.0 {
		t.Errorf("bias = %v, want unchanged 1.0", m.WideBias)
	}
}

func TestOptimizer_L2SkipsLayerBias(t *testing.T) {
	for _, newOpt := range []func() Optimizer{
		func() Optimizer { return &SGD{LearningRate: 0.1} },
		func() Optimizer { return &AdaGrad{LearningRate: 0.1} },
	} {
		opt := newOpt()
		m := testModel(t, 0.5)
		m.Layers[0].Weights[0][0] = 1.0
		m.Layers[0].Bias[0] = 1.0

		if err := opt.Step(m, constGrads(m, 0, 0)); err != nil {
			t.Fatalf("%s: %v", opt.Name(), err)
		}

		// 零梯度下层权重被 L2 衰减，层 bias 保持不动
		if got := m.Layers[0].Weights[0][0]; got >= 1.0 {
			t.Errorf("%s: layer weight = %v, want decayed below 1.0", opt.Name(), got)
		}
		if got := m.Layers[0].Bias[0]; got != 1.0 {
			t.Errorf("%s: layer bias = %v, want unchanged 1.0", opt.Name(), got)
		}
	}
}

func TestAdaGrad_Step(t *testing.T) {
	m := testModel(t, 0)
	m.WideWeights[1][0] = 1.0

	opt := &AdaGrad{LearningRate: 0.1}
	if err := opt.Step(m, constGrads(m, 2, 0)); err != nil {
		t.Fatal(err)
	}

	// 第一步：acc = 4, w = 1 - 0.1*2/(√4+ε) ≈ 0.9
	if got := m.WideWeights[1][0]; math.Abs(float64(got)-0.9) > 1e-4 {
		t.Errorf("weight after step 1 = %v, want ≈0.9", got)
	}

	w1 := m.WideWeights[1][0]
	if err := opt.Step(m, constGrads(m, 2, 0)); err != nil {
		t.Fatal(err)
	}
	// 累积平方梯度增长，第二步步长必然更小
	step1 := 1.0 - float64(w1)
	step2 := float64(w1 - m.WideWeights[1][0])
	if step2 >= step1 {
		t.Errorf("adagrad step must shrink: step1=%v step2=%v", step1, step2)
	}
}

func TestOptimizer_ShapeMismatch(t *testing.T) {
	m := testModel(t, 0)
	other, err := model.NewWideAndDeep(model.Arch{
		DenseColumnIDs: []int{0},
		WideColumnIDs:  []int{1},
		BinCounts:      map[int]int{1: 5},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, opt := range []Optimizer{&SGD{LearningRate: 0.1}, &AdaGrad{LearningRate: 0.1}} {
		err := opt.Step(m, other.ZeroClone())
		if err == nil {
			t.Errorf("%s: expected shape mismatch error", opt.Name())
			continue
		}
		if !core.IsShapeMismatch(err) {
			t.Errorf("%s: expected SHAPE_MISMATCH, got %v", opt.Name(), err)
		}
	}
}
