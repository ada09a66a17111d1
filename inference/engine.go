// Package inference 提供独立推理引擎：只依赖模型文件本身，
// 不依赖训练执行框架，加载后即可对命名字段的原始记录离线打分。
package inference

import (
	"io"

	"github.com/rushteam/wdkit/core"
	"github.com/rushteam/wdkit/model"
	"github.com/rushteam/wdkit/norm"
	"github.com/rushteam/wdkit/pkg/conv"
)

// Engine 包装加载好的 WideAndDeep 模型 + 逐列元数据，
// 把 (列名 → 原始取值) 的记录转换为 dense/sparse 输入张量并产出分数。
//
// 构造完成后所有字段只读，任意并发的 Compute 调用无需加锁。
// 加载新引擎与已有实例完全独立，互不共享可变状态。
type Engine struct {
	wnd      *model.WideAndDeep
	normType core.NormType

	// 逐列元数据，key 均为列 id；类别索引在构造时由合并类别展开而来
	names         map[int]string
	cutoffs       map[int]float64
	cateIndex     map[int]core.CategoryIndex
	binBoundaries map[int][]float64
	woes          map[int][]float64
	wgtWoes       map[int][]float64
	means         map[int]float64
	stddevs       map[int]float64
	woeMeans      map[int]float64
	woeStddevs    map[int]float64
	wgtWoeMeans   map[int]float64
	wgtWoeStddevs map[int]float64
}

// NewEngine 从已加载的 Bundle 构建推理引擎。
// 合并类别（"A|B"）在这里展开进类别索引 —— 每次构建都重新展开，持久化层不存展开结果。
func NewEngine(b *model.Bundle) (*Engine, error) {
	n := len(b.Columns)
	e := &Engine{
		wnd:           b.Model,
		normType:      b.NormType,
		names:         make(map[int]string, n),
		cutoffs:       make(map[int]float64, n),
		cateIndex:     make(map[int]core.CategoryIndex, n),
		binBoundaries: make(map[int][]float64, n),
		woes:          make(map[int][]float64, n),
		wgtWoes:       make(map[int][]float64, n),
		means:         make(map[int]float64, n),
		stddevs:       make(map[int]float64, n),
		woeMeans:      make(map[int]float64, n),
		woeStddevs:    make(map[int]float64, n),
		wgtWoeMeans:   make(map[int]float64, n),
		wgtWoeStddevs: make(map[int]float64, n),
	}
	for _, cs := range b.Columns {
		if err := cs.Validate(); err != nil {
			return nil, err
		}
		id := cs.ColumnID
		e.names[id] = cs.Name
		e.cutoffs[id] = cs.Cutoff
		e.means[id] = cs.Mean
		e.stddevs[id] = cs.Stddev
		e.woeMeans[id] = cs.WoeMean
		e.woeStddevs[id] = cs.WoeStddev
		e.wgtWoeMeans[id] = cs.WgtWoeMean
		e.wgtWoeStddevs[id] = cs.WgtWoeStddev

		if cs.Kind.IsCategorical() {
			e.cateIndex[id] = core.BuildCategoryIndex(cs.BinCategories)
		} else {
			e.cateIndex[id] = core.CategoryIndex{}
		}
		if cs.Kind.IsNumerical() {
			e.binBoundaries[id] = cs.BinBoundaries
		}
		e.woes[id] = cs.BinWoe
		e.wgtWoes[id] = cs.BinWgtWoe
	}
	return e, nil
}

// LoadEngine 从字节流加载模型并构建推理引擎（gzip 自动识别）。
func LoadEngine(r io.Reader, opts ...model.LoadOption) (*Engine, error) {
	b, err := model.Load(r, opts...)
	if err != nil {
		return nil, err
	}
	return NewEngine(b)
}

// NormType 返回引擎生效的归一化模式。
func (e *Engine) NormType() core.NormType { return e.normType }

// Model 返回内部模型（推理期间只读）。
func (e *Engine) Model() *model.WideAndDeep { return e.wnd }

// Compute 对一条原始记录打分。
//
// record 是 (列名 → 取值) 的映射：数值可以是数字或可解析字符串，类别为原始字符串。
// 记录里缺失、为 nil 或无法解析的字段，一律按缺失值策略降级处理 ——
// 打分永远返回分数，不因脏数据失败。
func (e *Engine) Compute(record map[string]any) []float32 {
	return e.wnd.Forward(e.denseInputs(record), e.embedInputs(record), e.wideInputs(record))
}

// ComputeScore 返回模型输出的第一维（二分类场景的常用便捷入口）。
func (e *Engine) ComputeScore(record map[string]any) float32 {
	out := e.Compute(record)
	if len(out) == 0 {
		return 0
	}
	return out[0]
}

func (e *Engine) valueByColumnID(id int, record map[string]any) any {
	return record[e.names[id]]
}

func (e *Engine) denseInputs(record map[string]any) []float32 {
	dense := make([]float32, len(e.wnd.DenseColumnIDs))
	for i, id := range e.wnd.DenseColumnIDs {
		dense[i] = e.normalize(id, e.valueByColumnID(id, record))
	}
	return dense
}

func (e *Engine) sparseInputs(ids []int, record map[string]any) []core.SparseInput {
	inputs := make([]core.SparseInput, 0, len(ids))
	for _, id := range ids {
		idx := e.cateIndex[id]
		if s, ok := conv.ToRawString(e.valueByColumnID(id, record)); ok {
			inputs = append(inputs, core.SparseInput{ColumnID: id, Index: idx.Lookup(s)})
		} else {
			inputs = append(inputs, core.SparseInput{ColumnID: id, Index: idx.MissingIndex()})
		}
	}
	return inputs
}

func (e *Engine) embedInputs(record map[string]any) []core.SparseInput {
	return e.sparseInputs(e.wnd.EmbedColumnIDs, record)
}

func (e *Engine) wideInputs(record map[string]any) []core.SparseInput {
	return e.sparseInputs(e.wnd.WideColumnIDs, record)
}

// normalize 按引擎的归一化模式处理单个 dense 列取值，与 norm.Value 同一套口径。
func (e *Engine) normalize(id int, value any) float32 {
	switch e.normType {
	case core.NormWoe:
		return float32(e.woeValue(id, value, false))
	case core.NormWeightWoe:
		return float32(e.woeValue(id, value, true))
	case core.NormWoeZScore, core.NormWoeZScale:
		return float32(e.woeZScoreValue(id, value, false))
	case core.NormWeightWoeZScore, core.NormWeightWoeZScale:
		return float32(e.woeZScoreValue(id, value, true))
	default:
		return float32(e.zScoreValue(id, value))
	}
}

func (e *Engine) zScoreValue(id int, value any) float64 {
	mean := e.means[id]
	raw := mean
	if s, ok := conv.ToRawString(value); ok {
		if v, ok := conv.ParseFloat(s); ok {
			raw = v
		}
	}
	return norm.ZScore(raw, mean, e.stddevs[id], norm.CheckCutoff(e.cutoffs[id]))
}

func (e *Engine) woeValue(id int, value any, weighted bool) float64 {
	binIndex := -1
	if s, ok := conv.ToRawString(value); ok {
		binIndex = norm.NumericBinIndex(e.binBoundaries[id], s)
	}
	woes := e.woes[id]
	if weighted {
		woes = e.wgtWoes[id]
	}
	return norm.WoeLookup(woes, binIndex)
}

func (e *Engine) woeZScoreValue(id int, value any, weighted bool) float64 {
	woe := e.woeValue(id, value, weighted)
	mean, stddev := e.woeMeans[id], e.woeStddevs[id]
	if weighted {
		mean, stddev = e.wgtWoeMeans[id], e.wgtWoeStddevs[id]
	}
	return norm.ZScore(woe, mean, stddev, norm.CheckCutoff(e.cutoffs[id]))
}
