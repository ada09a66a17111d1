// Package norm 是特征归一化引擎：把单列的原始取值 + 列统计信息 + 归一化模式
// 转换为喂给模型的数值。训练与独立推理共用同一套实现，保证数值口径一致。
//
// 契约：归一化永不失败 —— 解析失败、缺失值都按文档化的缺省策略降级，
// 不向调用方传播错误。
package norm

import (
	"math"

	"github.com/rushteam/wdkit/core"
	"github.com/rushteam/wdkit/pkg/conv"
)

// DefaultCutoff 是 z-score 截断的缺省值（列统计未配置或非法时使用）。
const DefaultCutoff = 4.0

// CheckCutoff 归一化截断值：符号取正；NaN/Inf 回退到 DefaultCutoff。
// 0 同样回退：列统计里未配置 cutoff 的零值表示缺省，
// 而截断为 0 会把所有 z-score 压成 0，没有合法用途。
func CheckCutoff(cutoff float64) float64 {
	if cutoff == 0 || math.IsNaN(cutoff) || math.IsInf(cutoff, 0) {
		return DefaultCutoff
	}
	return math.Abs(cutoff)
}

// ZScore 计算截断 z-score：clip((value-mean)/stddev, -cutoff, +cutoff)。
// cutoff 由调用方先经 CheckCutoff 归一；stddev 接近 0 时返回 0（均值列无离散度）。
func ZScore(value, mean, stddev, cutoff float64) float64 {
	if stddev < 1e-10 {
		return 0
	}
	z := (value - mean) / stddev
	if z > cutoff {
		return cutoff
	}
	if z < -cutoff {
		return -cutoff
	}
	return z
}

// Value 按模式归一化单列原始取值，是 NormType 封闭集合的唯一分派点。
//
// 策略（与模型文件内的统计口径一一对应）：
//   - WOE / WEIGHT_WOE：bin 查表，未命中落缺失槽位，不做 z-score
//   - WOE_ZSCORE / WEIGHT_WOE_ZSCORE（及 ZSCALE 变体）：WOE 值再按 (woeMean, woeStddev, cutoff) z-score
//   - 其余模式（ZSCORE/ZSCALE/OLD_*/HYBRID/WEIGHT_HYBRID）：原始值 z-score，
//     解析失败或缺失时以列均值替代（即 z=0）
func Value(cs *core.ColumnStats, raw any, mode core.NormType) float32 {
	switch mode {
	case core.NormWoe:
		return float32(woeValue(cs, raw, false))
	case core.NormWeightWoe:
		return float32(woeValue(cs, raw, true))
	case core.NormWoeZScore, core.NormWoeZScale:
		return float32(woeZScoreValue(cs, raw, false))
	case core.NormWeightWoeZScore, core.NormWeightWoeZScale:
		return float32(woeZScoreValue(cs, raw, true))
	default:
		return float32(zScoreValue(cs, raw))
	}
}

func zScoreValue(cs *core.ColumnStats, raw any) float64 {
	value := cs.Mean
	if s, ok := conv.ToRawString(raw); ok {
		if v, ok := conv.ParseFloat(s); ok {
			value = v
		}
	}
	return ZScore(value, cs.Mean, cs.Stddev, CheckCutoff(cs.Cutoff))
}

func woeValue(cs *core.ColumnStats, raw any, weighted bool) float64 {
	binIndex := -1
	if s, ok := conv.ToRawString(raw); ok {
		binIndex = BinIndex(cs, s)
	}
	woes := cs.BinWoe
	if weighted {
		woes = cs.BinWgtWoe
	}
	return WoeLookup(woes, binIndex)
}

func woeZScoreValue(cs *core.ColumnStats, raw any, weighted bool) float64 {
	woe := woeValue(cs, raw, weighted)
	mean, stddev := cs.WoeMean, cs.WoeStddev
	if weighted {
		mean, stddev = cs.WgtWoeMean, cs.WgtWoeStddev
	}
	return ZScore(woe, mean, stddev, CheckCutoff(cs.Cutoff))
}
