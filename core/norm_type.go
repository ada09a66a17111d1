package core

import (
	"fmt"
	"strings"
)

// NormType 是归一化模式，一个封闭集合：
// 每种模式只是数据（公式选择），没有额外行为，统一由 norm 包按模式分派。
type NormType string

const (
	NormZScore       NormType = "ZSCORE"
	NormZScale       NormType = "ZSCALE"
	NormOldZScore    NormType = "OLD_ZSCORE"
	NormOldZScale    NormType = "OLD_ZSCALE"
	NormHybrid       NormType = "HYBRID"
	NormWeightHybrid NormType = "WEIGHT_HYBRID"

	NormWoe       NormType = "WOE"
	NormWeightWoe NormType = "WEIGHT_WOE"

	NormWoeZScore       NormType = "WOE_ZSCORE"
	NormWoeZScale       NormType = "WOE_ZSCALE"
	NormWeightWoeZScore NormType = "WEIGHT_WOE_ZSCORE"
	NormWeightWoeZScale NormType = "WEIGHT_WOE_ZSCALE"
)

var normTypes = map[NormType]struct{}{
	NormZScore: {}, NormZScale: {}, NormOldZScore: {}, NormOldZScale: {},
	NormHybrid: {}, NormWeightHybrid: {},
	NormWoe: {}, NormWeightWoe: {},
	NormWoeZScore: {}, NormWoeZScale: {},
	NormWeightWoeZScore: {}, NormWeightWoeZScale: {},
}

// ParseNormType 解析归一化模式（大小写不敏感）。
func ParseNormType(s string) (NormType, error) {
	nt := NormType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := normTypes[nt]; !ok {
		return "", fmt.Errorf("unknown norm type %q", s)
	}
	return nt, nil
}

// IsWoe 返回该模式是否基于 WOE 查表（含加权与复合 z-score 变体）。
func (t NormType) IsWoe() bool {
	switch t {
	case NormWoe, NormWeightWoe, NormWoeZScore, NormWoeZScale, NormWeightWoeZScore, NormWeightWoeZScale:
		return true
	}
	return false
}

// IsWeighted 返回该模式是否使用加权 WOE 表。
func (t NormType) IsWeighted() bool {
	switch t {
	case NormWeightWoe, NormWeightWoeZScore, NormWeightWoeZScale:
		return true
	}
	return false
}

func (t NormType) String() string { return string(t) }
