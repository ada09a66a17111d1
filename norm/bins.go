package norm

import (
	"sort"

	"github.com/rushteam/wdkit/core"
	"github.com/rushteam/wdkit/pkg/conv"
)

// NumericBinIndex 对数值列做 bin 定位：返回 raw 落入的 bin 下标。
// 边界为升序左端点，N 个边界构成 N 个 bin：
// bin i = [boundaries[i], boundaries[i+1])，最后一个 bin = [boundaries[N-1], +inf)。
// raw 解析失败或低于第一个边界时返回 -1（调用方映射到缺失槽位）。
func NumericBinIndex(boundaries []float64, raw string) int {
	v, ok := conv.ParseFloat(raw)
	if !ok || len(boundaries) == 0 {
		return -1
	}
	if v < boundaries[0] {
		return -1
	}
	// sort.SearchFloat64s 返回第一个 >= v 的位置，命中左端点取该 bin，否则取左邻
	i := sort.SearchFloat64s(boundaries, v)
	if i < len(boundaries) && boundaries[i] == v {
		return i
	}
	return i - 1
}

// CategoryBinIndex 对类别列做 bin 定位：查类别索引，未命中返回 -1。
// 注意与 CategoryIndex.Lookup 的区别：Lookup 面向稀疏输入返回保留的缺失下标，
// 这里面向 WOE 查表返回 -1，两者由各自的消费方解释。
func CategoryBinIndex(idx core.CategoryIndex, raw string) int {
	if i, ok := idx[raw]; ok {
		return i
	}
	return -1
}

// BinIndex 按列类型定位 bin：数值列二分查边界，类别列查类别索引；
// 混合列先按数值解析，失败再按类别查。
// 混合列的 WOE 数组先排数值 bin 再排类别 bin，类别下标需加数值 bin 数偏移。
func BinIndex(cs *core.ColumnStats, raw string) int {
	if cs.Kind.IsNumerical() {
		if i := NumericBinIndex(cs.BinBoundaries, raw); i >= 0 {
			return i
		}
		if cs.Kind != core.KindHybrid {
			return -1
		}
	}
	catIdx := CategoryBinIndex(core.BuildCategoryIndex(cs.BinCategories), raw)
	if catIdx < 0 {
		return -1
	}
	if cs.Kind == core.KindHybrid {
		return len(cs.BinBoundaries) + catIdx
	}
	return catIdx
}

// WoeLookup 按 bin 下标取 WOE 值；下标为 -1 或越界时取最后一个槽位（缺失值 bin）。
func WoeLookup(woes []float64, binIndex int) float64 {
	if len(woes) == 0 {
		return 0
	}
	if binIndex < 0 || binIndex >= len(woes) {
		return woes[len(woes)-1]
	}
	return woes[binIndex]
}
