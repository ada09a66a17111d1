package core

import "strings"

// CategoryGroupDelimiter 是合并类别的分隔符。
// 上游分箱作业可能把多个同义原始取值合并到同一个 bin，
// 合并后的类别以此分隔符拼接存储（如 "A|B" 表示 A、B 共享一个 bin）。
const CategoryGroupDelimiter = "|"

// ColumnNamespaceDelimiter 是列名中命名空间与简单名的分隔符（如 "raw::age"）。
const ColumnNamespaceDelimiter = "::"

// ColumnKind 表示特征列的类型。
type ColumnKind int32

const (
	// KindNumerical 数值列：参与 dense 输入与数值分箱
	KindNumerical ColumnKind = iota
	// KindCategorical 类别列：参与 wide/embedding 输入与类别分箱
	KindCategorical
	// KindHybrid 混合列：数值分箱 + 类别分箱同时存在
	KindHybrid
)

// IsNumerical 返回该列是否包含数值语义（数值列或混合列）。
func (k ColumnKind) IsNumerical() bool { return k == KindNumerical || k == KindHybrid }

// IsCategorical 返回该列是否包含类别语义（类别列或混合列）。
func (k ColumnKind) IsCategorical() bool { return k == KindCategorical || k == KindHybrid }

func (k ColumnKind) String() string {
	switch k {
	case KindNumerical:
		return "numerical"
	case KindCategorical:
		return "categorical"
	case KindHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ColumnStats 是单列特征的不可变统计信息，由上游统计作业产出。
//
// 约定：
//   - BinWoe/BinWgtWoe 的长度 = bin 数 + 1，最后一个槽位固定表示缺失值 bin
//   - 数值列的 bin 数 = len(BinBoundaries)，边界是各 bin 的左端点，
//     最后一个 bin 对右侧开放；类别列 = len(BinCategories)；混合列为两者之和
//   - Cutoff 是 z-score 截断值，符号在使用前会被归一化为正
type ColumnStats struct {
	ColumnID int    `json:"column_id" yaml:"column_id"`
	Name     string `json:"name" yaml:"name"`

	Kind ColumnKind `json:"kind" yaml:"kind"`

	Mean   float64 `json:"mean" yaml:"mean"`
	Stddev float64 `json:"stddev" yaml:"stddev"`
	Cutoff float64 `json:"cutoff" yaml:"cutoff"`

	// WOE 变换后的均值/标准差，用于 WOE_ZSCORE 复合归一化
	WoeMean      float64 `json:"woe_mean" yaml:"woe_mean"`
	WoeStddev    float64 `json:"woe_stddev" yaml:"woe_stddev"`
	WgtWoeMean   float64 `json:"wgt_woe_mean" yaml:"wgt_woe_mean"`
	WgtWoeStddev float64 `json:"wgt_woe_stddev" yaml:"wgt_woe_stddev"`

	// BinBoundaries 数值分箱边界（升序）；纯类别列为空
	BinBoundaries []float64 `json:"bin_boundaries" yaml:"bin_boundaries"`
	// BinCategories 每个 bin 对应的类别标签；可能包含分隔符拼接的合并类别
	BinCategories []string `json:"bin_categories" yaml:"bin_categories"`

	BinWoe    []float64 `json:"bin_woe" yaml:"bin_woe"`
	BinWgtWoe []float64 `json:"bin_wgt_woe" yaml:"bin_wgt_woe"`
}

// SimpleName 返回去掉命名空间前缀的列名（"raw::age" → "age"）。
// 没有命名空间时原样返回。
func (c *ColumnStats) SimpleName() string {
	if idx := strings.LastIndex(c.Name, ColumnNamespaceDelimiter); idx >= 0 {
		return c.Name[idx+len(ColumnNamespaceDelimiter):]
	}
	return c.Name
}

// Validate 校验统计信息自身的不变式。
func (c *ColumnStats) Validate() error {
	bins := len(c.BinBoundaries)
	switch c.Kind {
	case KindCategorical:
		bins = len(c.BinCategories)
	case KindHybrid:
		bins = len(c.BinBoundaries) + len(c.BinCategories)
	}
	if len(c.BinWoe) > 0 && len(c.BinWoe) != bins+1 {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput, "column stats: bin_woe length must be bins+1")
	}
	if len(c.BinWgtWoe) > 0 && len(c.BinWgtWoe) != bins+1 {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput, "column stats: bin_wgt_woe length must be bins+1")
	}
	return nil
}

// CategoryIndex 是原始类别字符串到 bin 下标的映射。
// 未命中的类别统一落到保留的缺失下标（MissingIndex）。
type CategoryIndex map[string]int

// BuildCategoryIndex 根据 bin 类别列表构建类别索引。
// 合并类别（含 CategoryGroupDelimiter）会被展开：每个同义取值都指向同一个 bin 下标。
// 展开发生在每次构建时，持久化的仍是合并后的标签。
func BuildCategoryIndex(binCategories []string) CategoryIndex {
	idx := make(CategoryIndex, len(binCategories))
	for i, cate := range binCategories {
		if strings.Contains(cate, CategoryGroupDelimiter) {
			for _, part := range strings.Split(cate, CategoryGroupDelimiter) {
				idx[part] = i
			}
		} else {
			idx[cate] = i
		}
	}
	return idx
}

// MissingIndex 返回缺失/未知类别的保留下标：恒为类别索引的大小（最后一个有效下标 +1）。
// 该下标与任何已定义 bin 都不重合。
func (idx CategoryIndex) MissingIndex() int { return len(idx) }

// Lookup 返回原始取值对应的 bin 下标；未命中时返回缺失下标。
func (idx CategoryIndex) Lookup(raw string) int {
	if i, ok := idx[raw]; ok {
		return i
	}
	return idx.MissingIndex()
}
