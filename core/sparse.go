package core

// SparseInput 是稀疏类别输入：某一列命中的 bin 下标。
// Index 允许等于该列类别索引的大小（保留的缺失下标），
// 模型前向时越界下标统一落到缺失槽位。
type SparseInput struct {
	ColumnID int
	Index    int
}
