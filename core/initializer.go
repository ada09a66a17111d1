package core

// WeightInitializer 是权重初始化的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（weight）实现
//   - 实现除自身随机源外无状态；随机源在构造时注入，便于测试（可播种）
//
// 约定：
//   - 返回的长度/形状必须与请求完全一致
//   - 每个元素是独立采样
//   - 对有限的参数范围，任何实现都不得产出 NaN/Inf
//
// 实现：
//   - weight.RangeRandom 实现此接口（区间均匀分布）
//   - weight.Random 实现此接口（包装任意 Randomizer 分布）
type WeightInitializer interface {
	// InitWeight 初始化单个权重
	InitWeight() float32

	// InitVector 初始化长度为 length 的权重向量
	InitVector(length int) []float32

	// InitMatrix 初始化 rows×cols 的权重矩阵
	InitMatrix(rows, cols int) [][]float32
}
