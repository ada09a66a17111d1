package feature

import (
	"context"

	"github.com/rushteam/wdkit/core"
)

// RecordSource 是原始记录源的统一接口，采用策略模式。
//
// 推理引擎的输入是「列名 -> 原始值」的记录，记录可能来自：
//   - 在线 Feature Store（FeastSource，生产）
//   - 内存静态数据（StaticSource，测试/回放）
//   - 业务方自行拼装（直接调用 inference.Engine.Compute）
//
// 通过实现此接口，业务方可以完全自定义特征来源，无需修改库代码。
type RecordSource interface {
	// Name 返回记录源名称（用于日志/监控）
	Name() string

	// FetchRecords 按实体行批量获取原始记录，
	// 返回的记录与 entityRows 一一对应，缺失特征的记录可以为 nil。
	FetchRecords(ctx context.Context, entityRows []map[string]any) ([]map[string]any, error)

	// Close 释放资源
	Close() error
}

// StaticSource 是内存实现的 RecordSource，用于测试和离线回放。
// 记录按实体 key 索引，key 由 KeyFunc 从实体行计算得出。
type StaticSource struct {
	records map[string]map[string]any
	keyFn   func(entityRow map[string]any) string
}

// NewStaticSource 创建静态记录源。
// keyFn 为空时取实体行中任一字符串字段作为 key（适用于单实体字段的场景）。
func NewStaticSource(records map[string]map[string]any, keyFn func(map[string]any) string) *StaticSource {
	if keyFn == nil {
		keyFn = defaultEntityKey
	}
	return &StaticSource{records: records, keyFn: keyFn}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) FetchRecords(ctx context.Context, entityRows []map[string]any) ([]map[string]any, error) {
	if len(entityRows) == 0 {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "feature: entity rows are required")
	}
	out := make([]map[string]any, len(entityRows))
	for i, row := range entityRows {
		out[i] = s.records[s.keyFn(row)]
	}
	return out, nil
}

func (s *StaticSource) Close() error { return nil }

func defaultEntityKey(row map[string]any) string {
	for _, v := range row {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

var _ RecordSource = (*StaticSource)(nil)
