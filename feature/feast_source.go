package feature

import (
	"context"
	"strings"

	"github.com/rushteam/wdkit/core"
	"github.com/rushteam/wdkit/feast"
)

// FeastSource 是基于 Feast 在线存储的 RecordSource 实现。
//
// 把 Feast 的特征名（"view:feature"）映射为模型的列名后组装成记录，
// 缺省映射规则是去掉特征视图前缀（"user_stats:age" -> "age"），
// 也可以通过 WithRename 指定显式映射。
type FeastSource struct {
	client   feast.Client
	features []string
	rename   map[string]string
}

// FeastSourceOption 配置选项
type FeastSourceOption func(*FeastSource)

// WithRename 配置选项：指定 Feast 特征名到列名的显式映射，
// 未出现在映射中的特征仍按缺省规则去前缀。
func WithRename(rename map[string]string) FeastSourceOption {
	return func(s *FeastSource) {
		s.rename = rename
	}
}

// NewFeastSource 创建 Feast 记录源。
// features 是要拉取的 Feast 特征名列表，例如 ["user_stats:age", "user_stats:city"]。
func NewFeastSource(client feast.Client, features []string, opts ...FeastSourceOption) *FeastSource {
	s := &FeastSource{
		client:   client,
		features: features,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FeastSource) Name() string { return "feast" }

func (s *FeastSource) FetchRecords(ctx context.Context, entityRows []map[string]any) ([]map[string]any, error) {
	if len(entityRows) == 0 {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "feature: entity rows are required")
	}

	resp, err := s.client.GetOnlineFeatures(ctx, &feast.GetOnlineFeaturesRequest{
		Features:   s.features,
		EntityRows: entityRows,
	})
	if err != nil {
		return nil, err
	}

	records := make([]map[string]any, len(resp.FeatureVectors))
	for i, fv := range resp.FeatureVectors {
		record := make(map[string]any, len(fv.Values))
		for name, value := range fv.Values {
			record[s.columnName(name)] = value
		}
		records[i] = record
	}
	return records, nil
}

func (s *FeastSource) Close() error { return s.client.Close() }

// columnName 把 Feast 特征名映射为模型列名
func (s *FeastSource) columnName(featureName string) string {
	if mapped, ok := s.rename[featureName]; ok {
		return mapped
	}
	if _, name, ok := strings.Cut(featureName, ":"); ok {
		return name
	}
	return featureName
}

var _ RecordSource = (*FeastSource)(nil)
