package feast

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
)

// GrpcClient 是基于官方 Feast Go SDK 的 gRPC 客户端实现。
//
// 使用官方 SDK (github.com/feast-dev/feast/sdk/go) 与 Feature Server 通信，
// 二进制协议、连接复用，适合在线打分的低延迟要求。
type GrpcClient struct {
	client   *feastsdk.GrpcClient
	project  string
	endpoint string
}

// NewClient 根据 endpoint 创建 gRPC 客户端。
//
// endpoint 格式为 "host:port" 或 "grpc://host:port"，端口缺省 6565。
//
// 示例：
//
//	client, err := feast.NewClient("localhost:6565", "my_project")
func NewClient(endpoint, project string, opts ...ClientOption) (*GrpcClient, error) {
	host, port := parseEndpoint(endpoint)
	return NewGrpcClient(host, port, project, opts...)
}

// NewGrpcClient 创建基于官方 SDK 的 Feast gRPC 客户端。
func NewGrpcClient(host string, port int, project string, opts ...ClientOption) (*GrpcClient, error) {
	if port == 0 {
		port = 6565 // Feature Server 默认 gRPC 端口
	}

	config := &ClientConfig{
		Endpoint: fmt.Sprintf("%s:%d", host, port),
		Project:  project,
		Timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(config)
	}

	var client *feastsdk.GrpcClient
	var err error
	if config.Auth != nil && config.Auth.Type == "static" && config.Auth.Token != "" {
		security := feastsdk.SecurityConfig{
			EnableTLS:  false,
			Credential: feastsdk.NewStaticCredential(config.Auth.Token),
		}
		client, err = feastsdk.NewSecureGrpcClient(host, port, security)
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("feast: dial %s: %w", config.Endpoint, err)
	}

	return &GrpcClient{
		client:   client,
		project:  project,
		endpoint: config.Endpoint,
	}, nil
}

// GetOnlineFeatures 获取在线特征（实现 Client 接口）
func (c *GrpcClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("feast: features are required")
	}
	if len(req.EntityRows) == 0 {
		return nil, fmt.Errorf("feast: entity rows are required")
	}

	project := req.Project
	if project == "" {
		project = c.project
	}
	if project == "" {
		return nil, fmt.Errorf("feast: project is required")
	}

	entityRows := make([]feastsdk.Row, len(req.EntityRows))
	for i, row := range req.EntityRows {
		entityRow := make(feastsdk.Row, len(row))
		for k, v := range row {
			// SDK 的辅助函数返回 *types.Value，直接赋值避免依赖 protos 包
			switch val := v.(type) {
			case string:
				entityRow[k] = feastsdk.StrVal(val)
			case int:
				entityRow[k] = feastsdk.Int64Val(int64(val))
			case int32:
				entityRow[k] = feastsdk.Int64Val(int64(val))
			case int64:
				entityRow[k] = feastsdk.Int64Val(val)
			case float32:
				entityRow[k] = feastsdk.FloatVal(val)
			case float64:
				entityRow[k] = feastsdk.DoubleVal(val)
			case bool:
				entityRow[k] = feastsdk.BoolVal(val)
			case []byte:
				entityRow[k] = feastsdk.BytesVal(val)
			default:
				entityRow[k] = feastsdk.StrVal(fmt.Sprintf("%v", val))
			}
		}
		entityRows[i] = entityRow
	}

	sdkResp, err := c.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: req.Features,
		Entities: entityRows,
		Project:  project,
	})
	if err != nil {
		return nil, fmt.Errorf("feast: get online features: %w", err)
	}

	rows := sdkResp.Rows()
	if len(rows) != len(req.EntityRows) {
		return nil, fmt.Errorf("feast: response row count mismatch: want %d, got %d", len(req.EntityRows), len(rows))
	}

	featureVectors := make([]FeatureVector, len(rows))
	for i, row := range rows {
		values := make(map[string]any, len(req.Features))
		for _, name := range req.Features {
			if val, ok := row[name]; ok {
				if converted := fromSDKValue(val); converted != nil {
					values[name] = converted
				}
			}
		}
		featureVectors[i] = FeatureVector{
			Values:    values,
			EntityRow: req.EntityRows[i],
		}
	}

	return &GetOnlineFeaturesResponse{FeatureVectors: featureVectors}, nil
}

// Close 关闭客户端连接（实现 Client 接口）
func (c *GrpcClient) Close() error {
	// 官方 SDK 没有显式 Close，连接由 gRPC 库管理
	c.client = nil
	return nil
}

// fromSDKValue 将 SDK 返回的值还原为 Go 原生类型，
// 数值类型统一为 float64，方便后续归一化计算。
func fromSDKValue(val any) any {
	if val == nil {
		return nil
	}
	switch v := val.(type) {
	case string:
		return v
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	case bool:
		if v {
			return float64(1)
		}
		return float64(0)
	case []byte:
		return string(v)
	default:
		s := fmt.Sprintf("%v", val)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	}
}

// parseEndpoint 解析端点地址，返回 host 和 port（无端口时返回 0）
func parseEndpoint(endpoint string) (string, int) {
	endpoint = strings.TrimPrefix(endpoint, "grpc://")
	if host, portStr, ok := strings.Cut(endpoint, ":"); ok {
		if port, err := strconv.Atoi(portStr); err == nil {
			return host, port
		}
	}
	return endpoint, 0
}

var _ Client = (*GrpcClient)(nil)
