package feast

import (
	"context"
	"time"
)

// Client 是 Feast Feature Store 的客户端接口。
//
// 推理侧使用 Feast 在线存储按实体拉取原始特征值，
// 拉取到的值经 feature.FeastSource 转换成记录后交给归一化/打分。
//
// 设计原则（DDD）：
//   - 领域层定义接口，基础设施层（GrpcClient）实现
//   - 训练/推理代码只依赖此接口，可替换为任意 Feature Store
//
// 参考：https://github.com/feast-dev/feast
type Client interface {
	// GetOnlineFeatures 获取在线特征（用于实时打分）
	//
	// 参数：
	//   - features: 特征名称列表，例如 ["user_stats:age", "user_stats:city"]
	//   - entityRows: 实体行，例如 [{"user_id": 1001}]
	//
	// 返回每个实体行对应的特征向量（key 为特征名称）。
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	// Features 特征名称列表，例如 ["user_stats:age", "user_stats:city"]
	Features []string

	// EntityRows 实体行，例如 [{"user_id": 1001}, {"user_id": 1002}]
	EntityRows []map[string]any

	// Project 项目名称（可选，缺省使用客户端配置的项目）
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 特征向量列表，与请求的实体行一一对应
	FeatureVectors []FeatureVector
}

// FeatureVector 单个实体行的特征向量
type FeatureVector struct {
	// Values 特征值，key 为特征名称
	Values map[string]any

	// EntityRow 对应的实体行
	EntityRow map[string]any
}

// ClientOption 客户端配置选项
type ClientOption func(*ClientConfig)

// ClientConfig 客户端配置
type ClientConfig struct {
	// Endpoint 服务端点，如 "localhost:6565"
	Endpoint string

	// Project 项目名称
	Project string

	// Timeout 单次请求超时
	Timeout time.Duration

	// Auth 认证信息（可选）
	Auth *AuthConfig
}

// AuthConfig 认证配置
type AuthConfig struct {
	// Type 认证类型，目前支持 "static"（gRPC 静态 Token）
	Type string

	// Token 静态 Token
	Token string
}

// WithTimeout 配置选项：设置请求超时
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithAuth 配置选项：设置认证信息
func WithAuth(auth *AuthConfig) ClientOption {
	return func(c *ClientConfig) {
		c.Auth = auth
	}
}
