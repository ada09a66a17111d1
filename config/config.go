// Package config 提供训练任务与列统计的配置加载（支持 YAML/JSON）。
// 上游系统（建模平台/调度器）产出这些文件，本包只负责解析与校验。
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/wdkit/core"
)

// DefaultEmbedDim 是 embedding 输出维度的缺省值。
const DefaultEmbedDim = 8

// TrainConfig 是一次训练任务的完整配置。
type TrainConfig struct {
	Train TrainParams `yaml:"train" json:"train"`
	Model ModelParams `yaml:"model" json:"model"`
}

// TrainParams 是训练过程参数。
type TrainParams struct {
	// NormType 归一化模式（ZSCORE/WOE/WOE_ZSCORE 等），训练与推理必须一致
	NormType string `yaml:"norm_type" json:"norm_type"`

	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`

	// Optimizer 优化器名称：sgd / adagrad
	Optimizer string `yaml:"optimizer" json:"optimizer"`

	// Continuous 是否启用持续训练（从已有 checkpoint 恢复权重）
	Continuous bool `yaml:"continuous" json:"continuous"`

	// CheckpointKey 是 checkpoint 在 Store 中的 key
	CheckpointKey string `yaml:"checkpoint_key" json:"checkpoint_key"`

	// GzipCheckpoint 写 checkpoint 时是否 gzip（加载端自动识别）
	GzipCheckpoint bool `yaml:"gzip_checkpoint" json:"gzip_checkpoint"`

	// FilterExpr 是可选的 CEL 行过滤表达式（如 `record.age != null`），
	// 用于批量打分/数据集挑选，空串表示不过滤
	FilterExpr string `yaml:"filter_expr" json:"filter_expr"`
}

// ModelParams 是 Wide&Deep 图的结构参数。
type ModelParams struct {
	// HiddenNodes 各隐层神经元数；Activations 与之一一对应（缺省 relu）
	HiddenNodes []int    `yaml:"hidden_nodes" json:"hidden_nodes"`
	Activations []string `yaml:"activations" json:"activations"`

	// EmbedColumnIDs 走 embedding 的类别列；为空表示全部类别列
	EmbedColumnIDs []int `yaml:"embed_column_ids" json:"embed_column_ids"`

	// EmbedDim 统一的 embedding 输出维度；<=0 时取 DefaultEmbedDim
	EmbedDim int `yaml:"embed_dim" json:"embed_dim"`

	// L2 正则系数
	L2 float32 `yaml:"l2" json:"l2"`
}

// LoadFromYAML 从 YAML 文件加载训练配置。
func LoadFromYAML(path string) (*TrainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var cfg TrainConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

// LoadFromJSON 从 JSON 文件加载训练配置。
func LoadFromJSON(path string) (*TrainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var cfg TrainConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &cfg, nil
}

// Validate 校验配置并填充缺省值。
func (c *TrainConfig) Validate() error {
	if _, err := core.ParseNormType(c.Train.NormType); err != nil {
		return fmt.Errorf("train.norm_type: %w", err)
	}
	if c.Train.LearningRate <= 0 {
		return fmt.Errorf("train.learning_rate must be positive, got %v", c.Train.LearningRate)
	}
	switch strings.ToLower(c.Train.Optimizer) {
	case "", "sgd", "adagrad":
	default:
		return fmt.Errorf("train.optimizer: unknown optimizer %q", c.Train.Optimizer)
	}
	if c.Train.Continuous && c.Train.CheckpointKey == "" {
		return fmt.Errorf("train.checkpoint_key is required when train.continuous is enabled")
	}
	if len(c.Model.HiddenNodes) == 0 {
		return fmt.Errorf("model.hidden_nodes must not be empty")
	}
	for i, n := range c.Model.HiddenNodes {
		if n <= 0 {
			return fmt.Errorf("model.hidden_nodes[%d] must be positive, got %d", i, n)
		}
	}
	if len(c.Model.Activations) > len(c.Model.HiddenNodes) {
		return fmt.Errorf("model.activations has %d entries for %d hidden layers",
			len(c.Model.Activations), len(c.Model.HiddenNodes))
	}
	if c.Model.EmbedDim <= 0 {
		c.Model.EmbedDim = DefaultEmbedDim
	}
	return nil
}

// NormType 返回解析后的归一化模式；Validate 通过后调用不会失败。
func (c *TrainConfig) NormType() core.NormType {
	nt, _ := core.ParseNormType(c.Train.NormType)
	return nt
}

// LoadColumnStats 从文件加载列统计（按扩展名识别 YAML/JSON），并校验每列不变式。
// 列统计由上游统计作业产出，本函数是它进入训练/推理核心的唯一入口。
func LoadColumnStats(path string) ([]*core.ColumnStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var columns []*core.ColumnStats
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &columns)
	default:
		err = yaml.Unmarshal(data, &columns)
	}
	if err != nil {
		return nil, fmt.Errorf("parse column stats: %w", err)
	}

	seen := make(map[int]struct{}, len(columns))
	for _, cs := range columns {
		if err := cs.Validate(); err != nil {
			return nil, fmt.Errorf("column %d (%s): %w", cs.ColumnID, cs.Name, err)
		}
		if _, dup := seen[cs.ColumnID]; dup {
			return nil, fmt.Errorf("duplicate column id %d", cs.ColumnID)
		}
		seen[cs.ColumnID] = struct{}{}
	}
	return columns, nil
}
