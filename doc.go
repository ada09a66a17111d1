// Package wdkit 是一个 Wide&Deep 表格模型工具包（Wide&Deep Kit）。
//
// 设计要点：
// - 一套权重，两侧复用：训练侧（train.Coordinator 同步聚合）与推理侧（inference.Engine 独立加载）共享同一份二进制模型格式
// - 归一化即契约：列统计（core.ColumnStats）与归一化方式（core.NormType）随模型一起序列化，推理无需外部配置即可复现训练时的特征变换
// - 存储可插拔：checkpoint 与训练指标通过 core.Store 抽象落地（内存/文件/Redis）
package wdkit

import (
	"io"

	"github.com/rushteam/wdkit/inference"
	"github.com/rushteam/wdkit/model"
)

// 轻量 facade：便于用户直接 import "wdkit" 使用核心入口。
type Engine = inference.Engine
type Bundle = model.Bundle

// LoadEngine 从 r 加载模型包并构建独立推理引擎。
func LoadEngine(r io.Reader, opts ...model.LoadOption) (*Engine, error) {
	return inference.LoadEngine(r, opts...)
}
