package train

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/rushteam/wdkit/config"
	"github.com/rushteam/wdkit/core"
	"github.com/rushteam/wdkit/model"
	"github.com/rushteam/wdkit/weight"
)

// State 是协调器状态机的状态。
type State int32

const (
	StateUninitialized State = iota
	StateAwaitingFirstRound
	StateAggregating
	StateConverged
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingFirstRound:
		return "awaiting_first_round"
	case StateAggregating:
		return "aggregating"
	case StateConverged:
		return "converged"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Coordinator 是同步训练的 master 侧协调器：持有唯一的全局模型，
// 每轮把所有 worker 结果聚合成一份梯度并执行一步优化器更新。
//
// 约定：
//   - 第 0 轮忽略 worker 结果（此时 worker 尚未拿到一致的模型），
//     只做初始化或 checkpoint 恢复，并把模型广播出去
//   - 此后每轮恰好一次"聚合 + 更新"，协调器是全局模型的唯一写者
//   - 同步屏障（所有 worker 上报齐才进入下一轮）由外部执行框架保证，
//     本协调器只是逐轮的纯变换器，不驱动循环，也不判断收敛
//
// 容错：持续训练开启时若 checkpoint 加载失败（IO 错误/字节损坏/形状不符），
// 记一条告警并回退到随机初始化，训练继续而不是中止。
type Coordinator struct {
	cfg     *config.TrainConfig
	columns []*core.ColumnStats

	wnd  *model.WideAndDeep
	opt  Optimizer
	init core.WeightInitializer

	// store 为空表示不持久化（无 checkpoint、无指标记录）
	store core.Store

	state     State
	iteration int
}

// CoordinatorOption 配置协调器的可选依赖。
type CoordinatorOption func(*Coordinator)

// WithStore 注入 checkpoint/指标存储（持续训练与每轮落盘依赖它）。
func WithStore(s core.Store) CoordinatorOption {
	return func(c *Coordinator) { c.store = s }
}

// WithInitializer 注入权重初始化器（默认 [-0.1, 0.1) 均匀分布）。
func WithInitializer(init core.WeightInitializer) CoordinatorOption {
	return func(c *Coordinator) { c.init = init }
}

// WithOptimizer 覆盖配置中的优化器。
func WithOptimizer(opt Optimizer) CoordinatorOption {
	return func(c *Coordinator) { c.opt = opt }
}

// NewCoordinator 按训练配置 + 列统计构建协调器：完成列 id 分组与模型图构建，
// 但不填充权重 —— 权重在第 0 轮初始化或恢复。
func NewCoordinator(cfg *config.TrainConfig, columns []*core.ColumnStats, opts ...CoordinatorOption) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("train config: %w", err)
	}
	arch, err := buildArch(cfg, columns)
	if err != nil {
		return nil, err
	}
	wnd, err := model.NewWideAndDeep(arch)
	if err != nil {
		return nil, fmt.Errorf("build wide&deep: %w", err)
	}

	c := &Coordinator{
		cfg:     cfg,
		columns: columns,
		wnd:     wnd,
		state:   StateAwaitingFirstRound,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.init == nil {
		c.init = weight.NewRangeRandom(-0.1, 0.1)
	}
	if c.opt == nil {
		c.opt, err = NewOptimizer(cfg.Train.Optimizer, cfg.Train.LearningRate)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// buildArch 按列统计推导模型结构：数值列走 dense，类别列走 wide；
// embedding 列取配置指定的子集，未指定时全部类别列都走 embedding。
func buildArch(cfg *config.TrainConfig, columns []*core.ColumnStats) (model.Arch, error) {
	arch := model.Arch{
		BinCounts: make(map[int]int),
		L2:        cfg.Model.L2,
	}
	categorical := make(map[int]bool)
	for _, cs := range columns {
		if cs.Kind.IsNumerical() {
			arch.DenseColumnIDs = append(arch.DenseColumnIDs, cs.ColumnID)
		}
		if cs.Kind.IsCategorical() {
			if len(cs.BinCategories) == 0 {
				return model.Arch{}, fmt.Errorf("column %d (%s): categorical without bin categories", cs.ColumnID, cs.Name)
			}
			arch.WideColumnIDs = append(arch.WideColumnIDs, cs.ColumnID)
			arch.BinCounts[cs.ColumnID] = len(cs.BinCategories)
			categorical[cs.ColumnID] = true
		}
	}

	embedIDs := cfg.Model.EmbedColumnIDs
	if len(embedIDs) == 0 {
		embedIDs = arch.WideColumnIDs
	}
	for _, id := range embedIDs {
		if !categorical[id] {
			return model.Arch{}, fmt.Errorf("embed column %d is not a categorical column", id)
		}
		arch.EmbedColumnIDs = append(arch.EmbedColumnIDs, id)
		arch.EmbedDims = append(arch.EmbedDims, cfg.Model.EmbedDim)
	}

	arch.HiddenNodes = cfg.Model.HiddenNodes
	arch.Activations = cfg.Model.Activations
	return arch, nil
}

// State 返回当前状态。
func (c *Coordinator) State() State { return c.state }

// Iteration 返回下一轮的迭代号（第 0 轮执行前为 0）。
func (c *Coordinator) Iteration() int { return c.iteration }

// Model 返回全局模型。广播后的同一轮内 worker 只读；
// 下一轮 Round 返回前协调器不会再次修改它。
func (c *Coordinator) Model() *model.WideAndDeep { return c.wnd }

// Round 执行一轮：第 0 轮忽略 results 做初始化/恢复并广播；
// 此后每轮把所有 worker 结果聚合成一份梯度、执行优化器更新，
// 返回可广播的最新权重与聚合后的训练/验证误差。
func (c *Coordinator) Round(ctx context.Context, results []*Params) (*Params, error) {
	switch c.state {
	case StateAwaitingFirstRound:
		c.initOrRecoverWeights(ctx)
		c.state = StateAggregating
		c.iteration = 1
		return &Params{SerializationType: SerializationWeights, Model: c.wnd}, nil

	case StateAggregating:
		agg, err := c.aggregate(results)
		if err != nil {
			return nil, err
		}
		if err := c.opt.Step(c.wnd, agg.Model); err != nil {
			// 形状不符的梯度属于契约违反，不是可恢复的输入错误
			c.state = StateFailed
			return nil, err
		}
		c.persistRound(ctx, agg)
		c.iteration++
		return &Params{
			SerializationType: SerializationWeights,
			Model:             c.wnd,
			TrainCount:        agg.TrainCount,
			ValidationCount:   agg.ValidationCount,
			TrainError:        agg.TrainError,
			ValidationError:   agg.ValidationError,
		}, nil

	default:
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInternalError,
			fmt.Sprintf("train: round called in state %s", c.state))
	}
}

// Converge 将状态机置为收敛（收敛判定由外部循环做出）。
func (c *Coordinator) Converge() { c.state = StateConverged }

// Fail 将状态机置为失败。
func (c *Coordinator) Fail() { c.state = StateFailed }

// aggregate 把所有 worker 结果归并为一份聚合梯度。
// 从零值容器开始累加而不是复用首个结果，保证聚合不破坏调用方的负载。
func (c *Coordinator) aggregate(results []*Params) (*Params, error) {
	if len(results) == 0 {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInvalidInput,
			fmt.Sprintf("train: iteration %d: no worker results", c.iteration))
	}
	agg := &Params{
		SerializationType: SerializationGradients,
		Model:             c.wnd.ZeroClone(),
	}
	for _, p := range results {
		if err := agg.Combine(p); err != nil {
			return nil, err
		}
	}
	return agg, nil
}

// initOrRecoverWeights 第 0 轮的权重来源：持续训练优先从 checkpoint 恢复，
// 任何一步失败都降级为随机初始化；失败会被记录，但不会中断训练。
func (c *Coordinator) initOrRecoverWeights(ctx context.Context) {
	if !c.cfg.Train.Continuous || c.store == nil {
		c.wnd.InitWeights(c.init)
		return
	}

	data, err := c.store.Get(ctx, c.cfg.Train.CheckpointKey)
	if err != nil {
		log.Printf("continuous training enabled but checkpoint %q load failed, do random initialization: %v",
			c.cfg.Train.CheckpointKey, err)
		c.wnd.InitWeights(c.init)
		return
	}
	bundle, err := model.Load(bytes.NewReader(data))
	if err != nil {
		log.Printf("continuous training enabled but checkpoint %q is not loadable, do random initialization: %v",
			c.cfg.Train.CheckpointKey, err)
		c.wnd.InitWeights(c.init)
		return
	}
	if err := c.wnd.UpdateFrom(bundle.Model); err != nil {
		log.Printf("continuous training enabled but checkpoint %q shapes mismatch current config, do random initialization: %v",
			c.cfg.Train.CheckpointKey, err)
		c.wnd.InitWeights(c.init)
		return
	}
	log.Printf("recovered model weights from checkpoint %q (version %d)", c.cfg.Train.CheckpointKey, bundle.Version)
}

// persistRound 尽力而为地落盘：checkpoint + 本轮聚合指标。
// 失败只记日志，不影响训练轮次的推进。
func (c *Coordinator) persistRound(ctx context.Context, agg *Params) {
	if c.store == nil || c.cfg.Train.CheckpointKey == "" {
		return
	}

	var buf bytes.Buffer
	var saveOpts []model.SaveOption
	if c.cfg.Train.GzipCheckpoint {
		saveOpts = append(saveOpts, model.WithGzip())
	}
	bundle := &model.Bundle{NormType: c.cfg.NormType(), Columns: c.columns, Model: c.wnd}
	if err := model.Save(&buf, bundle, saveOpts...); err != nil {
		log.Printf("iteration %d: serialize checkpoint failed: %v", c.iteration, err)
	} else if err := c.store.Set(ctx, c.cfg.Train.CheckpointKey, buf.Bytes()); err != nil {
		log.Printf("iteration %d: write checkpoint %q failed: %v", c.iteration, c.cfg.Train.CheckpointKey, err)
	}

	kv, ok := c.store.(core.KeyValueStore)
	if !ok {
		return
	}
	metrics, err := json.Marshal(map[string]any{
		"train_count":      agg.TrainCount,
		"validation_count": agg.ValidationCount,
		"train_error":      agg.TrainError,
		"validation_error": agg.ValidationError,
	})
	if err != nil {
		return
	}
	iter := strconv.Itoa(c.iteration)
	if err := kv.HSet(ctx, c.cfg.Train.CheckpointKey+":metrics", iter, metrics); err != nil && !core.IsNotSupported(err) {
		log.Printf("iteration %d: record metrics failed: %v", c.iteration, err)
	}
	if agg.ValidationCount > 0 {
		avg := agg.ValidationError / float64(agg.ValidationCount)
		if err := kv.ZAdd(ctx, c.cfg.Train.CheckpointKey+":validation_error", avg, iter); err != nil && !core.IsNotSupported(err) {
			log.Printf("iteration %d: record validation error failed: %v", c.iteration, err)
		}
	}
}
