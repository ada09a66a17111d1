package inference

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/wdkit/pkg/dsl"
)

// BatchScorer 对一批原始记录并发打分。
// 引擎加载后不可变，打分可任意并发；这里只做 fan-out、限流与可选的行过滤。
type BatchScorer struct {
	engine        *Engine
	maxConcurrent int // 最大并发数（0 表示无限制）
	filter        *dsl.RecordFilter
}

// BatchOption 配置批量打分行为。
type BatchOption func(*BatchScorer)

// WithMaxConcurrent 限制并发打分的 goroutine 数。
func WithMaxConcurrent(n int) BatchOption {
	return func(b *BatchScorer) { b.maxConcurrent = n }
}

// WithFilter 启用行过滤：不通过过滤的记录不打分，结果位置为 nil。
func WithFilter(f *dsl.RecordFilter) BatchOption {
	return func(b *BatchScorer) { b.filter = f }
}

// NewBatchScorer 创建批量打分器。
func NewBatchScorer(e *Engine, opts ...BatchOption) *BatchScorer {
	b := &BatchScorer{engine: e}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Score 并发为每条记录打分，结果与输入按下标一一对应。
// 被过滤掉的记录对应位置为 nil；过滤表达式求值出错时保守起见保留该行并记日志。
// 只有 ctx 取消会让整批失败。
func (b *BatchScorer) Score(ctx context.Context, records []map[string]any) ([][]float32, error) {
	out := make([][]float32, len(records))
	eg, ctx := errgroup.WithContext(ctx)
	if b.maxConcurrent > 0 {
		eg.SetLimit(b.maxConcurrent)
	}

	for i, record := range records {
		i, record := i, record
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if b.filter != nil {
				ok, err := b.filter.Match(record)
				if err != nil {
					log.Printf("record %d: filter %q eval failed, keep record: %v", i, b.filter.Expr(), err)
				} else if !ok {
					return nil
				}
			}
			out[i] = b.engine.Compute(record)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
