// Package dsl 提供基于 CEL (Common Expression Language) 的记录过滤表达式。
// 用于批量打分/数据集挑选时按行过滤原始记录。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
)

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	var err error
	celEnvOnce.Do(func() {
		celEnv, err = cel.NewEnv(
			cel.Variable("record", cel.DynType),
		)
	})
	return celEnv, err
}

// RecordFilter 是编译后的行过滤器：表达式编译一次，Match 可被并发复用。
//
// 表达式语法（CEL 标准语法），record 为 (列名 → 原始取值) 的记录：
//   - 数值：record.age > 30 / record.score >= 0.5
//   - 类别：record.segment == "A"
//   - 逻辑：record.age > 30 && record.segment != "B"
//   - 存在性：record.age != null（CEL 访问不存在的 key 会报错，先判空）
type RecordFilter struct {
	expr string
	prg  cel.Program
}

// NewRecordFilter 编译过滤表达式。空表达式是配置错误，由调用方决定是否启用过滤。
func NewRecordFilter(expr string) (*RecordFilter, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty filter expression")
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %v", err)
	}
	return &RecordFilter{expr: expr, prg: prg}, nil
}

// Expr 返回原始表达式（用于日志/监控）。
func (f *RecordFilter) Expr() string { return f.expr }

// Match 对一条记录求值，返回该行是否通过过滤。
// 求值错误（如访问不存在的 key）返回 error，由调用方决定保留或丢弃。
func (f *RecordFilter) Match(record map[string]any) (bool, error) {
	out, _, err := f.prg.Eval(map[string]any{"record": record})
	if err != nil {
		return false, fmt.Errorf("eval error: %v", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}
