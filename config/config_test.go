package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/wdkit/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromYAML(t *testing.T) {
	path := writeFile(t, "train.yaml", `
train:
  norm_type: WOE_ZSCORE
  learning_rate: 0.05
  optimizer: adagrad
  continuous: true
  checkpoint_key: "prod:wdl:v3"
  gzip_checkpoint: true
  filter_expr: 'record.age != null'
model:
  hidden_nodes: [64, 32]
  activations: [relu, tanh]
  embed_column_ids: [3, 5]
  embed_dim: 16
  l2: 0.001
`)

	cfg, err := LoadFromYAML(path)
	if err != nil {
		t.Fatalf("LoadFromYAML: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Train.NormType != "WOE_ZSCORE" || cfg.NormType() != core.NormWoeZScore {
		t.Errorf("norm type = %q", cfg.Train.NormType)
	}
	if cfg.Train.LearningRate != 0.05 || cfg.Train.Optimizer != "adagrad" {
		t.Error("train params not parsed")
	}
	if !cfg.Train.Continuous || cfg.Train.CheckpointKey != "prod:wdl:v3" || !cfg.Train.GzipCheckpoint {
		t.Error("checkpoint params not parsed")
	}
	if len(cfg.Model.HiddenNodes) != 2 || cfg.Model.HiddenNodes[0] != 64 {
		t.Error("hidden nodes not parsed")
	}
	if cfg.Model.EmbedDim != 16 || cfg.Model.L2 != 0.001 {
		t.Error("model params not parsed")
	}
}

func TestLoadFromJSON(t *testing.T) {
	path := writeFile(t, "train.json", `{
  "train": {"norm_type": "ZSCORE", "learning_rate": 0.1},
  "model": {"hidden_nodes": [8]}
}`)
	cfg, err := LoadFromJSON(path)
	if err != nil {
		t.Fatalf("LoadFromJSON: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	// 缺省填充
	if cfg.Model.EmbedDim != DefaultEmbedDim {
		t.Errorf("embed dim default = %d, want %d", cfg.Model.EmbedDim, DefaultEmbedDim)
	}
}

func TestValidate_Errors(t *testing.T) {
	base := func() *TrainConfig {
		return &TrainConfig{
			Train: TrainParams{NormType: "ZSCORE", LearningRate: 0.1},
			Model: ModelParams{HiddenNodes: []int{8}},
		}
	}

	tests := []struct {
		name string
		mod  func(*TrainConfig)
	}{
		{"bad norm type", func(c *TrainConfig) { c.Train.NormType = "MINMAX" }},
		{"zero learning rate", func(c *TrainConfig) { c.Train.LearningRate = 0 }},
		{"bad optimizer", func(c *TrainConfig) { c.Train.Optimizer = "momentum" }},
		{"continuous without checkpoint key", func(c *TrainConfig) { c.Train.Continuous = true }},
		{"no hidden nodes", func(c *TrainConfig) { c.Model.HiddenNodes = nil }},
		{"negative hidden nodes", func(c *TrainConfig) { c.Model.HiddenNodes = []int{-1} }},
		{"too many activations", func(c *TrainConfig) { c.Model.Activations = []string{"relu", "relu"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mod(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config must validate: %v", err)
	}
}

func TestLoadColumnStats_JSON(t *testing.T) {
	path := writeFile(t, "columns.json", `[
  {"column_id": 0, "name": "raw::age", "kind": 0, "mean": 30, "stddev": 8, "cutoff": 4,
   "bin_boundaries": [0, 30, 60], "bin_woe": [0.5, -0.3, -1.2, 0.0]},
  {"column_id": 1, "name": "raw::city", "kind": 1, "bin_categories": ["SH", "BJ|TJ"]}
]`)

	columns, err := LoadColumnStats(path)
	if err != nil {
		t.Fatalf("LoadColumnStats: %v", err)
	}
	if len(columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(columns))
	}
	if columns[0].Kind != core.KindNumerical || columns[0].Mean != 30 {
		t.Error("numerical column not parsed")
	}
	if columns[1].Kind != core.KindCategorical || columns[1].BinCategories[1] != "BJ|TJ" {
		t.Error("categorical column not parsed")
	}
}

func TestLoadColumnStats_YAML(t *testing.T) {
	path := writeFile(t, "columns.yaml", `
- column_id: 0
  name: age
  kind: 0
  mean: 30
  stddev: 8
`)
	columns, err := LoadColumnStats(path)
	if err != nil {
		t.Fatalf("LoadColumnStats: %v", err)
	}
	if len(columns) != 1 || columns[0].Name != "age" {
		t.Error("yaml column stats not parsed")
	}
}

func TestLoadColumnStats_DuplicateID(t *testing.T) {
	path := writeFile(t, "columns.json", `[
  {"column_id": 0, "name": "a", "kind": 0},
  {"column_id": 0, "name": "b", "kind": 0}
]`)
	if _, err := LoadColumnStats(path); err == nil {
		t.Error("duplicate column id must fail")
	}
}

func TestLoadColumnStats_InvalidWoe(t *testing.T) {
	path := writeFile(t, "columns.json", `[
  {"column_id": 0, "name": "a", "kind": 1,
   "bin_categories": ["A", "B"], "bin_woe": [0.1, 0.2]}
]`)
	if _, err := LoadColumnStats(path); err == nil {
		t.Error("bin_woe without missing slot must fail")
	}
}
