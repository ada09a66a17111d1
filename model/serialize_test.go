package model

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/rushteam/wdkit/core"
)

func testBundle(t *testing.T) *Bundle {
	t.Helper()
	return &Bundle{
		NormType: core.NormZScore,
		Columns: []*core.ColumnStats{
			{
				ColumnID: 0, Name: "raw::age", Kind: core.KindNumerical,
				Mean: 30, Stddev: 8, Cutoff: 4,
				BinBoundaries: []float64{0, 30, 60},
				BinWoe:        []float64{0.5, -0.3, 0.2, -1.2},
			},
			{
				ColumnID: 1, Name: "raw::city", Kind: core.KindCategorical,
				BinCategories: []string{"SH", "BJ|TJ"},
			},
		},
		Model: handBuilt(t),
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	b := testBundle(t)

	var buf bytes.Buffer
	if err := Save(&buf, b); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Version != FormatVersion {
		t.Errorf("Version = %d, want %d", loaded.Version, FormatVersion)
	}
	if loaded.NormType != core.NormZScore {
		t.Errorf("NormType = %v, want ZSCORE", loaded.NormType)
	}
	if len(loaded.Columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(loaded.Columns))
	}
	// 默认剥离命名空间前缀
	if loaded.Columns[0].Name != "age" || loaded.Columns[1].Name != "city" {
		t.Errorf("column names = %q, %q; want simple names", loaded.Columns[0].Name, loaded.Columns[1].Name)
	}
	// 合并类别原样存储，不展开
	if loaded.Columns[1].BinCategories[1] != "BJ|TJ" {
		t.Errorf("merged category must be stored verbatim, got %q", loaded.Columns[1].BinCategories[1])
	}

	// 往返后前向输出逐位一致
	dense := []float32{2}
	embed := []core.SparseInput{{ColumnID: 1, Index: 1}}
	wide := []core.SparseInput{{ColumnID: 1, Index: 0}}
	want := b.Model.Forward(dense, embed, wide)
	got := loaded.Model.Forward(dense, embed, wide)
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("forward after round trip = %v, want %v", got, want)
	}
}

func TestSaveLoad_RawColumnNames(t *testing.T) {
	b := testBundle(t)
	var buf bytes.Buffer
	if err := Save(&buf, b); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(bytes.NewReader(buf.Bytes()), WithRawColumnNames())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Columns[0].Name != "raw::age" {
		t.Errorf("WithRawColumnNames must keep namespace, got %q", loaded.Columns[0].Name)
	}
}

func TestSaveLoad_Gzip(t *testing.T) {
	b := testBundle(t)

	var plain, zipped bytes.Buffer
	if err := Save(&plain, b); err != nil {
		t.Fatal(err)
	}
	if err := Save(&zipped, b, WithGzip()); err != nil {
		t.Fatal(err)
	}

	// gzip 魔数在前两字节
	zb := zipped.Bytes()
	if zb[0] != 0x1f || zb[1] != 0x8b {
		t.Fatal("gzip output must start with gzip magic")
	}

	// 加载端自动识别，两种流产出等价的 Bundle
	fromPlain, err := Load(bytes.NewReader(plain.Bytes()))
	if err != nil {
		t.Fatalf("load plain: %v", err)
	}
	fromZip, err := Load(bytes.NewReader(zb))
	if err != nil {
		t.Fatalf("load gzip: %v", err)
	}
	if fromPlain.Model.WideBias != fromZip.Model.WideBias {
		t.Error("gzip and plain streams must decode identically")
	}
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	b := testBundle(t)
	var buf bytes.Buffer
	if err := Save(&buf, b); err != nil {
		t.Fatal(err)
	}

	// 篡改头部版本号
	data := buf.Bytes()
	binary.BigEndian.PutUint32(data[:4], 99)

	_, err := Load(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected unsupported version error")
	}
	if !core.IsUnsupportedVersion(err) {
		t.Errorf("expected UNSUPPORTED_VERSION, got %v", err)
	}
}

func TestLoad_Truncated(t *testing.T) {
	b := testBundle(t)
	var buf bytes.Buffer
	if err := Save(&buf, b); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	// 各个截断点都必须报错而不是 panic
	for _, n := range []int{0, 2, 4, 10, len(data) / 2, len(data) - 1} {
		if _, err := Load(bytes.NewReader(data[:n])); err == nil {
			t.Errorf("truncated at %d bytes: expected error", n)
		}
	}
}

func TestLoad_BadNormType(t *testing.T) {
	b := testBundle(t)
	b.NormType = "BOGUS"
	var buf bytes.Buffer
	if err := Save(&buf, b); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bytes.NewReader(buf.Bytes())); err == nil {
		t.Error("unknown norm type must fail load")
	}
}

func TestLoad_GzipCorrupt(t *testing.T) {
	// 伪造 gzip 魔数但内容损坏
	data := []byte{0x1f, 0x8b, 0x00, 0x01, 0x02}
	if _, err := Load(bytes.NewReader(data)); err == nil {
		t.Error("corrupt gzip stream must fail load")
	}
}
