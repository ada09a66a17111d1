package model

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/rushteam/wdkit/core"
)

// FormatVersion 是当前二进制模型文件的格式版本。
// 版本字段随文件头写入；加载时校验，不支持的版本直接报错，
// 而不是记录后继续解析（避免未定义行为）。
const FormatVersion int32 = 1

// Bundle 是一次持久化的完整内容：模型图 + 列统计 + 归一化模式。
// Version 是加载时读到的格式版本，作为返回值的一部分携带，
// 不使用任何进程级全局状态，保证并发加载互不影响。
type Bundle struct {
	Version  int32
	NormType core.NormType
	Columns  []*core.ColumnStats
	Model    *WideAndDeep
}

// SaveOption 控制序列化行为。
type SaveOption func(*saveOptions)

type saveOptions struct {
	gzip bool
}

// WithGzip 保存时启用 gzip 压缩；加载端按魔数自动识别，无需区分。
func WithGzip() SaveOption {
	return func(o *saveOptions) { o.gzip = true }
}

// LoadOption 控制反序列化行为。
type LoadOption func(*loadOptions)

type loadOptions struct {
	rawColumnNames bool
}

// WithRawColumnNames 加载时保留列名的命名空间前缀（默认剥离为简单名）。
func WithRawColumnNames() LoadOption {
	return func(o *loadOptions) { o.rawColumnNames = true }
}

// Save 按版本化的大端二进制布局写出 Bundle：
//
//	int32 version | float32 ×2 保留 | float64 保留 | string 保留 |
//	string normType | int32 columnCount | columnCount × 列统计 | 模型记录
//
// 类别索引不落盘：合并类别原样存储，由加载方重新展开。
func Save(w io.Writer, b *Bundle, opts ...SaveOption) error {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	out := w
	var gz *gzip.Writer
	if o.gzip {
		gz = gzip.NewWriter(w)
		out = gz
	}
	enc := &encoder{w: out}

	enc.writeInt32(FormatVersion)
	enc.writeFloat32(0)
	enc.writeFloat32(0)
	enc.writeFloat64(0)
	enc.writeString("")
	enc.writeString(string(b.NormType))

	enc.writeInt32(int32(len(b.Columns)))
	for _, cs := range b.Columns {
		enc.writeColumnStats(cs)
	}
	enc.writeModel(b.Model)

	if enc.err != nil {
		return fmt.Errorf("save model: %w", enc.err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("save model: close gzip: %w", err)
		}
	}
	return nil
}

// Load 从字节流还原 Bundle。流可以是裸二进制，也可以是 gzip 压缩后的，
// 按 gzip 魔数前缀自动识别并透明解压。
//
// 反序列化会校验：格式版本、归一化模式、模型记录与列 id 列表的形状一致性；
// 任何一项不符都让本次加载失败并把错误交给调用方（冷加载没有任何回退余地）。
func Load(r io.Reader, opts ...LoadOption) (*Bundle, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("load model: open gzip: %w", err)
		}
		defer gz.Close()
		return load(gz, &o)
	}
	return load(br, &o)
}

func load(r io.Reader, o *loadOptions) (*Bundle, error) {
	dec := &decoder{r: r}

	version := dec.readInt32()
	if dec.err != nil {
		return nil, fmt.Errorf("load model: read header: %w", dec.err)
	}
	if version != FormatVersion {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeUnsupportedVersion,
			fmt.Sprintf("model: unsupported format version %d (expect %d)", version, FormatVersion))
	}

	dec.readFloat32()
	dec.readFloat32()
	dec.readFloat64()
	dec.readString()

	normStr := dec.readString()
	if dec.err != nil {
		return nil, fmt.Errorf("load model: read header: %w", dec.err)
	}
	normType, err := core.ParseNormType(normStr)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	columnCount := int(dec.readInt32())
	if dec.err != nil {
		return nil, fmt.Errorf("load model: read column count: %w", dec.err)
	}
	columns := make([]*core.ColumnStats, 0, columnCount)
	for i := 0; i < columnCount; i++ {
		cs := dec.readColumnStats()
		if dec.err != nil {
			return nil, fmt.Errorf("load model: read column %d: %w", i, dec.err)
		}
		if !o.rawColumnNames {
			cs.Name = cs.SimpleName()
		}
		columns = append(columns, cs)
	}

	m, err := dec.readModel()
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if dec.err != nil {
		return nil, fmt.Errorf("load model: %w", dec.err)
	}

	return &Bundle{
		Version:  version,
		NormType: normType,
		Columns:  columns,
		Model:    m,
	}, nil
}

// ---- 编码 ----

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) write(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.BigEndian, v)
}

func (e *encoder) writeInt32(v int32)     { e.write(v) }
func (e *encoder) writeFloat32(v float32) { e.write(v) }
func (e *encoder) writeFloat64(v float64) { e.write(v) }

func (e *encoder) writeString(s string) {
	if e.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		e.err = fmt.Errorf("string too long: %d", len(s))
		return
	}
	e.write(uint16(len(s)))
	if e.err == nil {
		_, e.err = e.w.Write([]byte(s))
	}
}

func (e *encoder) writeFloat64s(vs []float64) {
	e.writeInt32(int32(len(vs)))
	for _, v := range vs {
		e.writeFloat64(v)
	}
}

func (e *encoder) writeFloat32s(vs []float32) {
	e.writeInt32(int32(len(vs)))
	for _, v := range vs {
		e.writeFloat32(v)
	}
}

func (e *encoder) writeStrings(vs []string) {
	e.writeInt32(int32(len(vs)))
	for _, v := range vs {
		e.writeString(v)
	}
}

func (e *encoder) writeInts(vs []int) {
	e.writeInt32(int32(len(vs)))
	for _, v := range vs {
		e.writeInt32(int32(v))
	}
}

func (e *encoder) writeMatrix(m [][]float32) {
	rows := len(m)
	cols := 0
	if rows > 0 {
		cols = len(m[0])
	}
	e.writeInt32(int32(rows))
	e.writeInt32(int32(cols))
	for _, row := range m {
		for _, v := range row {
			e.writeFloat32(v)
		}
	}
}

func (e *encoder) writeColumnStats(cs *core.ColumnStats) {
	e.writeInt32(int32(cs.ColumnID))
	e.writeString(cs.Name)
	e.writeInt32(int32(cs.Kind))
	e.writeFloat64s(cs.BinBoundaries)
	e.writeStrings(cs.BinCategories)
	e.writeFloat64s(cs.BinWoe)
	e.writeFloat64s(cs.BinWgtWoe)
	e.writeFloat64(cs.Mean)
	e.writeFloat64(cs.Stddev)
	e.writeFloat64(cs.WoeMean)
	e.writeFloat64(cs.WoeStddev)
	e.writeFloat64(cs.WgtWoeMean)
	e.writeFloat64(cs.WgtWoeStddev)
	e.writeFloat64(cs.Cutoff)
}

func (e *encoder) writeModel(m *WideAndDeep) {
	e.writeInts(m.DenseColumnIDs)
	e.writeInts(m.EmbedColumnIDs)
	e.writeInts(m.WideColumnIDs)
	for _, id := range m.EmbedColumnIDs {
		e.writeMatrix(m.EmbedTables[id])
	}
	for _, id := range m.WideColumnIDs {
		e.writeFloat32s(m.WideWeights[id])
	}
	e.writeFloat32(m.WideBias)
	e.writeInt32(int32(len(m.Layers)))
	for _, l := range m.Layers {
		e.writeMatrix(l.Weights)
		e.writeFloat32s(l.Bias)
		e.writeString(string(l.Act))
	}
	e.writeString(string(m.OutputAct))
	e.writeFloat32(m.L2)
}

// ---- 解码 ----

type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) read(v any) {
	if d.err != nil {
		return
	}
	d.err = binary.Read(d.r, binary.BigEndian, v)
}

func (d *decoder) readInt32() int32 {
	var v int32
	d.read(&v)
	return v
}

func (d *decoder) readFloat32() float32 {
	var v float32
	d.read(&v)
	return v
}

func (d *decoder) readFloat64() float64 {
	var v float64
	d.read(&v)
	return v
}

func (d *decoder) readString() string {
	var n uint16
	d.read(&n)
	if d.err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	_, d.err = io.ReadFull(d.r, buf)
	return string(buf)
}

func (d *decoder) readLen(what string) int {
	n := int(d.readInt32())
	if d.err == nil && n < 0 {
		d.err = fmt.Errorf("negative %s length %d", what, n)
	}
	return n
}

func (d *decoder) readFloat64s() []float64 {
	n := d.readLen("float64 slice")
	if d.err != nil || n == 0 {
		return nil
	}
	vs := make([]float64, n)
	for i := range vs {
		vs[i] = d.readFloat64()
	}
	return vs
}

func (d *decoder) readFloat32s() []float32 {
	n := d.readLen("float32 slice")
	if d.err != nil || n == 0 {
		return nil
	}
	vs := make([]float32, n)
	for i := range vs {
		vs[i] = d.readFloat32()
	}
	return vs
}

func (d *decoder) readStrings() []string {
	n := d.readLen("string slice")
	if d.err != nil || n == 0 {
		return nil
	}
	vs := make([]string, n)
	for i := range vs {
		vs[i] = d.readString()
	}
	return vs
}

func (d *decoder) readInts() []int {
	n := d.readLen("int slice")
	if d.err != nil || n == 0 {
		return nil
	}
	vs := make([]int, n)
	for i := range vs {
		vs[i] = int(d.readInt32())
	}
	return vs
}

func (d *decoder) readMatrix() [][]float32 {
	rows := d.readLen("matrix rows")
	cols := d.readLen("matrix cols")
	if d.err != nil {
		return nil
	}
	m := make([][]float32, rows)
	for i := range m {
		m[i] = make([]float32, cols)
		for j := range m[i] {
			m[i][j] = d.readFloat32()
		}
	}
	return m
}

func (d *decoder) readColumnStats() *core.ColumnStats {
	cs := &core.ColumnStats{}
	cs.ColumnID = int(d.readInt32())
	cs.Name = d.readString()
	cs.Kind = core.ColumnKind(d.readInt32())
	cs.BinBoundaries = d.readFloat64s()
	cs.BinCategories = d.readStrings()
	cs.BinWoe = d.readFloat64s()
	cs.BinWgtWoe = d.readFloat64s()
	cs.Mean = d.readFloat64()
	cs.Stddev = d.readFloat64()
	cs.WoeMean = d.readFloat64()
	cs.WoeStddev = d.readFloat64()
	cs.WgtWoeMean = d.readFloat64()
	cs.WgtWoeStddev = d.readFloat64()
	cs.Cutoff = d.readFloat64()
	return cs
}

func (d *decoder) readModel() (*WideAndDeep, error) {
	m := &WideAndDeep{
		EmbedTables: make(map[int][][]float32),
		WideWeights: make(map[int][]float32),
	}
	m.DenseColumnIDs = d.readInts()
	m.EmbedColumnIDs = d.readInts()
	m.WideColumnIDs = d.readInts()
	for _, id := range m.EmbedColumnIDs {
		t := d.readMatrix()
		if d.err == nil && len(t) == 0 {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeShapeMismatch,
				fmt.Sprintf("model: embed column %d: empty table", id))
		}
		m.EmbedTables[id] = t
	}
	for _, id := range m.WideColumnIDs {
		v := d.readFloat32s()
		if d.err == nil && len(v) == 0 {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeShapeMismatch,
				fmt.Sprintf("model: wide column %d: empty weights", id))
		}
		m.WideWeights[id] = v
	}
	m.WideBias = d.readFloat32()

	layerCount := d.readLen("layers")
	if d.err != nil {
		return nil, d.err
	}
	expectIn := -1
	for i := 0; i < layerCount; i++ {
		weights := d.readMatrix()
		bias := d.readFloat32s()
		actName := d.readString()
		if d.err != nil {
			return nil, d.err
		}
		act, err := ParseActivation(actName)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		l := &DenseLayer{Weights: weights, Bias: bias, Act: act}
		if len(l.Weights) != len(l.Bias) || (expectIn >= 0 && l.InDim() != expectIn) {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeShapeMismatch,
				fmt.Sprintf("model: layer %d: inconsistent shape %dx%d", i, l.OutDim(), l.InDim()))
		}
		expectIn = l.OutDim()
		m.Layers = append(m.Layers, l)
	}

	outAct, err := ParseActivation(d.readString())
	if err != nil {
		return nil, err
	}
	m.OutputAct = outAct
	m.L2 = d.readFloat32()

	// 模型记录与列 id 列表的形状契约：deep 首层输入维度必须等于 dense + embedding 拼接宽度
	if len(m.Layers) > 0 && m.Layers[0].InDim() != m.DeepInDim() {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeShapeMismatch,
			fmt.Sprintf("model: first layer expects %d inputs, columns provide %d",
				m.Layers[0].InDim(), m.DeepInDim()))
	}
	return m, nil
}
