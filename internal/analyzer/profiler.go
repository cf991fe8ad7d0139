package analyzer

import (
	"math"
	"math/rand/v2"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"dataset-analyzer/internal/dataset"
	"dataset-analyzer/internal/graph"
)

// column 一列按推断类型转换后的全部值，跨数据集阶段只读
type column struct {
	name   string
	index  int
	typ    graph.LogicalType
	values []dataset.Value
	keys   []string            // values[i].Key()，空值为 ""
	set    map[string]struct{} // 精确唯一值集合（全部行）
	nulls  int
}

// nonNull 非空行数
func (c *column) nonNull() int { return len(c.values) - c.nulls }

// uniqueness 唯一值 / 非空行
func (c *column) uniqueness() float64 {
	if c.nonNull() == 0 {
		return 0
	}
	return float64(len(c.set)) / float64(c.nonNull())
}

// table 单个数据集的中间结果
type table struct {
	ds       *dataset.Dataset
	columns  []*column
	byName   map[string]*column
	profiles []graph.ColumnProfile
	keys     []graph.KeyCandidate
	search   *graph.SearchStats
	notes    []graph.Note
}

func (t *table) column(name string) *column { return t.byName[name] }

func (t *table) profile(name string) *graph.ColumnProfile {
	if c, ok := t.byName[name]; ok {
		return &t.profiles[c.index]
	}
	return nil
}

// primaryKey 首选主键，不存在返回 nil
func (t *table) primaryKey() *graph.KeyCandidate {
	for i := range t.keys {
		if t.keys[i].Primary {
			return &t.keys[i]
		}
	}
	return nil
}

// qualifiedKeys 满足唯一性阈值、可作为外键目标的主键候选
func (t *table) qualifiedKeys(threshold float64) []graph.KeyCandidate {
	var out []graph.KeyCandidate
	for _, k := range t.keys {
		if k.NullFree && k.Uniqueness >= threshold {
			out = append(out, k)
		}
	}
	return out
}

// Profiler 列画像
type Profiler struct {
	cfg    Config
	logger *zap.Logger
}

// NewProfiler 创建列画像器
func NewProfiler(cfg Config, logger *zap.Logger) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Profiler{cfg: cfg, logger: logger.Named("profiler")}
}

// Profile 计算数据集每一列的画像
func (p *Profiler) Profile(ds *dataset.Dataset) []graph.ColumnProfile {
	return p.build(ds).profiles
}

func (p *Profiler) build(ds *dataset.Dataset) *table {
	rows := ds.RowCount()
	sample := p.sampleRows(rows)

	t := &table{
		ds:       ds,
		columns:  make([]*column, len(ds.Columns)),
		byName:   make(map[string]*column, len(ds.Columns)),
		profiles: make([]graph.ColumnProfile, len(ds.Columns)),
	}
	for i, name := range ds.Columns {
		raw := ds.Column(i)
		view := raw
		if sample != nil {
			view = make([]dataset.Value, len(sample))
			for j, r := range sample {
				view[j] = raw[r]
			}
		}

		typ, leadingZeros := p.inferType(view)
		col := &column{name: name, index: i, typ: typ}
		col.values = make([]dataset.Value, rows)
		col.keys = make([]string, rows)
		col.set = make(map[string]struct{})
		for r, v := range raw {
			cv := coerce(v, typ)
			col.values[r] = cv
			if cv.IsNull() {
				col.nulls++
				continue
			}
			k := cv.Key()
			col.keys[r] = k
			col.set[k] = struct{}{}
		}

		prof := p.describe(ds, col, sample, leadingZeros)
		if prof.Type == graph.TypeText && p.categorical(prof) {
			prof.Type = graph.TypeCategorical
			col.typ = graph.TypeCategorical
		}
		prof.Pattern = p.detectPattern(col, sample, prof)
		prof.Category = categorize(name, prof.Type)

		t.columns[i] = col
		t.byName[name] = col
		t.profiles[i] = prof
	}

	p.logger.Debug("Dataset profiled",
		zap.String("dataset", ds.Name),
		zap.Int("rows", rows),
		zap.Int("columns", len(ds.Columns)),
		zap.Bool("sampled", sample != nil))
	return t
}

// sampleRows 行数超过阈值时返回固定种子的有序样本行号，否则返回 nil
func (p *Profiler) sampleRows(rows int) []int {
	if p.cfg.SampleThreshold <= 0 || rows <= p.cfg.SampleThreshold || p.cfg.SampleSize >= rows {
		return nil
	}
	rng := rand.New(rand.NewPCG(p.cfg.SampleSeed, p.cfg.SampleSeed^0x9e3779b97f4a7c15))
	idx := rng.Perm(rows)[:p.cfg.SampleSize]
	sort.Ints(idx)
	return idx
}

// describe 在（可能采样的）视图上计算统计量
func (p *Profiler) describe(ds *dataset.Dataset, col *column, sample []int, leadingZeros bool) graph.ColumnProfile {
	prof := graph.ColumnProfile{
		Dataset:      ds.Name,
		Column:       col.name,
		RowCount:     len(col.values),
		Type:         col.typ,
		LeadingZeros: leadingZeros,
		Samples:      []string{},
		Min:          dataset.Null(),
		Max:          dataset.Null(),
	}

	counts := make(map[string]int)
	visit := func(v dataset.Value, k string) {
		prof.Count++
		if v.IsNull() {
			prof.NullCount++
			return
		}
		if _, seen := counts[k]; !seen && len(prof.Samples) < p.cfg.SampleValues {
			prof.Samples = append(prof.Samples, v.String())
		}
		counts[k]++
		if kindOf(col.typ) == v.Kind {
			if prof.Min.IsNull() || v.Compare(prof.Min) < 0 {
				prof.Min = v
			}
			if prof.Max.IsNull() || v.Compare(prof.Max) > 0 {
				prof.Max = v
			}
		}
	}
	if sample == nil {
		for r, v := range col.values {
			visit(v, col.keys[r])
		}
	} else {
		prof.Sampled = true
		for _, r := range sample {
			visit(col.values[r], col.keys[r])
		}
	}
	prof.SampleSize = prof.Count
	prof.DistinctCount = len(counts)
	prof.Entropy = entropy(counts, prof.NonNull())
	prof.Cardinality = classifyCardinality(prof.DistinctCount, prof.NonNull())
	return prof
}

// categorical 低基数文本列视为编码列
func (p *Profiler) categorical(prof graph.ColumnProfile) bool {
	if prof.NonNull() == 0 || prof.DistinctCount > p.cfg.CategoricalMaxDistinct {
		return false
	}
	return prof.DistinctRatio() <= p.cfg.CategoricalMaxRatio
}

// valueClass 单个值的解析结果
type valueClass int

const (
	classNull valueClass = iota
	classNumber
	classDate
	classBool
	classText
)

var numberPattern = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"02.01.2006 15:04:05",
	"02/01/2006 15:04:05",
	"2006/01/02",
}

// parseNumber 解析数字；带前导零的数字串保留为文本（编码）
func parseNumber(s string) (float64, bool, bool) {
	s = strings.TrimSpace(s)
	if !numberPattern.MatchString(s) {
		return 0, false, false
	}
	digits := strings.TrimLeft(s, "+-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return 0, false, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false, false
	}
	return f, true, false
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return time.Time{}, false
	}
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "sim", "s":
		return true, true
	case "false", "f", "no", "n", "nao", "não":
		return false, true
	}
	return false, false
}

// classify 判断单个值可解析成的类型，顺序：数字 -> 日期 -> 布尔 -> 文本
func classify(v dataset.Value) (valueClass, bool, bool) {
	switch v.Kind {
	case dataset.KindNull:
		return classNull, false, false
	case dataset.KindNumber:
		return classNumber, v.Num == math.Trunc(v.Num), false
	case dataset.KindTime:
		return classDate, false, false
	case dataset.KindBool:
		return classBool, false, false
	}
	if strings.TrimSpace(v.Str) == "" {
		return classNull, false, false
	}
	f, ok, leading := parseNumber(v.Str)
	if ok {
		return classNumber, f == math.Trunc(f), false
	}
	if _, ok := parseDate(v.Str); ok {
		return classDate, false, false
	}
	if _, ok := parseBoolLoose(v.Str); ok {
		return classBool, false, false
	}
	return classText, false, leading
}

// inferType 以非空值中占比 >= TypeAgreement 的解析类型为列类型
func (p *Profiler) inferType(values []dataset.Value) (graph.LogicalType, bool) {
	counts := make(map[valueClass]int)
	nonNull, whole, leading := 0, 0, 0
	for _, v := range values {
		cls, isWhole, lz := classify(v)
		if cls == classNull {
			continue
		}
		nonNull++
		counts[cls]++
		if cls == classNumber && isWhole {
			whole++
		}
		if lz {
			leading++
		}
	}
	if nonNull == 0 {
		return graph.TypeEmpty, false
	}

	best, bestCount := classText, 0
	for _, cls := range []valueClass{classNumber, classDate, classBool, classText} {
		if counts[cls] > bestCount {
			best, bestCount = cls, counts[cls]
		}
	}
	if float64(bestCount)/float64(nonNull) < p.cfg.TypeAgreement {
		return graph.TypeMixed, leading > 0
	}
	switch best {
	case classNumber:
		if whole == counts[classNumber] {
			return graph.TypeInteger, false
		}
		return graph.TypeDecimal, false
	case classDate:
		return graph.TypeDate, false
	case classBool:
		return graph.TypeBoolean, false
	}
	return graph.TypeText, leading > 0
}

// coerce 将原始值转换为列类型；无法转换的值保留文本形式
func coerce(v dataset.Value, typ graph.LogicalType) dataset.Value {
	if v.IsNull() {
		return v
	}
	if v.Kind == dataset.KindText && strings.TrimSpace(v.Str) == "" {
		return dataset.Null()
	}
	switch typ {
	case graph.TypeInteger, graph.TypeDecimal:
		if v.Kind == dataset.KindNumber {
			return v
		}
		if v.Kind == dataset.KindBool {
			return textOf(v)
		}
		if v.Kind == dataset.KindText {
			if f, ok, _ := parseNumber(v.Str); ok {
				return dataset.Number(f)
			}
		}
	case graph.TypeDate:
		if v.Kind == dataset.KindTime {
			return dataset.Time(v.Time.UTC())
		}
		if v.Kind == dataset.KindText {
			if t, ok := parseDate(v.Str); ok {
				return dataset.Time(t)
			}
		}
	case graph.TypeBoolean:
		if v.Kind == dataset.KindBool {
			return v
		}
		if v.Kind == dataset.KindText {
			if b, ok := parseBoolLoose(v.Str); ok {
				return dataset.Bool(b)
			}
		}
	default:
		if v.Kind == dataset.KindText {
			return dataset.Text(strings.TrimSpace(v.Str))
		}
	}
	return textOf(v)
}

func textOf(v dataset.Value) dataset.Value {
	if v.Kind == dataset.KindText {
		return dataset.Text(strings.TrimSpace(v.Str))
	}
	return dataset.Text(v.Key())
}

// kindOf 逻辑类型对应的值类型
func kindOf(t graph.LogicalType) dataset.Kind {
	switch t {
	case graph.TypeInteger, graph.TypeDecimal:
		return dataset.KindNumber
	case graph.TypeDate:
		return dataset.KindTime
	case graph.TypeBoolean:
		return dataset.KindBool
	case graph.TypeEmpty:
		return dataset.KindNull
	}
	return dataset.KindText
}

// 值模式，按顺序检测，只报告第一个命中的
var (
	uuidPattern     = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	urlPattern      = regexp.MustCompile(`^https?://`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9(][0-9 ().-]{5,18}[0-9]$`)
	codePattern     = regexp.MustCompile(`^[A-Za-z]{1,6}[-_/.]?[0-9]{1,12}([-_][A-Za-z0-9]+)?$`)
)

type patternCheck struct {
	tag   graph.PatternTag
	match func(s string) bool
}

var textPatterns = []patternCheck{
	{graph.PatternUUID, uuidPattern.MatchString},
	{graph.PatternEmail, emailPattern.MatchString},
	{graph.PatternURL, urlPattern.MatchString},
	{graph.PatternCurrency, currencyPattern.MatchString},
	{graph.PatternPhone, func(s string) bool {
		if !phonePattern.MatchString(s) {
			return false
		}
		digits := 0
		for _, r := range s {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		return digits >= 7
	}},
	{graph.PatternCode, codePattern.MatchString},
}

// detectPattern 检测值模式；空列无模式
func (p *Profiler) detectPattern(col *column, sample []int, prof graph.ColumnProfile) graph.PatternTag {
	if prof.NonNull() == 0 {
		return graph.PatternNone
	}
	if prof.Type == graph.TypeInteger {
		if isSequential(prof) {
			return graph.PatternSequential
		}
		return graph.PatternNone
	}
	if !prof.Type.IsTextual() {
		return graph.PatternNone
	}

	var values []string
	if sample == nil {
		values = col.keys
	} else {
		values = make([]string, 0, len(sample))
		for _, r := range sample {
			values = append(values, col.keys[r])
		}
	}
	for _, check := range textPatterns {
		hits := 0
		for _, s := range values {
			if s != "" && check.match(s) {
				hits++
			}
		}
		if float64(hits)/float64(prof.NonNull()) >= p.cfg.PatternAgreement {
			return check.tag
		}
	}
	return graph.PatternNone
}

// isSequential 整数列是否为连续序号（每个值各出现一次，max-min+1 = 唯一值数）
func isSequential(prof graph.ColumnProfile) bool {
	if prof.DistinctCount < 2 || prof.DistinctCount != prof.NonNull() {
		return false
	}
	if prof.Min.Kind != dataset.KindNumber || prof.Max.Kind != dataset.KindNumber {
		return false
	}
	return int(prof.Max.Num-prof.Min.Num)+1 == prof.DistinctCount
}

// entropy 取值分布的香农熵（bit）
func entropy(counts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		pr := float64(c) / float64(total)
		h -= pr * math.Log2(pr)
	}
	return math.Round(h*1e6) / 1e6
}

// classifyCardinality 按唯一值数划分取值分布形态
func classifyCardinality(distinct, total int) graph.CardinalityClass {
	if total == 0 {
		return graph.CardinalityNone
	}
	if distinct == total {
		return graph.CardinalityUnique
	}
	if float64(distinct)/float64(total) >= 0.9 {
		return graph.CardinalityNearUnique
	}
	if distinct <= 20 {
		return graph.CardinalityEnumLike
	}
	if distinct <= 200 {
		return graph.CardinalityLow
	}
	return graph.CardinalityHigh
}

// categorize 按列名与类型给出大致语义类别
func categorize(name string, typ graph.LogicalType) string {
	tokens := nameTokens(name)
	last := ""
	if len(tokens) > 0 {
		last = tokens[len(tokens)-1]
	}
	switch {
	case last == "id" || (len(tokens) > 1 && identifierLike(name) && last != "code"):
		return "relational"
	case typ == graph.TypeDate || last == "at" || hasToken(name, "date", "data", "time", "timestamp", "inicio", "fim", "end", "updated", "created"):
		return "temporal"
	case typ == graph.TypeBoolean || (len(tokens) > 0 && tokens[0] == "is") || last == "flag" || hasToken(name, "ativo", "active", "valid"):
		return "boolean"
	case hasToken(name, "valor", "value", "amount", "preco", "price", "total", "cost", "custo"):
		return "monetary"
	case hasToken(name, "status", "state", "validation", "check", "situacao"):
		return "status"
	case typ.IsNumeric():
		return "numeric"
	}
	return "categorical"
}
