// Package pipeline 串联一次完整分析：加载 -> 推断 -> 渲染 -> 润色
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"dataset-analyzer/internal/adapter"
	"dataset-analyzer/internal/ai"
	"dataset-analyzer/internal/analyzer"
	"dataset-analyzer/internal/config"
	"dataset-analyzer/internal/graph"
	"dataset-analyzer/internal/renderer"
)

// ProgressFunc 进度回调，percent 取值 0-100
type ProgressFunc func(stage string, percent int, message string)

// Result 一次分析的产出
type Result struct {
	Model     *graph.StructuralModel
	Artifacts []renderer.Artifact
	Skipped   []adapter.SkippedFile // 目录来源中解析失败而跳过的文件
	Refined   bool
	Elapsed   time.Duration
}

// Runner 分析流水线
type Runner struct {
	cfg      config.Config
	logger   *zap.Logger
	progress ProgressFunc
	refiner  ai.Refiner
}

// New 创建流水线，配置应已通过 Validate
func New(cfg config.Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// OnProgress 设置进度回调
func (r *Runner) OnProgress(fn ProgressFunc) { r.progress = fn }

// WithRefiner 覆盖按配置创建的润色服务
func (r *Runner) WithRefiner(refiner ai.Refiner) { r.refiner = refiner }

func (r *Runner) report(stage string, percent int, message string) {
	if r.progress != nil {
		r.progress(stage, percent, message)
	}
}

// Run 执行分析。加载失败与零数据集是致命错误，润色失败只记录告警
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	// 1. 加载
	r.report("load", 5, "loading datasets")
	loader, err := adapter.Open(ctx, r.cfg.Input.AdapterSource(), r.cfg.Input.LoaderOptions(), r.logger)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer loader.Close()

	datasets, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load datasets: %w", err)
	}
	res := &Result{}
	if dl, ok := loader.(*adapter.DirectoryLoader); ok {
		res.Skipped = dl.Skipped()
	}
	r.report("load", 20, fmt.Sprintf("loaded %d datasets", len(datasets)))

	// 2. 推断，引擎进度映射到 20-80
	engine := analyzer.NewEngine(r.cfg.Analysis, r.logger)
	engine.OnProgress(func(stage string, percent int) {
		r.report(stage, 20+percent*60/100, "analyzing: "+stage)
	})
	model, err := engine.Analyze(ctx, datasets)
	if err != nil {
		return nil, err
	}
	res.Model = model

	// 3. 渲染
	r.report("render", 85, "rendering reports")
	artifacts, err := renderer.RenderAll(model, r.cfg.Output.Formats, r.cfg.Output.RendererOptions())
	if err != nil {
		return nil, err
	}

	// 4. 润色
	refiner := r.refiner
	if refiner == nil {
		refiner, err = ai.NewRefiner(r.cfg.Refine, r.logger)
		if err != nil {
			r.logger.Warn("refinement disabled", zap.Error(err))
			refiner = ai.NopRefiner{}
		}
	}
	stage := ai.NewStage(refiner, r.logger)
	if stage.Enabled() {
		r.report("refine", 90, "refining report with "+refiner.Name())
	}
	res.Artifacts = stage.Apply(ctx, artifacts)
	res.Refined = len(res.Artifacts) > len(artifacts)

	res.Elapsed = time.Since(start)
	r.report("done", 100, "analysis completed")
	return res, nil
}

// WriteArtifacts 写出全部产物，返回文件路径
func WriteArtifacts(dir string, artifacts []renderer.Artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		p := filepath.Join(dir, a.Name)
		if err := os.WriteFile(p, []byte(a.Content), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", a.Name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Stats 结论计数，用于摘要输出
func Stats(m *graph.StructuralModel) map[string]int {
	explicit, implicit := 0, 0
	for _, rel := range m.Relationships {
		if rel.Kind == graph.RelationshipImplicit {
			implicit++
		} else {
			explicit++
		}
	}
	primary := 0
	for _, k := range m.Keys {
		if k.Primary {
			primary++
		}
	}
	return map[string]int{
		"datasets":               len(m.Datasets),
		"primary_keys":           primary,
		"explicit_relationships": explicit,
		"implicit_relationships": implicit,
		"temporal_rules":         len(m.TemporalRules),
		"multivariate_rules":     len(m.MultivariateRules),
		"conditional_rules":      len(m.ConditionalRules),
		"derived_fields":         len(m.DerivedFields),
		"dimensions":             len(m.Dimensions),
		"lookup_tables":          len(m.LookupTables),
		"business_fields":        len(m.BusinessFields),
		"dead_columns":           len(m.DeadColumns),
		"workflows":              len(m.Workflows),
		"warnings":               len(m.Warnings),
	}
}

// StatOrder Stats 键的展示顺序
var StatOrder = []string{
	"datasets", "primary_keys", "explicit_relationships", "implicit_relationships",
	"temporal_rules", "multivariate_rules", "conditional_rules", "derived_fields",
	"dimensions", "lookup_tables", "business_fields", "dead_columns", "workflows", "warnings",
}
