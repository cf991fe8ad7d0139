package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dataset-analyzer/internal/dataset"
	"dataset-analyzer/internal/graph"
)

// ErrNoDatasets 没有任何数据集，唯一会中止整次分析的情况
var ErrNoDatasets = errors.New("no datasets to analyze")

// ProgressFunc 阶段进度回调，percent 取值 0-100
type ProgressFunc func(stage string, percent int)

// Engine 结构推断引擎：逐数据集画像与主键检测（并行），屏障后进行跨数据集的外键、规则与语义分类，最后汇总
type Engine struct {
	cfg      Config
	logger   *zap.Logger
	progress ProgressFunc

	profiler   *Profiler
	keys       *KeyDetector
	resolver   *RelationshipResolver
	temporal   *TemporalMiner
	deps       *DependencyMiner
	derived    *DerivedFieldDetector
	lookups    *LookupDetector
	classifier *SemanticClassifier
	workflows  *WorkflowDetector
}

// NewEngine 创建引擎
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{
		cfg:        cfg,
		logger:     logger.Named("engine"),
		profiler:   NewProfiler(cfg, logger),
		keys:       NewKeyDetector(cfg, logger),
		resolver:   NewRelationshipResolver(cfg, logger),
		temporal:   NewTemporalMiner(cfg, logger),
		deps:       NewDependencyMiner(cfg, logger),
		derived:    NewDerivedFieldDetector(cfg, logger),
		lookups:    NewLookupDetector(cfg, logger),
		classifier: NewSemanticClassifier(cfg, logger),
		workflows:  NewWorkflowDetector(cfg, logger),
	}
}

// OnProgress 设置进度回调
func (e *Engine) OnProgress(fn ProgressFunc) { e.progress = fn }

func (e *Engine) report(stage string, percent int) {
	if e.progress != nil {
		e.progress(stage, percent)
	}
}

// Analyze 分析一组数据集。只有零个数据集（或 ctx 取消）会返回错误；
// 单个数据集或候选的失败记录为警告，总是返回（可能稀疏的）模型
func (e *Engine) Analyze(ctx context.Context, datasets []*dataset.Dataset) (*graph.StructuralModel, error) {
	if len(datasets) == 0 {
		return nil, ErrNoDatasets
	}
	start := time.Now()
	var draft graph.StructuralModel

	valid := e.validate(datasets, &draft)
	e.logger.Info("Analysis started", zap.Int("datasets", len(datasets)), zap.Int("valid", len(valid)))

	// 1. 逐数据集：画像 + 主键
	e.report("profile", 10)
	tables, err := e.perDataset(ctx, valid, &draft)
	if err != nil {
		return nil, err
	}

	// 2. 屏障之后：跨数据集外键
	e.report("relationships", 40)
	resolved, err := e.resolver.resolve(ctx, tables)
	if err != nil {
		return nil, err
	}
	draft.Relationships = resolved.relationships
	draft.Notes = append(draft.Notes, resolved.notes...)
	draft.Warnings = append(draft.Warnings, resolved.warnings...)

	// 3. 规则
	e.report("rules", 60)
	f := findings{relationships: resolved.relationships}
	if err := e.mineRules(ctx, tables, &draft, &f); err != nil {
		return nil, err
	}

	// 4. 语义分类
	e.report("semantic", 80)
	f.lookups = e.lookups.detect(tables, resolved.relationships)
	cls := e.classifier.classify(tables, f)
	draft.LookupTables = f.lookups
	draft.BusinessFields = cls.business
	draft.Dimensions = cls.dimensions
	draft.DeadColumns = cls.dead
	for _, t := range tables {
		if wf := e.workflows.detect(t, resolved.relationships); wf != nil {
			draft.Workflows = append(draft.Workflows, *wf)
		}
	}

	// 5. 汇总
	e.report("aggregate", 95)
	model := graph.Aggregate(draft, e.logger)
	e.report("done", 100)

	e.logger.Info("Analysis finished",
		zap.Int("datasets", len(model.Datasets)),
		zap.Int("keys", len(model.Keys)),
		zap.Int("relationships", len(model.Relationships)),
		zap.Int("warnings", len(model.Warnings)),
		zap.Duration("elapsed", time.Since(start)))
	return model, nil
}

// validate 不合法或重名的数据集只产生警告，不影响其他数据集
func (e *Engine) validate(datasets []*dataset.Dataset, draft *graph.StructuralModel) []*dataset.Dataset {
	var valid []*dataset.Dataset
	seen := make(map[string]bool)
	for i, ds := range datasets {
		if ds == nil {
			draft.Warnings = append(draft.Warnings, graph.Warning{Stage: "input", Message: fmt.Sprintf("dataset #%d is nil", i)})
			continue
		}
		if err := ds.Validate(); err != nil {
			e.logger.Warn("Dataset rejected", zap.String("dataset", ds.Name), zap.Error(err))
			draft.Warnings = append(draft.Warnings, graph.Warning{Dataset: ds.Name, Stage: "input", Message: err.Error()})
			continue
		}
		if seen[ds.Name] {
			draft.Warnings = append(draft.Warnings, graph.Warning{Dataset: ds.Name, Stage: "input", Message: "duplicate dataset name, later copy skipped"})
			continue
		}
		seen[ds.Name] = true
		valid = append(valid, ds)
		draft.Datasets = append(draft.Datasets, graph.DatasetSummary{
			Name:     ds.Name,
			Source:   ds.Source,
			Columns:  append([]string(nil), ds.Columns...),
			RowCount: ds.RowCount(),
		})
	}
	return valid
}

// perDataset 每个数据集独立画像与主键检测，结果写入各自槽位
func (e *Engine) perDataset(ctx context.Context, datasets []*dataset.Dataset, draft *graph.StructuralModel) ([]*table, error) {
	slots := make([]*table, len(datasets))
	failures := make([]*graph.Warning, len(datasets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, ds := range datasets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer func() {
				if p := recover(); p != nil {
					failures[i] = &graph.Warning{Dataset: ds.Name, Stage: "profile", Message: fmt.Sprintf("profiling failed: %v", p)}
				}
			}()
			t := e.profiler.build(ds)
			e.keys.detect(t)
			slots[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var tables []*table
	for i, t := range slots {
		if failures[i] != nil {
			e.logger.Warn("Dataset skipped", zap.String("dataset", failures[i].Dataset), zap.String("reason", failures[i].Message))
			draft.Warnings = append(draft.Warnings, *failures[i])
			continue
		}
		tables = append(tables, t)
		draft.Profiles = append(draft.Profiles, t.profiles...)
		draft.Keys = append(draft.Keys, t.keys...)
		draft.Notes = append(draft.Notes, t.notes...)
		if t.search != nil {
			draft.Searches = append(draft.Searches, *t.search)
		}
	}
	return tables, nil
}

// ruleSlot 单个数据集的规则结果
type ruleSlot struct {
	temporal []graph.TemporalRule
	notes    []graph.Note
	deps     dependencyResult
	derived  []graph.DerivedFieldCandidate
	warning  *graph.Warning
}

// mineRules 数据集内规则各自独立，按数据集并行
func (e *Engine) mineRules(ctx context.Context, tables []*table, draft *graph.StructuralModel, f *findings) error {
	slots := make([]ruleSlot, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, t := range tables {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer func() {
				if p := recover(); p != nil {
					slots[i] = ruleSlot{warning: &graph.Warning{Dataset: t.ds.Name, Stage: "rules", Message: fmt.Sprintf("rule mining failed: %v", p)}}
				}
			}()
			var s ruleSlot
			s.temporal, s.notes = e.temporal.mine(t)
			s.deps = e.deps.mine(t)
			s.derived = e.derived.detect(t)
			slots[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, s := range slots {
		if s.warning != nil {
			draft.Warnings = append(draft.Warnings, *s.warning)
			continue
		}
		draft.TemporalRules = append(draft.TemporalRules, s.temporal...)
		draft.Notes = append(draft.Notes, s.notes...)
		draft.MultivariateRules = append(draft.MultivariateRules, s.deps.rules...)
		draft.ConditionalRules = append(draft.ConditionalRules, s.deps.conditional...)
		if s.deps.search.Evaluated > 0 {
			draft.Searches = append(draft.Searches, s.deps.search)
		}
		draft.DerivedFields = append(draft.DerivedFields, s.derived...)
	}
	f.temporal = draft.TemporalRules
	f.multivariate = draft.MultivariateRules
	f.conditional = draft.ConditionalRules
	f.derived = draft.DerivedFields
	return nil
}
