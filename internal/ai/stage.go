package ai

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dataset-analyzer/internal/renderer"
)

// FormatRefined 润色产物的格式名
const FormatRefined = "refined"

// RefinedFileName 润色产物文件名
const RefinedFileName = "report_refined.md"

// Stage 渲染之后的可选润色阶段
type Stage struct {
	refiner Refiner
	logger  *zap.Logger
}

// NewStage 创建润色阶段，refiner 为 nil 时等同关闭
func NewStage(refiner Refiner, logger *zap.Logger) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	if refiner == nil {
		refiner = NopRefiner{}
	}
	return &Stage{refiner: refiner, logger: logger.Named("refine")}
}

// Enabled 是否会调用模型
func (s *Stage) Enabled() bool {
	_, nop := s.refiner.(NopRefiner)
	return !nop
}

// Apply 只润色人读报告，结果作为单独产物追加；失败时记录告警并原样返回
func (s *Stage) Apply(ctx context.Context, artifacts []renderer.Artifact) []renderer.Artifact {
	if !s.Enabled() {
		return artifacts
	}

	idx := -1
	for i, a := range artifacts {
		if a.Format == renderer.FormatMarkdown {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.logger.Debug("no markdown report to refine")
		return artifacts
	}

	start := time.Now()
	refined, err := s.refiner.Refine(ctx, artifacts[idx].Content)
	if err != nil {
		s.logger.Warn("refinement failed, keeping the structural report only",
			zap.String("provider", s.refiner.Name()), zap.Error(err))
		return artifacts
	}
	s.logger.Info("report refined",
		zap.String("provider", s.refiner.Name()),
		zap.Duration("elapsed", time.Since(start)))

	out := make([]renderer.Artifact, 0, len(artifacts)+1)
	out = append(out, artifacts...)
	return append(out, renderer.Artifact{Name: RefinedFileName, Format: FormatRefined, Content: refined})
}
