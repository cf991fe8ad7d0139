package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dataset-analyzer/internal/config"
	"dataset-analyzer/internal/logging"
	"dataset-analyzer/internal/pipeline"
)

var cfgFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dataset-analyzer",
		Short:         "表格数据结构分析器",
		Long:          "从 CSV、Excel、SQL 转储或数据库中推断主键、外键、业务规则与派生字段，生成结构报告和 ER 图",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "配置文件（默认 ./dataset-analyzer.yaml）")
	pf.String("log-level", "info", "日志级别 (debug/info/warn/error)")
	pf.String("log-format", "console", "日志格式 (console/json)")
	pf.Int("workers", 4, "并行 worker 数")

	rootCmd.AddCommand(newScanCmd(), newDBCmd(), newConfigCmd())
	return rootCmd
}

// addOutputFlags scan 与 db 共用的输出参数
func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("output", "./output", "输出目录")
	f.StringSlice("format", nil, "输出格式 (markdown,rag,curation,mermaid,json)，默认全部")
	f.String("title", "", "报告标题")
	f.Int("row-limit", 0, "每个数据集最多读取的行数，0 为全部")
	f.Int("max-key-size", 3, "组合主键最大列数")
	f.String("refine", "none", "报告润色服务 (none/dashscope/openai/anthropic)")
	f.String("model", "", "润色使用的模型")
}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "扫描目录下的 CSV/Excel/SQL/SQLite 文件并分析结构",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Input.Kind = "dir"
			if len(args) == 1 {
				cfg.Input.Path = args[0]
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	addOutputFlags(cmd)
	cmd.Flags().String("delimiter", "", "CSV 分隔符，默认自动探测")
	cmd.Flags().StringSlice("null-tokens", nil, "视为空值的文本")
	return cmd
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "连接数据库并分析结构",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Input.Kind == "dir" {
				return errors.New("db 需要指定 --type (sqlite/mysql/sqlserver/postgres)")
			}
			if cfg.Input.Kind == "sqlite" && cfg.Input.Path == "" {
				return errors.New("sqlite 需要指定 --path")
			}
			if cfg.Input.Kind != "sqlite" && cfg.Input.DSN == "" {
				return errors.New("需要指定 --dsn 连接字符串")
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	addOutputFlags(cmd)
	f := cmd.Flags()
	f.String("type", "", "数据库类型 (sqlite/mysql/sqlserver/postgres)")
	f.String("dsn", "", "连接字符串")
	f.String("schema", "", "数据库 schema（MySQL 默认取 DSN 中的库名，PostgreSQL 默认 public）")
	f.String("path", "", "SQLite 文件路径")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "输出生效的配置",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if cfg.File != "" {
				fmt.Fprintf(w, "# %s\n", cfg.File)
			}
			_, err = io.WriteString(w, out)
			return err
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run 执行分析并写出报告
func run(ctx context.Context, w io.Writer, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	fmt.Fprintf(w, "🔍 开始分析 %s...\n", describeSource(cfg))

	runner := pipeline.New(*cfg, logger)
	last := ""
	runner.OnProgress(func(stage string, percent int, message string) {
		if stage == last {
			return
		}
		last = stage
		logger.Debug("progress", zap.String("stage", stage), zap.Int("percent", percent))
		switch stage {
		case "load":
			fmt.Fprintln(w, "\n📂 读取数据集...")
		case "profile":
			fmt.Fprintln(w, "📊 列画像与主键检测...")
		case "relationships":
			fmt.Fprintln(w, "🔗 推断数据集间关系...")
		case "rules":
			fmt.Fprintln(w, "📐 挖掘业务规则与派生字段...")
		case "semantic":
			fmt.Fprintln(w, "🏷️  识别维度、码表与业务字段...")
		case "refine":
			fmt.Fprintf(w, "🤖 %s\n", message)
		}
	})

	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "⚠️  跳过 %s: %v\n", s.Path, s.Err)
	}

	fmt.Fprintln(w, "\n📝 生成输出文件...")
	paths, err := pipeline.WriteArtifacts(cfg.Output.Dir, res.Artifacts)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(w, "✓ %s\n", p)
	}

	fmt.Fprintln(w)
	printSummary(w, res)
	fmt.Fprintf(w, "\n✅ 分析完成！用时 %s\n", res.Elapsed.Round(time.Millisecond))
	return nil
}

func describeSource(cfg *config.Config) string {
	in := cfg.Input
	switch in.Kind {
	case "dir", "sqlite":
		return fmt.Sprintf("%s (%s)", in.Path, in.Kind)
	}
	if in.Schema != "" {
		return fmt.Sprintf("%s 数据库 schema %s", in.Kind, in.Schema)
	}
	return in.Kind + " 数据库"
}

// printSummary 结论计数表
func printSummary(w io.Writer, res *pipeline.Result) {
	stats := pipeline.Stats(res.Model)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Finding", "Count"})
	for _, key := range pipeline.StatOrder {
		t.AppendRow(table.Row{key, stats[key]})
	}
	t.Render()
}
