package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dataset-analyzer/internal/config"
	"dataset-analyzer/internal/logging"
)

func main() {
	flags := pflag.NewFlagSet("dataset-analyzer-server", pflag.ExitOnError)
	cfgFile := flags.String("config", "", "配置文件（默认 ./dataset-analyzer.yaml）")
	flags.String("addr", ":8080", "监听地址")
	flags.String("log-level", "info", "日志级别")
	flags.String("log-format", "console", "日志格式 (console/json)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgFile, flags)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
	// 兼容 PORT 环境变量
	if port := os.Getenv("PORT"); port != "" && !flags.Changed("addr") {
		cfg.Server.Addr = ":" + port
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🚀 Dataset Analyzer Server\n")
	fmt.Printf("📡 服务地址: http://localhost%s\n", cfg.Server.Addr)
	fmt.Printf("📊 POST /api/analyze 提交分析任务\n\n")

	if err := serve(ctx, *cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

// serve 启动 HTTP 服务，ctx 取消后优雅关闭
func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	eg, egctx := errgroup.WithContext(ctx)
	s := newServer(egctx, cfg, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: s.routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		logger.Info("Server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logger.Info("Shutting down server")
		err := srv.Shutdown(shutdownCtx)
		s.wait()
		return err
	})

	return eg.Wait()
}
