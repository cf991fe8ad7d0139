package adapter

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"dataset-analyzer/internal/dataset"
)

// DirectoryLoader 递归扫描目录中的数据文件
type DirectoryLoader struct {
	root    string
	opts    Options
	logger  *zap.Logger
	skipped []SkippedFile
}

// SkippedFile 无法解析而被跳过的文件
type SkippedFile struct {
	Path string
	Err  error
}

// NewDirectoryLoader 创建目录加载器
func NewDirectoryLoader(root string, opts Options, logger *zap.Logger) *DirectoryLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryLoader{root: root, opts: opts, logger: logger.Named("directory")}
}

// fileKind 按扩展名判断文件类型，不支持时返回空串
func fileKind(path string) string {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".~lock") || strings.HasPrefix(name, "~$") {
		return ""
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "csv"
	case ".xlsx", ".xlsm":
		return "excel"
	case ".sql":
		return "sql"
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	}
	return ""
}

// Load 读取目录下所有支持的文件；单个文件失败只记录并跳过
func (l *DirectoryLoader) Load(ctx context.Context) ([]*dataset.Dataset, error) {
	var files []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && fileKind(path) != "" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", l.root, err)
	}
	l.logger.Info("Files discovered", zap.String("root", l.root), zap.Int("count", len(files)))

	l.skipped = nil
	seen := make(map[string]bool)
	var out []*dataset.Dataset
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		datasets, err := l.loadFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.skipped = append(l.skipped, SkippedFile{Path: path, Err: err})
			l.logger.Warn("File skipped", zap.String("file", path), zap.Error(err))
			continue
		}
		renamed := make(map[string]string)
		for _, ds := range datasets {
			name := l.datasetName(ds.Name, path, seen)
			if name != ds.Name {
				renamed[ds.Name] = name
				ds.Name = name
			}
		}
		// 同一文件内的声明外键跟随改名
		for _, ds := range datasets {
			for i, ref := range ds.DeclaredRefs {
				if name, ok := renamed[ref.TargetDataset]; ok {
					ds.DeclaredRefs[i].TargetDataset = name
				}
			}
		}
		out = append(out, datasets...)
	}
	return out, nil
}

// Skipped 上一次 Load 跳过的文件
func (l *DirectoryLoader) Skipped() []SkippedFile { return l.skipped }

// Close 无需释放
func (l *DirectoryLoader) Close() error { return nil }

func (l *DirectoryLoader) loadFile(ctx context.Context, path string) ([]*dataset.Dataset, error) {
	var loader Loader
	switch fileKind(path) {
	case "csv":
		loader = NewCSVLoader(path, l.opts, l.logger)
	case "excel":
		loader = NewExcelLoader(path, l.opts, l.logger)
	case "sql":
		loader = NewSQLDumpLoader(path, l.opts, l.logger)
	case "sqlite":
		db, err := NewSQLiteLoader(ctx, path, l.opts, l.logger)
		if err != nil {
			return nil, err
		}
		loader = db
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, path)
	}
	defer loader.Close()
	return loader.Load(ctx)
}

// datasetName 重名时改用相对路径（去扩展名）命名，仍冲突再追加序号
func (l *DirectoryLoader) datasetName(name, path string, seen map[string]bool) string {
	if !seen[name] {
		seen[name] = true
		return name
	}
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch {
	case name == base:
		return uniqueName(rel, seen)
	case strings.HasPrefix(name, base+"."):
		return uniqueName(rel+strings.TrimPrefix(name, base), seen)
	}
	return uniqueName(rel+"."+name, seen)
}
