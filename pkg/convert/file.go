package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gonewx/danmu2ass/internal/xmlparser"
	"golang.org/x/sync/errgroup"
)

// OutputPath 将输入文件的扩展名替换为 .ass
func OutputPath(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".ass"
}

// ConvertFile 转换单个 XML 文件
//
// 参数:
//   - in: XML 文件路径
//   - out: 输出 ASS 路径，为空时使用 OutputPath(in)
//   - opts: 转换选项
func ConvertFile(in, out string, opts Options) (Report, error) {
	if out == "" {
		out = OutputPath(in)
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return Report{}, fmt.Errorf("output %s is a directory", out)
	}

	f, err := os.Open(in)
	if err != nil {
		return Report{}, fmt.Errorf("failed to open input '%s': %w", in, err)
	}
	defer f.Close()

	title := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	var report Report
	err = WriteFileAtomic(out, func(w io.Writer) error {
		var convErr error
		report, convErr = Convert(xmlparser.NewParser(f), title, w, opts)
		return convErr
	})
	if err != nil {
		return report, fmt.Errorf("failed to convert '%s': %w", in, err)
	}
	return report, nil
}

// WriteFileAtomic 先写入 out.tmp，成功后再重命名为 out
//
// write 返回错误时临时文件会被删除，out 保持原样。
//
// 参数:
//   - out: 最终输出路径
//   - write: 向临时文件写入内容的函数
func WriteFileAtomic(out string, write func(w io.Writer) error) error {
	tmp := out + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create output '%s': %w", tmp, err)
	}

	err = write(f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close output: %w", closeErr)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// FindXMLFiles 列出目录下（不递归）的 .xml 文件
func FindXMLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory '%s': %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// ConvertFolder 并行转换目录下的所有 XML 文件
//
// 每个文件使用独立的画布。单个文件失败不会中断其他文件，
// 所有失败在结束后合并返回。
//
// 参数:
//   - ctx: 取消后不再开始新的文件
//   - dir: 输入目录
//   - outDir: 输出目录，为空时输出到输入目录
//   - opts: 转换选项
//   - parallelism: 同时转换的文件数
func ConvertFolder(ctx context.Context, dir, outDir string, opts Options, parallelism int) ([]Report, error) {
	files, err := FindXMLFiles(dir)
	if err != nil {
		return nil, err
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	log.Printf("[Convert] Found %d XML files in %s", len(files), dir)

	if parallelism < 1 {
		parallelism = 1
	}

	reports := make([]Report, len(files))
	var (
		mu       sync.Mutex
		failures []error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, in := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := ""
			if outDir != "" {
				out = filepath.Join(outDir, filepath.Base(OutputPath(in)))
			}
			report, err := ConvertFile(in, out, opts)
			reports[i] = report
			if err != nil {
				log.Printf("[Convert] Error: %v", err)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}

	return reports, errors.Join(failures...)
}
