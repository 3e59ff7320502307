package render

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

// PageRenderer 把源文档光栅化为页面图像
type PageRenderer interface {
	Render(ctx context.Context, doc *models.SourceDocument) (models.RenderedPageSet, error)
}

// Config 渲染配置
type Config struct {
	DPI       int
	Quality   int  // JPEG 质量
	MaxWidth  int  // 超宽页面等比缩小,0 表示不缩放
	Grayscale bool // 灰度化,利于本地 OCR
}

// DefaultConfig 返回默认渲染配置
func DefaultConfig() *Config {
	return &Config{
		DPI:      300,
		Quality:  85,
		MaxWidth: 2048,
	}
}

// PopplerRenderer 通过 pdftoppm 子进程渲染 PDF 页面
type PopplerRenderer struct {
	config *Config
	logger logger.Logger
}

// NewPopplerRenderer 创建 poppler 渲染器
func NewPopplerRenderer(log logger.Logger, cfg *Config) *PopplerRenderer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &PopplerRenderer{config: cfg, logger: log}
}

// Render 渲染所有页面为 JPEG
func (r *PopplerRenderer) Render(ctx context.Context, doc *models.SourceDocument) (models.RenderedPageSet, error) {
	tmpDir, err := os.MkdirTemp("", "digitizer-render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "source.pdf")
	content, err := readAll(doc)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(pdfPath, content, 0600); err != nil {
		return nil, fmt.Errorf("failed to write temp pdf: %w", err)
	}

	outPrefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-jpeg",
		"-r", fmt.Sprintf("%d", r.config.DPI),
		"-jpegopt", fmt.Sprintf("quality=%d", r.config.Quality),
		pdfPath, outPrefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, stderr.String())
	}

	matches, err := filepath.Glob(outPrefix + "-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to list rendered pages: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages")
	}
	sort.Strings(matches)

	pages := make(models.RenderedPageSet, 0, len(matches))
	for i, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read rendered page %d: %w", i+1, err)
		}
		data, err = r.postProcess(data)
		if err != nil {
			return nil, fmt.Errorf("failed to post-process page %d: %w", i+1, err)
		}
		pages = append(pages, models.PageImage{Page: i + 1, JPEG: data})
	}

	r.logger.Debug("rendered pages",
		logger.String("documentId", doc.ID),
		logger.Int("pages", len(pages)),
	)
	return pages, nil
}

// postProcess 灰度化、超宽页面等比缩小后重新编码,无需处理时原样返回
func (r *PopplerRenderer) postProcess(data []byte) ([]byte, error) {
	if r.config.MaxWidth <= 0 && !r.config.Grayscale {
		return data, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	changed := false
	if r.config.Grayscale {
		img = imaging.Grayscale(img)
		changed = true
	}
	if r.config.MaxWidth > 0 && img.Bounds().Dx() > r.config.MaxWidth {
		img = imaging.Resize(img, r.config.MaxWidth, 0, imaging.Lanczos)
		changed = true
	}
	if !changed {
		return data, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.config.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readAll(doc *models.SourceDocument) ([]byte, error) {
	reader := doc.Reader()
	content := make([]byte, reader.Size())
	if _, err := reader.ReadAt(content, 0); err != nil {
		return nil, fmt.Errorf("failed to read document content: %w", err)
	}
	return content, nil
}
