package layout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/naphat-c/nacc-digitizer/internal/extract"
	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/internal/render"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

// 并行解析页面的并发上限
const maxParseWorkers = 4

// Backend 本地布局解析后把文本一次提交给外部理解服务
// 嵌入文本直接抽取,扫描页走 OCR 兜底
// 构造便宜,OCR 引擎在第一次用到时才初始化
type Backend struct {
	client extract.ServiceClient
	pages  *render.CachedRenderer
	ocr    extract.OCR
	logger logger.Logger
}

// New 创建 layout 后端,不做昂贵初始化
func New(client extract.ServiceClient, pages *render.CachedRenderer, log logger.Logger) *Backend {
	return &Backend{
		client: client,
		pages:  pages,
		ocr:    extract.NewOCREngine("tha", "eng"),
		logger: log.Named("layout"),
	}
}

func (b *Backend) Name() string { return "layout" }

// Extract 逐页解析文本 → 拼 markdown → 单次文本调用 → 解析
func (b *Backend) Extract(ctx context.Context, doc *models.SourceDocument, ectx extract.Context) (models.ExtractionRecord, error) {
	text, err := b.parseDocument(ctx, doc)
	if err != nil {
		return models.NewEmptyRecord(), fmt.Errorf("layout parse failed: %w", err)
	}

	b.logger.Info("submitting parsed text",
		logger.String("documentId", doc.ID),
		logger.Int("chars", len(text)),
	)

	prompt := extract.BuildLayoutPrompt(ectx)
	raw, err := b.client.GenerateFromText(ctx, prompt, text)
	if err != nil {
		return models.NewEmptyRecord(), err
	}
	return extract.ParseRecord(raw)
}

// parseDocument 并行抽取每页文本,空文本页按扫描页走 OCR
func (b *Backend) parseDocument(ctx context.Context, doc *models.SourceDocument) (string, error) {
	reader := doc.Reader()
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return "", fmt.Errorf("cannot open PDF: %w", err)
	}

	numPages := pdfReader.NumPage()
	pageTexts := make([]string, numPages)

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxParseWorkers)
	var mu sync.Mutex
	scanned := make([]int, 0)

	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			page := pdfReader.Page(pageNum)
			if page.V.IsNull() {
				return nil
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				return fmt.Errorf("failed to get text from page %d: %w", pageNum, err)
			}
			if strings.TrimSpace(text) == "" {
				mu.Lock()
				scanned = append(scanned, pageNum)
				mu.Unlock()
				return nil
			}
			pageTexts[pageNum-1] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	if len(scanned) > 0 {
		if err := b.ocrScannedPages(ctx, doc, scanned, pageTexts); err != nil {
			return "", err
		}
	}

	var builder strings.Builder
	for i, text := range pageTexts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&builder, "## Page %d\n\n%s\n\n", i+1, text)
	}
	if builder.Len() == 0 {
		return "", fmt.Errorf("no text extracted from %d pages", numPages)
	}
	return builder.String(), nil
}

// ocrScannedPages 渲染扫描页并 OCR,结果按页号写回
// OCR 引擎在这里第一次初始化
func (b *Backend) ocrScannedPages(ctx context.Context, doc *models.SourceDocument, pageNums []int, pageTexts []string) error {
	rendered, err := b.pages.Pages(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to render scanned pages: %w", err)
	}

	byPage := make(map[int]models.PageImage, len(rendered))
	for _, img := range rendered {
		byPage[img.Page] = img
	}

	sort.Ints(pageNums)
	for _, pageNum := range pageNums {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, ok := byPage[pageNum]
		if !ok {
			continue
		}
		text, err := b.ocr.ImageText(img.JPEG)
		if err != nil {
			// 单页 OCR 失败降级为告警,其余页面照常
			b.logger.Warn("OCR failed for page",
				logger.String("documentId", doc.ID),
				logger.Int("page", pageNum),
				logger.Error(err),
			)
			continue
		}
		pageTexts[pageNum-1] = text
	}
	return nil
}

func (b *Backend) Close() error {
	return b.ocr.Close()
}
