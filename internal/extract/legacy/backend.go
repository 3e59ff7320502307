package legacy

import (
	"context"
	"fmt"
	"strings"

	"github.com/naphat-c/nacc-digitizer/internal/extract"
	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/internal/render"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

// defaultBatchSize 每批 OCR 的页数
const defaultBatchSize = 3

// Backend 分批 OCR 策略:小批页面本地识别,逐批提交外部服务
// 各批的部分结果按子集合拼接合并
type Backend struct {
	client    extract.ServiceClient
	pages     *render.CachedRenderer
	ocr       extract.OCR
	batchSize int
	logger    logger.Logger
}

// New 创建 legacy 后端
func New(client extract.ServiceClient, pages *render.CachedRenderer, log logger.Logger) *Backend {
	return &Backend{
		client:    client,
		pages:     pages,
		ocr:       extract.NewOCREngine("tha", "eng"),
		batchSize: defaultBatchSize,
		logger:    log.Named("legacy"),
	}
}

func (b *Backend) Name() string { return "legacy" }

// Extract 渲染 → 分批 OCR → 逐批提交 → 合并
func (b *Backend) Extract(ctx context.Context, doc *models.SourceDocument, ectx extract.Context) (models.ExtractionRecord, error) {
	pages, err := b.pages.Pages(ctx, doc)
	if err != nil {
		return models.NewEmptyRecord(), fmt.Errorf("failed to render pages: %w", err)
	}

	totalBatches := (len(pages) + b.batchSize - 1) / b.batchSize
	merged := models.NewEmptyRecord()

	for batch := 0; batch < totalBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return models.NewEmptyRecord(), err
		}

		start := batch * b.batchSize
		end := start + b.batchSize
		if end > len(pages) {
			end = len(pages)
		}

		text, err := b.ocrBatch(ctx, pages[start:end])
		if err != nil {
			return models.NewEmptyRecord(), fmt.Errorf("OCR failed for batch %d: %w", batch+1, err)
		}
		if strings.TrimSpace(text) == "" {
			b.logger.Warn("empty OCR batch",
				logger.String("documentId", doc.ID),
				logger.Int("batch", batch+1),
			)
			continue
		}

		prompt := extract.BuildChunkPrompt(ectx, batch+1, totalBatches)
		raw, err := b.client.GenerateFromText(ctx, prompt, text)
		if err != nil {
			return models.NewEmptyRecord(), err
		}
		partial, err := extract.ParseRecord(raw)
		if err != nil {
			return models.NewEmptyRecord(), err
		}
		merged.Append(partial)

		b.logger.Debug("batch merged",
			logger.String("documentId", doc.ID),
			logger.Int("batch", batch+1),
			logger.Int("totalBatches", totalBatches),
		)
	}

	return merged, nil
}

func (b *Backend) ocrBatch(ctx context.Context, pages models.RenderedPageSet) (string, error) {
	var builder strings.Builder
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := b.ocr.ImageText(page.JPEG)
		if err != nil {
			return "", err
		}
		// 没认出文字的页不写进批次,免得全空批还要提交
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&builder, "--- page %d ---\n%s\n", page.Page, text)
	}
	return builder.String(), nil
}

func (b *Backend) Close() error {
	return b.ocr.Close()
}
