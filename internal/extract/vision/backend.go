package vision

import (
	"context"
	"fmt"

	"github.com/naphat-c/nacc-digitizer/internal/extract"
	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/internal/render"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

// Backend 把整本文档的页面图像一次提交给外部理解服务
// 页面渲染走共享 ContentCache,重复内容不会二次渲染
type Backend struct {
	client extract.ServiceClient
	pages  *render.CachedRenderer
	logger logger.Logger
}

// New 创建 vision 后端
func New(client extract.ServiceClient, pages *render.CachedRenderer, log logger.Logger) *Backend {
	return &Backend{client: client, pages: pages, logger: log.Named("vision")}
}

func (b *Backend) Name() string { return "vision" }

// Extract 渲染 → 单次图像调用 → 解析
func (b *Backend) Extract(ctx context.Context, doc *models.SourceDocument, ectx extract.Context) (models.ExtractionRecord, error) {
	pages, err := b.pages.Pages(ctx, doc)
	if err != nil {
		return models.NewEmptyRecord(), fmt.Errorf("failed to render pages: %w", err)
	}

	images := make([][]byte, 0, len(pages))
	for _, page := range pages {
		images = append(images, page.JPEG)
	}

	b.logger.Info("submitting page images",
		logger.String("documentId", doc.ID),
		logger.Int("pages", len(images)),
	)

	prompt := extract.BuildVisionPrompt(ectx, len(images))
	raw, err := b.client.GenerateFromImages(ctx, prompt, images)
	if err != nil {
		return models.NewEmptyRecord(), err
	}

	record, err := extract.ParseRecord(raw)
	if err != nil {
		return models.NewEmptyRecord(), err
	}

	b.logger.Info("extraction complete",
		logger.String("documentId", doc.ID),
		logger.Int("assets", len(record.Assets)),
		logger.Int("statements", len(record.Statements)),
		logger.Int("positions", len(record.Positions)),
		logger.Int("relatives", len(record.Relatives)),
	)
	return record, nil
}

func (b *Backend) Close() error { return nil }
