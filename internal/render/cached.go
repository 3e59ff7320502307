package render

import (
	"context"
	"time"

	"github.com/naphat-c/nacc-digitizer/internal/cache"
	"github.com/naphat-c/nacc-digitizer/internal/models"
)

// CachedRenderer 先查 ContentCache 再渲染
// 多个后端/多次重试共享同一实例时,相同内容最多渲染一次
type CachedRenderer struct {
	cache    *cache.ContentCache
	renderer PageRenderer
}

// NewCachedRenderer 组合缓存和渲染器
func NewCachedRenderer(c *cache.ContentCache, r PageRenderer) *CachedRenderer {
	return &CachedRenderer{cache: c, renderer: r}
}

// Pages 返回文档的页面图像,命中缓存时不触发渲染
func (r *CachedRenderer) Pages(ctx context.Context, doc *models.SourceDocument) (models.RenderedPageSet, error) {
	if pages, ok := r.cache.Get(doc.Fingerprint()); ok {
		return pages, nil
	}

	start := time.Now()
	pages, err := r.renderer.Render(ctx, doc)
	if err != nil {
		return nil, err
	}
	r.cache.Put(doc.Fingerprint(), pages, time.Since(start))
	return pages.View(), nil
}
