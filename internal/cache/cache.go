package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

// ContentCache 按内容指纹缓存页面渲染结果
// 同一进程内相同字节内容最多只渲染一次,不跨进程持久化
type ContentCache struct {
	mu      sync.RWMutex
	entries map[string]*models.CacheEntry

	// 命中计数只是统计,允许最终一致
	hits        atomic.Uint64
	misses      atomic.Uint64
	timeSavedNS atomic.Int64

	logger logger.Logger
}

// Stats 缓存统计
type Stats struct {
	Hits      uint64
	Misses    uint64
	Entries   int
	TimeSaved time.Duration
}

// HitRate 命中率,0-100
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// New 创建空缓存,由调用方持有并注入各后端
func New(log logger.Logger) *ContentCache {
	return &ContentCache{
		entries: make(map[string]*models.CacheEntry),
		logger:  log,
	}
}

// Get 纯查找,只更新命中统计
// 命中时返回只读视图,底层页面数据与首次 Put 的相同
func (c *ContentCache) Get(fingerprint string) (models.RenderedPageSet, bool) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	c.timeSavedNS.Add(int64(entry.RenderCost))
	if c.logger != nil {
		c.logger.Debug("cache hit",
			logger.String("fingerprint", shortFP(fingerprint)),
			logger.Int("pages", len(entry.Pages)),
			logger.Duration("saved", entry.RenderCost),
		)
	}
	return entry.Pages.View(), true
}

// Put 幂等写入,同一指纹重复写入为 last-writer-wins,不报错
func (c *ContentCache) Put(fingerprint string, pages models.RenderedPageSet, renderCost time.Duration) {
	entry := &models.CacheEntry{
		Fingerprint: fingerprint,
		Pages:       pages,
		CreatedAt:   time.Now(),
		RenderCost:  renderCost,
	}

	c.mu.Lock()
	c.entries[fingerprint] = entry
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Debug("cached rendered pages",
			logger.String("fingerprint", shortFP(fingerprint)),
			logger.Int("pages", len(pages)),
		)
	}
}

func shortFP(fp string) string {
	if len(fp) > 8 {
		return fp[:8]
	}
	return fp
}

// Len 当前条目数
func (c *ContentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats 返回缓存统计快照
func (c *ContentCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Entries:   c.Len(),
		TimeSaved: time.Duration(c.timeSavedNS.Load()),
	}
}

// Clear 清空缓存和统计
func (c *ContentCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*models.CacheEntry)
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
	c.timeSavedNS.Store(0)
}
