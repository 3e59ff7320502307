package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naphat-c/nacc-digitizer/internal/cache"
	"github.com/naphat-c/nacc-digitizer/internal/extract"
	"github.com/naphat-c/nacc-digitizer/internal/extract/layout"
	"github.com/naphat-c/nacc-digitizer/internal/extract/legacy"
	"github.com/naphat-c/nacc-digitizer/internal/extract/vision"
	"github.com/naphat-c/nacc-digitizer/internal/impute"
	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/internal/render"
	"github.com/naphat-c/nacc-digitizer/internal/score"
	"github.com/naphat-c/nacc-digitizer/internal/validator"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

// 后端策略名
const (
	BackendVision = "vision"
	BackendLayout = "layout"
	BackendLegacy = "legacy"
)

// Options 管道配置,由调用方装配后传入,管道自身不读环境
type Options struct {
	Backend               string
	UseImputation         bool
	ImputationStrategy    impute.Strategy
	MaxRetries            int
	ValidateBeforeExtract bool
	// BatchConcurrency 批处理并发上限,<=0 表示串行
	BatchConcurrency int

	RetryBackoff   time.Duration
	AttemptTimeout time.Duration
	RenderConfig   *render.Config
}

// DefaultOptions 返回默认管道配置
func DefaultOptions() *Options {
	return &Options{
		Backend:               BackendVision,
		UseImputation:         true,
		ImputationStrategy:    impute.StrategyForwardFill,
		MaxRetries:            3,
		ValidateBeforeExtract: true,
		BatchConcurrency:      4,
	}
}

// Orchestrator 按 验证 → 元数据填充 → 提取 → 评分 的固定顺序处理单文档
// 缓存由调用方注入,同一次运行内所有后端共享一个实例
type Orchestrator struct {
	validator *validator.DocumentValidator
	extractor *extract.RetryingExtractor
	imputer   *impute.Imputer
	scorer    *score.Scorer
	cache     *cache.ContentCache
	options   *Options
	logger    logger.Logger
}

// New 组装管道,后端在构造时按配置选定一次,之后不再切换
func New(client extract.ServiceClient, c *cache.ContentCache, log logger.Logger, opts *Options) (*Orchestrator, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if c == nil {
		c = cache.New(log)
	}

	pages := render.NewCachedRenderer(c, render.NewPopplerRenderer(log, opts.RenderConfig))
	backend, err := newBackend(opts.Backend, client, pages, log)
	if err != nil {
		return nil, err
	}

	retryCfg := extract.DefaultRetryConfig()
	if opts.MaxRetries > 0 {
		retryCfg.MaxAttempts = opts.MaxRetries
	}
	if opts.RetryBackoff > 0 {
		retryCfg.BackoffBase = opts.RetryBackoff
	}
	if opts.AttemptTimeout > 0 {
		retryCfg.AttemptTimeout = opts.AttemptTimeout
	}

	return &Orchestrator{
		validator: validator.New(log, nil),
		extractor: extract.NewRetryingExtractor(backend, retryCfg, log),
		imputer:   impute.New(opts.ImputationStrategy, log),
		scorer:    score.New(nil),
		cache:     c,
		options:   opts,
		logger:    log,
	}, nil
}

// newBackend 策略工厂,vision/layout/legacy 三选一
func newBackend(name string, client extract.ServiceClient, pages *render.CachedRenderer, log logger.Logger) (extract.Backend, error) {
	switch name {
	case BackendVision, "":
		return vision.New(client, pages, log), nil
	case BackendLayout:
		return layout.New(client, pages, log), nil
	case BackendLegacy:
		return legacy.New(client, pages, log), nil
	default:
		return nil, fmt.Errorf("unknown extraction backend: %q", name)
	}
}

// Cache 返回共享的渲染缓存
func (o *Orchestrator) Cache() *cache.ContentCache {
	return o.cache
}

// Imputer 返回填充器,供调用方读取运行统计
func (o *Orchestrator) Imputer() *impute.Imputer {
	return o.imputer
}

// Close 释放后端持有的资源
func (o *Orchestrator) Close() error {
	return o.extractor.Backend().Close()
}

// Process 处理单个文档,失败一律折叠成 failed 状态,从不向上抛
func (o *Orchestrator) Process(ctx context.Context, doc *models.SourceDocument, ectx extract.Context) models.ScoredRecord {
	start := time.Now()
	if ectx.DocumentID == "" {
		ectx.DocumentID = doc.ID
	}

	if err := ctx.Err(); err != nil {
		return o.failed(doc, fmt.Sprintf("processing cancelled: %v", err))
	}

	var warnings []string
	if o.options.ValidateBeforeExtract {
		report := o.validator.Validate(doc)
		if !report.IsValid {
			o.logger.Warn("document rejected by validation",
				logger.String("documentId", doc.ID),
				logger.Any("errors", report.Errors),
			)
			return o.failed(doc, report.Errors...)
		}
		warnings = append(warnings, report.Warnings...)
	}

	// 填充只作用于上游登记表给的元数据,提取出的事实字段绝不触碰
	// 清洗后的元数据再进提示词,记录本身原样评分
	if o.options.UseImputation && o.options.ImputationStrategy != impute.StrategyNone && len(ectx.Submitter) > 0 {
		ectx.Submitter = o.imputer.ImputeMetadata([]models.Row{ectx.Submitter})[0]
	}

	record, err := o.extractor.Extract(ctx, doc, ectx)
	if err != nil {
		if !errors.Is(err, models.ErrEmptyResult) {
			return o.failed(doc, append(warnings, failureWarning(err))...)
		}
		// 重试耗尽但没有数据:可上报的空结果,不算硬错误
		warnings = append(warnings, fmt.Sprintf("no data extracted after %d attempts", o.extractor.MaxAttempts()))
	}

	scored := o.scorer.Score(record)
	scored.DocumentID = doc.ID
	scored.Fingerprint = doc.Fingerprint()
	scored.Status = statusOf(&record)
	scored.Warnings = append(warnings, scored.Warnings...)

	o.logger.Info("document processed",
		logger.String("documentId", doc.ID),
		logger.String("status", string(scored.Status)),
		logger.Float64("confidence", scored.OverallConfidence),
		logger.Int("fields", scored.Counts.Total),
		logger.Duration("elapsed", time.Since(start)),
	)
	return scored
}

// ProcessBatch 并发处理一批文档,单个文档失败不会中断其它文档
// 返回的切片与输入同序,结果内带 DocumentID 用于显式关联
func (o *Orchestrator) ProcessBatch(ctx context.Context, docs []*models.SourceDocument, ectx extract.Context) []models.ScoredRecord {
	results := make([]models.ScoredRecord, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	if o.options.BatchConcurrency > 0 {
		g.SetLimit(o.options.BatchConcurrency)
	} else {
		g.SetLimit(1)
	}

	for i, doc := range docs {
		g.Go(func() error {
			results[i] = o.Process(gctx, doc, ectx)
			return nil
		})
	}
	// worker 不返回错误,Wait 只用来等全部完成
	_ = g.Wait()

	return results
}

// failed 构造失败文档的最终输出:空子集合、零置信、非空告警
func (o *Orchestrator) failed(doc *models.SourceDocument, warnings ...string) models.ScoredRecord {
	if len(warnings) == 0 {
		warnings = []string{"document processing failed"}
	}
	return models.ScoredRecord{
		DocumentID:        doc.ID,
		Fingerprint:       doc.Fingerprint(),
		Status:            models.StatusFailed,
		Record:            models.NewEmptyRecord(),
		Scores:            map[string]models.FieldScore{},
		OverallConfidence: 0,
		LowConfidence:     []models.FieldScore{},
		Warnings:          warnings,
	}
}

// failureWarning 把错误类别翻译成给人看的告警
func failureWarning(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidDocument):
		return fmt.Sprintf("invalid document: %v", err)
	case errors.Is(err, models.ErrServiceBlocked):
		return fmt.Sprintf("understanding service refused the request: %v", err)
	case errors.Is(err, models.ErrMalformedOutput):
		return fmt.Sprintf("service returned unparseable output: %v", err)
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("processing cancelled: %v", err)
	default:
		return fmt.Sprintf("extraction failed: %v", err)
	}
}

func statusOf(record *models.ExtractionRecord) models.DocumentStatus {
	switch {
	case record.IsEmpty():
		return models.StatusFailed
	case record.IsPartial():
		return models.StatusPartial
	default:
		return models.StatusSuccess
	}
}
