package extract

import (
	"context"
	"errors"
	"time"

	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

// RetryConfig 重试策略
type RetryConfig struct {
	MaxAttempts    int
	BackoffBase    time.Duration // 第 k 次失败后等待 base * 2^(k-1)
	AttemptTimeout time.Duration // 单次尝试超时,超时按瞬时错误处理
}

// DefaultRetryConfig 返回默认重试策略
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    3,
		BackoffBase:    2 * time.Second,
		AttemptTimeout: 3 * time.Minute,
	}
}

// RetryingExtractor 用有界重试和指数退避包装一个后端
// 只有瞬时服务错误会重试,blocked/malformed 立刻终止
type RetryingExtractor struct {
	backend Backend
	config  *RetryConfig
	logger  logger.Logger
}

// NewRetryingExtractor 包装后端
func NewRetryingExtractor(backend Backend, cfg *RetryConfig, log logger.Logger) *RetryingExtractor {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryingExtractor{backend: backend, config: cfg, logger: log}
}

// Backend 返回被包装的后端
func (r *RetryingExtractor) Backend() Backend {
	return r.backend
}

// MaxAttempts 返回生效的尝试次数上限
func (r *RetryingExtractor) MaxAttempts() int {
	return r.config.MaxAttempts
}

// Extract 最多尝试 MaxAttempts 次
// 重试耗尽返回空记录和 ErrEmptyResult,可上报但不致命
// 取消信号在两次尝试之间生效
func (r *RetryingExtractor) Extract(ctx context.Context, doc *models.SourceDocument, ectx Context) (models.ExtractionRecord, error) {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		record, err := r.attempt(ctx, doc, ectx)
		if err == nil {
			return record, nil
		}
		lastErr = err

		if !models.IsRetryable(err) {
			r.logger.Warn("extraction failed, not retryable",
				logger.String("documentId", doc.ID),
				logger.String("backend", r.backend.Name()),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
			return models.NewEmptyRecord(), err
		}

		if attempt == r.config.MaxAttempts {
			break
		}

		wait := r.config.BackoffBase * (1 << (attempt - 1))
		r.logger.Warn("transient extraction error, backing off",
			logger.String("documentId", doc.ID),
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.Error(err),
		)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return models.NewEmptyRecord(), ctx.Err()
		}
	}

	r.logger.Error("extraction attempts exhausted",
		logger.String("documentId", doc.ID),
		logger.String("backend", r.backend.Name()),
		logger.Int("attempts", r.config.MaxAttempts),
		logger.Error(lastErr),
	)
	return models.NewEmptyRecord(), models.ErrEmptyResult
}

func (r *RetryingExtractor) attempt(ctx context.Context, doc *models.SourceDocument, ectx Context) (models.ExtractionRecord, error) {
	attemptCtx := ctx
	if r.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.config.AttemptTimeout)
		defer cancel()
	}

	record, err := r.backend.Extract(attemptCtx, doc, ectx)
	if err != nil {
		// 单次超时归类为瞬时错误,走同样的重试策略
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return record, models.ErrTransientService
		}
		return record, err
	}
	return record, nil
}
