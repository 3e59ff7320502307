package validator

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

// Config 验证器配置,上限都是软告警而不是硬失败
type Config struct {
	MaxPageCount  int
	WarnSizeBytes int64
}

// DefaultConfig 返回默认验证配置
func DefaultConfig() *Config {
	return &Config{
		MaxPageCount:  1000,
		WarnSizeBytes: 100 * 1024 * 1024, // 100MB
	}
}

// DocumentValidator 在任何昂贵处理之前做结构校验
// 无副作用:不修改也不持久化文档
type DocumentValidator struct {
	config *Config
	logger logger.Logger
}

// New 创建文档验证器
func New(log logger.Logger, cfg *Config) *DocumentValidator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &DocumentValidator{config: cfg, logger: log}
}

// Validate 按顺序检查:非空 → 容器可解析 → 页数 > 0 → 页数/体积上限(软告警)
// 容器无法解析时 IsValid=false 且 Errors 非空
func (v *DocumentValidator) Validate(doc *models.SourceDocument) models.ValidationReport {
	report := models.ValidationReport{
		SizeBytes: doc.Size(),
		Warnings:  []string{},
		Errors:    []string{},
	}

	if doc.Size() == 0 {
		report.Errors = append(report.Errors, "document is empty")
		return report
	}

	reader := doc.Reader()
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("cannot parse PDF container: %v", err))
		v.logger.Warn("document failed validation",
			logger.String("documentId", doc.ID),
			logger.String("filename", doc.Filename),
			logger.Error(err),
		)
		return report
	}

	report.PageCount = pdfReader.NumPage()
	if report.PageCount <= 0 {
		report.Errors = append(report.Errors, "PDF has 0 pages")
		return report
	}

	if doc.Size() > v.config.WarnSizeBytes {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("large file: %.1fMB", float64(doc.Size())/(1024*1024)))
	}
	if report.PageCount > v.config.MaxPageCount {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("large document: %d pages", report.PageCount))
	}

	report.IsValid = true
	v.logger.Debug("document validated",
		logger.String("documentId", doc.ID),
		logger.Int("pages", report.PageCount),
		logger.Int64("sizeBytes", report.SizeBytes),
	)
	return report
}
