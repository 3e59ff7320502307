package extract

import (
	"context"

	"github.com/naphat-c/nacc-digitizer/internal/models"
)

// Backend 提取策略接口,每个策略用不同方式调用外部理解服务
// 成功时必须返回所有子集合键齐全的记录,缺数据为空而不是缺键
type Backend interface {
	// Extract 把已验证的文档转成原始结构化记录
	Extract(ctx context.Context, doc *models.SourceDocument, ectx Context) (models.ExtractionRecord, error)
	// Name 策略名,用于日志
	Name() string
	// Close 清理资源
	Close() error
}

// ServiceClient 外部理解服务能力,管道消费它而不实现它
type ServiceClient interface {
	GenerateFromImages(ctx context.Context, prompt string, images [][]byte) (string, error)
	GenerateFromText(ctx context.Context, prompt, text string) (string, error)
}

// Context 调用方已知的标识和静态查找表,只读传入
type Context struct {
	DocumentID  string
	SubmitterID int
	NaccID      int
	Submitter   models.Row
	// EnumTables 枚举映射表,进程启动时由外部装载
	EnumTables map[string][]map[string]string
}
