package impute

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

// Strategy 缺失值填充策略
type Strategy string

const (
	StrategyForwardFill Strategy = "forward_fill"
	StrategyMean        Strategy = "mean"
	StrategyNone        Strategy = "none"
)

// Stats 填充运行统计
type Stats struct {
	MetadataFilled int `json:"metadataFilled"`
	TextsCleaned   int `json:"textsCleaned"`
}

// Imputer 只处理上游登记表提供的元数据字段,绝不编造提取事实
type Imputer struct {
	strategy Strategy
	logger   logger.Logger

	mu    sync.Mutex
	stats Stats
}

// New 创建填充器
func New(strategy Strategy, log logger.Logger) *Imputer {
	return &Imputer{strategy: strategy, logger: log}
}

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	controlPattern    = regexp.MustCompile("[\x00-\x1f\x7f]")
)

// ImputeMetadata 填充行集合的缺失值,返回新的行,不改输入
// 文本缺失补空串,数值缺失按策略补零或列均值
// forward_fill 先把上一个非缺失值向下传播
func (im *Imputer) ImputeMetadata(rows []models.Row) []models.Row {
	if len(rows) == 0 {
		return rows
	}

	// 列全集
	columns := make([]string, 0)
	seen := make(map[string]bool)
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}

	out := make([]models.Row, len(rows))
	for i, row := range rows {
		out[i] = make(models.Row, len(row))
		for k, v := range row {
			out[i][k] = v
		}
	}

	filled := 0
	for _, col := range columns {
		if im.strategy == StrategyForwardFill {
			var prev interface{}
			for i := range out {
				if missing(out[i][col]) {
					if prev != nil {
						out[i][col] = prev
						filled++
					}
				} else {
					prev = out[i][col]
				}
			}
		}

		numeric, mean := columnMean(out, col)
		for i := range out {
			if !missing(out[i][col]) {
				continue
			}
			if numeric {
				if im.strategy == StrategyMean {
					out[i][col] = mean
				} else {
					out[i][col] = float64(0)
				}
			} else {
				out[i][col] = ""
			}
			filled++
		}
	}

	if filled > 0 {
		im.mu.Lock()
		im.stats.MetadataFilled += filled
		im.mu.Unlock()
		im.logger.Debug("imputed metadata", logger.Int("filled", filled), logger.Int("rows", len(rows)))
	}
	return out
}

func missing(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

// columnMean 判断列是否数值列并求非缺失均值
func columnMean(rows []models.Row, col string) (bool, float64) {
	var sum float64
	var n int
	numeric := false
	for _, row := range rows {
		v := row[col]
		if missing(v) {
			continue
		}
		switch x := v.(type) {
		case float64:
			numeric = true
			sum += x
			n++
		case int:
			numeric = true
			sum += float64(x)
			n++
		case int64:
			numeric = true
			sum += float64(x)
			n++
		default:
			return false, 0
		}
	}
	if !numeric || n == 0 {
		return numeric, 0
	}
	return true, sum / float64(n)
}

// CleanText 压缩空白并去掉控制字符
func (im *Imputer) CleanText(text string) string {
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = controlPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	im.mu.Lock()
	im.stats.TextsCleaned++
	im.mu.Unlock()
	return text
}

// NormalizeNumeric 从文本归一化数值,去掉货币后缀和千分位
func (im *Imputer) NormalizeNumeric(value string) (float64, bool) {
	value = strings.ReplaceAll(value, "บาท", "")
	value = strings.ReplaceAll(value, "ล้าน", "")
	value = strings.ReplaceAll(value, ",", "")
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Stats 返回统计快照
func (im *Imputer) Stats() Stats {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.stats
}

// Strategy 返回当前策略
func (im *Imputer) Strategy() Strategy {
	return im.strategy
}
