package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/naphat-c/nacc-digitizer/internal/models"
)

// 响应可能被 ``` 围栏包裹,或在闭括号前带多余逗号
// 修复只做这两类语法处理,修一次失败即判定 malformed
var (
	fencePattern         = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseRecord 把服务响应解析为 ExtractionRecord
// 首次解析失败时做一轮有界修复再解析,仍失败返回 ErrMalformedOutput
func ParseRecord(raw string) (models.ExtractionRecord, error) {
	text := strings.TrimSpace(raw)

	var rec models.ExtractionRecord
	if err := json.Unmarshal([]byte(text), &rec); err == nil {
		rec.Normalize()
		return rec, nil
	}

	repaired := Repair(text)
	if err := json.Unmarshal([]byte(repaired), &rec); err != nil {
		return models.NewEmptyRecord(), fmt.Errorf("%w: %v", models.ErrMalformedOutput, err)
	}
	rec.Normalize()
	return rec, nil
}

// Repair 剥掉代码围栏并去掉闭括号前的尾随逗号,不做更多猜测
func Repair(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	} else {
		// 只有起始围栏没有收尾的情况
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	text = trailingCommaPattern.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
