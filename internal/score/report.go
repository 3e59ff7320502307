package score

import (
	"fmt"
	"strings"

	"github.com/naphat-c/nacc-digitizer/internal/models"
)

// reportTopN 报告里低置信字段和告警的最大展示条数
const reportTopN = 10

// GenerateReport 生成人可读的置信度报告
func GenerateReport(scored *models.ScoredRecord) string {
	var b strings.Builder
	div := strings.Repeat("=", 60)

	b.WriteString(div + "\n")
	b.WriteString("CONFIDENCE SCORE REPORT\n")
	b.WriteString(div + "\n")

	fmt.Fprintf(&b, "\nDocument: %s (status: %s)\n", scored.DocumentID, scored.Status)
	fmt.Fprintf(&b, "Overall Confidence: %.1f%%\n", scored.OverallConfidence*100)

	fc := scored.Counts
	b.WriteString("\nField Statistics:\n")
	fmt.Fprintf(&b, "  Total Fields:    %d\n", fc.Total)
	if fc.Total > 0 {
		fmt.Fprintf(&b, "  High (>=90%%):    %d (%.0f%%)\n", fc.High, pct(fc.High, fc.Total))
		fmt.Fprintf(&b, "  Medium (70-90%%): %d (%.0f%%)\n", fc.Medium, pct(fc.Medium, fc.Total))
		fmt.Fprintf(&b, "  Low (<70%%):     %d (%.0f%%)\n", fc.Low, pct(fc.Low, fc.Total))
	}

	if len(scored.LowConfidence) > 0 {
		fmt.Fprintf(&b, "\nLow Confidence Fields (%d):\n", len(scored.LowConfidence))
		for i, fs := range scored.LowConfidence {
			if i >= reportTopN {
				break
			}
			fmt.Fprintf(&b, "  - %s: %.0f%%\n", fs.FieldPath, fs.Confidence*100)
		}
	}

	if len(scored.Warnings) > 0 {
		fmt.Fprintf(&b, "\nWarnings (%d):\n", len(scored.Warnings))
		for i, w := range scored.Warnings {
			if i >= reportTopN {
				break
			}
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}

	b.WriteString("\n" + div + "\n")
	return b.String()
}

func pct(n, total int) float64 {
	return float64(n) / float64(total) * 100
}
