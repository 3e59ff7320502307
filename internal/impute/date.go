package impute

import (
	"strconv"
	"strings"
)

// NormalizedDate 归一化后的日期,无法归一化的分量为 nil,不做猜测
type NormalizedDate struct {
	Year  *int
	Month *int
	Day   *int
}

// 月份名查找表,泰文全称/缩写 + 英文全称/缩写
var monthNames = map[string]int{
	"มกราคม": 1, "ม.ค.": 1, "january": 1, "jan": 1,
	"กุมภาพันธ์": 2, "ก.พ.": 2, "february": 2, "feb": 2,
	"มีนาคม": 3, "มี.ค.": 3, "march": 3, "mar": 3,
	"เมษายน": 4, "เม.ย.": 4, "april": 4, "apr": 4,
	"พฤษภาคม": 5, "พ.ค.": 5, "may": 5,
	"มิถุนายน": 6, "มิ.ย.": 6, "june": 6, "jun": 6,
	"กรกฎาคม": 7, "ก.ค.": 7, "july": 7, "jul": 7,
	"สิงหาคม": 8, "ส.ค.": 8, "august": 8, "aug": 8,
	"กันยายน": 9, "ก.ย.": 9, "september": 9, "sep": 9,
	"ตุลาคม": 10, "ต.ค.": 10, "october": 10, "oct": 10,
	"พฤศจิกายน": 11, "พ.ย.": 11, "november": 11, "nov": 11,
	"ธันวาคม": 12, "ธ.ค.": 12, "december": 12, "dec": 12,
}

// buddhistYearFloor 佛历年的判定下限,超过即减 543 转公历
const buddhistYearFloor = 2400

// NormalizeDate 归一化日期分量
// 佛历年 (>2400) 减 543;月份接受数字或本地化名称;日 1-31
func NormalizeDate(year, month, day string) NormalizedDate {
	var result NormalizedDate

	if y, err := strconv.Atoi(strings.TrimSpace(year)); err == nil {
		if y > buddhistYearFloor {
			y -= 543
		}
		result.Year = &y
	}

	month = strings.TrimSpace(month)
	if m, err := strconv.Atoi(month); err == nil {
		if m >= 1 && m <= 12 {
			result.Month = &m
		}
	} else if m, ok := monthNames[strings.ToLower(month)]; ok {
		result.Month = &m
	}

	if d, err := strconv.Atoi(strings.TrimSpace(day)); err == nil {
		if d >= 1 && d <= 31 {
			result.Day = &d
		}
	}

	return result
}
