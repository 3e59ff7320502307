package score

// Config 打分常数
// 数值是经验值,按原样保留为可配置项,不做概率校准
type Config struct {
	// 枚举字段
	EnumMember  float64
	EnumInvalid float64

	// 文本字段
	TextValid    float64 // 纯目标文种
	TextMostly   float64 // 目标文种过半
	TextSome     float64 // 含少量目标文种
	TextNone     float64 // 完全不含
	TextTooShort float64
	TextTooLong  float64

	// 数值字段
	NumericInRange float64
	NumericAbove   float64 // 超上限,可疑但可能
	NumericBelow   float64 // 低于下限,如不允许的负值

	// 日期字段
	DateValid      float64
	DateImpossible float64 // 分量各自合法但日历上不存在
	DateBadYear    float64
	DateBadMonth   float64
	DateBadDay     float64
	DateParseError float64

	// 所有权复合字段
	OwnershipSet  float64
	OwnershipNone float64

	// 分桶
	HighThreshold   float64
	MediumThreshold float64
	WarnThreshold   float64

	// 聚合权重
	WeightHigh   float64
	WeightMedium float64
	WeightLow    float64

	// 领域取值范围
	AssetTypeMin     int
	AssetTypeMax     int
	StatementTypeMin int
	StatementTypeMax int
	ValuationMax     float64
	AgeMin           int
	AgeMax           int
	AgeHardMin       int
	AgeHardMax       int
	YearMin          int
	YearMax          int
}

// DefaultConfig 返回默认打分常数
func DefaultConfig() *Config {
	return &Config{
		EnumMember:  0.95,
		EnumInvalid: 0.40,

		TextValid:    0.95,
		TextMostly:   0.80,
		TextSome:     0.65,
		TextNone:     0.40,
		TextTooShort: 0.30,
		TextTooLong:  0.60,

		NumericInRange: 0.95,
		NumericAbove:   0.70,
		NumericBelow:   0.20,

		DateValid:      0.95,
		DateImpossible: 0.60,
		DateBadYear:    0.20,
		DateBadMonth:   0.30,
		DateBadDay:     0.30,
		DateParseError: 0.10,

		OwnershipSet:  0.95,
		OwnershipNone: 0.50,

		HighThreshold:   0.9,
		MediumThreshold: 0.7,
		WarnThreshold:   0.5,

		WeightHigh:   1.0,
		WeightMedium: 0.8,
		WeightLow:    0.5,

		AssetTypeMin:     1,
		AssetTypeMax:     33,
		StatementTypeMin: 1,
		StatementTypeMax: 4,
		ValuationMax:     1_000_000_000, // 10 亿铢
		AgeMin:           18,
		AgeMax:           100,
		AgeHardMin:       0,
		AgeHardMax:       120,
		YearMin:          1900,
		YearMax:          2100,
	}
}

// thaiTitles 常见称谓
var thaiTitles = map[string]bool{
	"นาย": true, "นาง": true, "นางสาว": true,
	"ด.ช.": true, "ด.ญ.": true,
	"พ.ต.ท.": true, "พ.ต.อ.": true, "พ.อ.": true, "ร.ต.": true,
}
