package score

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/naphat-c/nacc-digitizer/internal/impute"
	"github.com/naphat-c/nacc-digitizer/internal/models"
)

// Scorer 用确定性启发式给每个已填充字段打分
// 对输入记录是纯函数:不修改记录,同一输入两次打分结果相同
type Scorer struct {
	config      *Config
	thaiPattern *regexp.Regexp
}

// New 创建打分器
func New(cfg *Config) *Scorer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Scorer{
		config:      cfg,
		thaiPattern: regexp.MustCompile(`^[ก-๏\s\.]+$`),
	}
}

// accumulator 收集字段分数,路径顺序固定保证输出确定
type accumulator struct {
	cfg      *Config
	scores   map[string]models.FieldScore
	counts   models.FieldCounts
	low      []models.FieldScore
	warnings []string
}

func (a *accumulator) add(path string, confidence float64) {
	fs := models.FieldScore{FieldPath: path, Confidence: confidence}
	a.scores[path] = fs
	a.counts.Total++
	switch {
	case confidence >= a.cfg.HighThreshold:
		a.counts.High++
	case confidence >= a.cfg.MediumThreshold:
		a.counts.Medium++
	default:
		a.counts.Low++
		a.low = append(a.low, fs)
		if confidence < a.cfg.WarnThreshold {
			a.warnings = append(a.warnings,
				fmt.Sprintf("low confidence (%.0f%%): %s", confidence*100, path))
		}
	}
}

// Score 给记录的每个已填充字段打分并聚合
func (s *Scorer) Score(record models.ExtractionRecord) models.ScoredRecord {
	acc := &accumulator{
		cfg:      s.config,
		scores:   make(map[string]models.FieldScore),
		low:      []models.FieldScore{},
		warnings: []string{},
	}

	if len(record.Submitter) > 0 {
		s.scorePerson(acc, "submitter", record.Submitter)
	}
	if len(record.Spouse) > 0 {
		s.scorePerson(acc, "spouse", record.Spouse)
	}
	for i, rel := range record.Relatives {
		s.scorePerson(acc, fmt.Sprintf("relatives[%d]", i), rel)
	}
	for i, pos := range record.Positions {
		s.scorePosition(acc, fmt.Sprintf("positions[%d]", i), pos)
	}
	for i, asset := range record.Assets {
		s.scoreAsset(acc, fmt.Sprintf("assets[%d]", i), asset)
	}
	for i, stmt := range record.Statements {
		s.scoreStatement(acc, fmt.Sprintf("statements[%d]", i), stmt)
	}

	overall := 0.0
	if acc.counts.Total > 0 {
		overall = (float64(acc.counts.High)*s.config.WeightHigh +
			float64(acc.counts.Medium)*s.config.WeightMedium +
			float64(acc.counts.Low)*s.config.WeightLow) / float64(acc.counts.Total)
	}

	return models.ScoredRecord{
		Record:            record,
		Scores:            acc.scores,
		OverallConfidence: overall,
		Counts:            acc.counts,
		LowConfidence:     acc.low,
		Warnings:          acc.warnings,
	}
}

// scorePerson 称谓/名/姓/年龄
func (s *Scorer) scorePerson(acc *accumulator, prefix string, person models.Row) {
	handled := map[string]bool{}

	if _, ok := person["title"]; ok {
		handled["title"] = true
		title := asString(person["title"])
		switch {
		case title == "":
			acc.add(prefix+".title", 0.0)
		case thaiTitles[title]:
			acc.add(prefix+".title", s.config.EnumMember)
		case s.thaiPattern.MatchString(title):
			acc.add(prefix+".title", 0.75)
		default:
			acc.add(prefix+".title", 0.50)
		}
	}
	if _, ok := person["first_name"]; ok {
		handled["first_name"] = true
		acc.add(prefix+".first_name", s.textScore(asString(person["first_name"]), 2, 30))
	}
	if _, ok := person["last_name"]; ok {
		handled["last_name"] = true
		acc.add(prefix+".last_name", s.textScore(asString(person["last_name"]), 2, 30))
	}
	if _, ok := person["age"]; ok {
		handled["age"] = true
		if age, ok := asFloat(person["age"]); ok {
			switch {
			case age >= float64(s.config.AgeMin) && age <= float64(s.config.AgeMax):
				acc.add(prefix+".age", s.config.NumericInRange)
			case age >= float64(s.config.AgeHardMin) && age <= float64(s.config.AgeHardMax):
				acc.add(prefix+".age", s.config.NumericAbove)
			default:
				acc.add(prefix+".age", s.config.NumericBelow)
			}
		} else {
			acc.add(prefix+".age", 0.0)
		}
	}

	s.scoreLeftovers(acc, prefix, person, handled)
}

// scorePosition 职位名和起止日期
func (s *Scorer) scorePosition(acc *accumulator, prefix string, pos models.Row) {
	handled := map[string]bool{}

	if _, ok := pos["position_name"]; ok {
		handled["position_name"] = true
		acc.add(prefix+".position_name", s.textScore(asString(pos["position_name"]), 3, 100))
	}

	for _, span := range []string{"position_start", "position_ending"} {
		yKey, mKey, dKey := span+"_year", span+"_month", span+"_date"
		if hasAny(pos, yKey, mKey, dKey) {
			handled[yKey], handled[mKey], handled[dKey] = true, true, true
			acc.add(prefix+"."+span,
				s.dateScore(asString(pos[yKey]), asString(pos[mKey]), asString(pos[dKey])))
		}
	}

	s.scoreEnum(acc, prefix, pos, handled, "position_category_type_id", 0, 0)
	s.scoreEnum(acc, prefix, pos, handled, "position_period_type_id", 0, 0)
	s.scoreLeftovers(acc, prefix, pos, handled)
}

// scoreAsset 名称/类型/估值/取得日期/所有权
func (s *Scorer) scoreAsset(acc *accumulator, prefix string, asset models.Row) {
	handled := map[string]bool{}

	if _, ok := asset["asset_name"]; ok {
		handled["asset_name"] = true
		acc.add(prefix+".asset_name", s.textScore(asString(asset["asset_name"]), 2, 200))
	}

	s.scoreEnum(acc, prefix, asset, handled, "asset_type_id", s.config.AssetTypeMin, s.config.AssetTypeMax)

	if _, ok := asset["valuation"]; ok {
		handled["valuation"] = true
		acc.add(prefix+".valuation", s.valuationScore(asset["valuation"]))
	}

	if hasAny(asset, "acquiring_year", "acquiring_month", "acquiring_date") {
		handled["acquiring_year"], handled["acquiring_month"], handled["acquiring_date"] = true, true, true
		acc.add(prefix+".acquiring",
			s.dateScore(asString(asset["acquiring_year"]), asString(asset["acquiring_month"]), asString(asset["acquiring_date"])))
	}

	s.scoreOwnership(acc, prefix, asset, handled)
	s.scoreLeftovers(acc, prefix, asset, handled)
}

// scoreStatement 名称/类型/估值/状态日期/所有权
func (s *Scorer) scoreStatement(acc *accumulator, prefix string, stmt models.Row) {
	handled := map[string]bool{}

	if _, ok := stmt["statement_name"]; ok {
		handled["statement_name"] = true
		acc.add(prefix+".statement_name", s.textScore(asString(stmt["statement_name"]), 2, 200))
	}

	s.scoreEnum(acc, prefix, stmt, handled, "statement_type_id", s.config.StatementTypeMin, s.config.StatementTypeMax)

	if _, ok := stmt["valuation"]; ok {
		handled["valuation"] = true
		acc.add(prefix+".valuation", s.valuationScore(stmt["valuation"]))
	}

	if hasAny(stmt, "status_year", "status_month", "status_date") {
		handled["status_year"], handled["status_month"], handled["status_date"] = true, true, true
		acc.add(prefix+".status",
			s.dateScore(asString(stmt["status_year"]), asString(stmt["status_month"]), asString(stmt["status_date"])))
	}

	s.scoreOwnership(acc, prefix, stmt, handled)
	s.scoreLeftovers(acc, prefix, stmt, handled)
}

// scoreEnum 枚举字段:在允许集合内/出界/缺失
func (s *Scorer) scoreEnum(acc *accumulator, prefix string, row models.Row, handled map[string]bool, key string, min, max int) {
	if _, ok := row[key]; !ok {
		return
	}
	handled[key] = true
	v, ok := asFloat(row[key])
	if !ok {
		acc.add(prefix+"."+key, 0.0)
		return
	}
	if max > 0 {
		if v >= float64(min) && v <= float64(max) {
			acc.add(prefix+"."+key, s.config.EnumMember)
		} else {
			acc.add(prefix+"."+key, s.config.EnumInvalid)
		}
		return
	}
	// 范围未知的标识字段,正整数即认为合理
	if v > 0 {
		acc.add(prefix+"."+key, s.config.EnumMember)
	} else {
		acc.add(prefix+"."+key, s.config.EnumInvalid)
	}
}

// scoreOwnership 所有权复合字段:至少一个标志为真
func (s *Scorer) scoreOwnership(acc *accumulator, prefix string, row models.Row, handled map[string]bool) {
	flags := []string{"owner_by_submitter", "owner_by_spouse", "owner_by_child"}
	if !hasAny(row, flags...) {
		return
	}
	anySet := false
	for _, f := range flags {
		handled[f] = true
		if b, ok := row[f].(bool); ok && b {
			anySet = true
		}
	}
	if anySet {
		acc.add(prefix+".ownership", s.config.OwnershipSet)
	} else {
		acc.add(prefix+".ownership", s.config.OwnershipNone)
	}
}

// scoreLeftovers 兜底:没有专门规则的已填充字段也要有分数,不允许悄悄跳过
func (s *Scorer) scoreLeftovers(acc *accumulator, prefix string, row models.Row, handled map[string]bool) {
	keys := make([]string, 0, len(row))
	for k := range row {
		if handled[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		acc.add(prefix+"."+k, s.genericScore(row[k]))
	}
}

func (s *Scorer) genericScore(v interface{}) float64 {
	switch x := v.(type) {
	case nil:
		return 0.0
	case bool:
		return s.config.EnumMember
	case string:
		return s.textScore(x, 1, 200)
	case float64:
		if x >= 0 {
			return s.config.NumericInRange
		}
		return s.config.NumericBelow
	case int:
		if x >= 0 {
			return s.config.NumericInRange
		}
		return s.config.NumericBelow
	default:
		return s.config.EnumInvalid
	}
}

// valuationScore 估值:0 到上限为正常,超上限可疑,负值低分
func (s *Scorer) valuationScore(v interface{}) float64 {
	val, ok := asFloat(v)
	if !ok {
		return 0.0
	}
	switch {
	case val >= 0 && val <= s.config.ValuationMax:
		return s.config.NumericInRange
	case val > s.config.ValuationMax:
		return s.config.NumericAbove
	default:
		return s.config.NumericBelow
	}
}

// textScore 长度合理性加文种密度
func (s *Scorer) textScore(text string, minLen, maxLen int) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0.0
	}
	runes := []rune(text)
	if len(runes) < minLen {
		return s.config.TextTooShort
	}
	if len(runes) > maxLen {
		return s.config.TextTooLong
	}

	if s.thaiPattern.MatchString(text) {
		return s.config.TextValid
	}

	thai := 0
	for _, r := range runes {
		if r >= 0x0E00 && r <= 0x0E7F {
			thai++
		}
	}
	switch {
	case thai*2 > len(runes):
		return s.config.TextMostly
	case thai > 0:
		return s.config.TextSome
	default:
		return s.config.TextNone
	}
}

// dateScore 分量沿用归一化器的规则,另查真实日历有效性
// 分量各自合法但日期不存在 (如 2 月 30 日) 给 DateImpossible
func (s *Scorer) dateScore(year, month, day string) float64 {
	if strings.TrimSpace(year) == "" || strings.TrimSpace(month) == "" || strings.TrimSpace(day) == "" {
		return 0.0
	}

	nd := impute.NormalizeDate(year, month, day)
	if nd.Year == nil {
		return s.config.DateParseError
	}
	if *nd.Year < s.config.YearMin || *nd.Year > s.config.YearMax {
		return s.config.DateBadYear
	}
	if nd.Month == nil {
		return s.config.DateBadMonth
	}
	if nd.Day == nil {
		return s.config.DateBadDay
	}

	t := time.Date(*nd.Year, time.Month(*nd.Month), *nd.Day, 0, 0, 0, 0, time.UTC)
	if t.Year() != *nd.Year || int(t.Month()) != *nd.Month || t.Day() != *nd.Day {
		return s.config.DateImpossible
	}
	return s.config.DateValid
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%v", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func hasAny(row models.Row, keys ...string) bool {
	for _, k := range keys {
		if _, ok := row[k]; ok {
			return true
		}
	}
	return false
}
