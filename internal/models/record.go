package models

// Row 单条子集合记录,字段在评分前不定型
type Row = map[string]interface{}

// ExtractionRecord 任何后端的规范输出
// 五个子集合键必须全部存在,缺数据时为空而不是缺键
type ExtractionRecord struct {
	Submitter  Row   `json:"submitter"`
	Spouse     Row   `json:"spouse"`
	Assets     []Row `json:"assets"`
	Statements []Row `json:"statements"`
	Positions  []Row `json:"positions"`
	Relatives  []Row `json:"relatives"`
}

// NewEmptyRecord 返回所有子集合为空的记录
func NewEmptyRecord() ExtractionRecord {
	return ExtractionRecord{
		Submitter:  Row{},
		Spouse:     nil,
		Assets:     []Row{},
		Statements: []Row{},
		Positions:  []Row{},
		Relatives:  []Row{},
	}
}

// Normalize 补齐缺失的子集合,保证键稳定
func (r *ExtractionRecord) Normalize() {
	if r.Submitter == nil {
		r.Submitter = Row{}
	}
	if r.Assets == nil {
		r.Assets = []Row{}
	}
	if r.Statements == nil {
		r.Statements = []Row{}
	}
	if r.Positions == nil {
		r.Positions = []Row{}
	}
	if r.Relatives == nil {
		r.Relatives = []Row{}
	}
}

// IsEmpty 所有子集合均无数据
func (r *ExtractionRecord) IsEmpty() bool {
	return len(r.Submitter) == 0 && len(r.Spouse) == 0 &&
		len(r.Assets) == 0 && len(r.Statements) == 0 &&
		len(r.Positions) == 0 && len(r.Relatives) == 0
}

// IsPartial 部分子集合有数据,部分为空
func (r *ExtractionRecord) IsPartial() bool {
	if r.IsEmpty() {
		return false
	}
	return len(r.Assets) == 0 || len(r.Statements) == 0 ||
		len(r.Positions) == 0 || len(r.Relatives) == 0
}

// Append 把另一条记录的子集合并入本记录,用于分批提取的合并
// submitter/spouse 只保留第一个非空值
func (r *ExtractionRecord) Append(other ExtractionRecord) {
	if len(r.Submitter) == 0 && len(other.Submitter) > 0 {
		r.Submitter = other.Submitter
	}
	if len(r.Spouse) == 0 && len(other.Spouse) > 0 {
		r.Spouse = other.Spouse
	}
	r.Assets = append(r.Assets, other.Assets...)
	r.Statements = append(r.Statements, other.Statements...)
	r.Positions = append(r.Positions, other.Positions...)
	r.Relatives = append(r.Relatives, other.Relatives...)
}

// FieldScore 单字段置信度,启发式排序信号而非严格概率
type FieldScore struct {
	FieldPath  string  `json:"fieldPath"`
	Confidence float64 `json:"confidence"`
}

// FieldCounts 按置信度分桶的字段统计
type FieldCounts struct {
	Total  int `json:"total"`
	High   int `json:"high"`   // >= 0.9
	Medium int `json:"medium"` // 0.7 - 0.9
	Low    int `json:"low"`    // < 0.7
}

// DocumentStatus 单文档处理结果状态
type DocumentStatus string

const (
	StatusSuccess DocumentStatus = "success"
	StatusPartial DocumentStatus = "partial"
	StatusFailed  DocumentStatus = "failed"
)

// ScoredRecord 评分后的最终输出
type ScoredRecord struct {
	DocumentID        string                `json:"documentId"`
	Fingerprint       string                `json:"fingerprint"`
	Status            DocumentStatus        `json:"status"`
	Record            ExtractionRecord      `json:"record"`
	Scores            map[string]FieldScore `json:"scores"`
	OverallConfidence float64               `json:"overallConfidence"`
	Counts            FieldCounts           `json:"counts"`
	LowConfidence     []FieldScore          `json:"lowConfidence,omitempty"`
	Warnings          []string              `json:"warnings,omitempty"`
}
