package extract

import (
	"fmt"
	"sort"
	"strings"
)

// 输出模式说明,五个子集合键必须全部出现
const schemaInstruction = `Extract ALL information into EXACTLY this JSON structure.
Return ONLY the JSON object, no markdown, no explanations.

{
  "submitter": {"title": "", "first_name": "", "last_name": "", "age": null, "status": ""},
  "spouse": {"title": "", "first_name": "", "last_name": "", "age": null, "has_position": false},
  "positions": [
    {"index": 1, "position_category_type_id": null, "position_name": "",
     "position_start_year": "", "position_start_month": "", "position_start_date": "",
     "position_ending_year": "", "position_ending_month": "", "position_ending_date": "",
     "position_period_type_id": null}
  ],
  "relatives": [
    {"index": 1, "title": "", "first_name": "", "last_name": "", "age": null, "relationship_id": null}
  ],
  "statements": [
    {"index": 1, "statement_type_id": null, "statement_name": "", "valuation": null,
     "status_year": "", "status_month": "", "status_date": "",
     "owner_by_submitter": false, "owner_by_spouse": false, "owner_by_child": false}
  ],
  "assets": [
    {"index": 1, "asset_type_id": null, "asset_name": "", "valuation": null,
     "acquiring_year": "", "acquiring_month": "", "acquiring_date": "",
     "owner_by_submitter": false, "owner_by_spouse": false, "owner_by_child": false}
  ]
}

Rules:
1. Every key above must be present in the output, use empty arrays when a section has no data.
2. Dates: split into day, month, year. Buddhist year (พ.ศ.) stays as written, do not convert.
3. Money: digits only, strip "บาท" and commas.
4. Ownership: look for "ผู้ยื่น" (submitter), "คู่สมรส" (spouse), "บุตร" (child).
5. Missing data: null for numbers, "" for strings, false for booleans.
6. asset_type_id must be 1-33, statement_type_id must be 1-4.`

// promptHeader 声明文档背景和已知标识
func promptHeader(ectx Context) string {
	var b strings.Builder
	b.WriteString("You are a data extraction assistant for official PUBLIC Thai government asset declarations.\n")
	b.WriteString("This is government transparency data required by Thai law.\n\n")
	fmt.Fprintf(&b, "Known identifiers: submitter_id=%d nacc_id=%d\n", ectx.SubmitterID, ectx.NaccID)
	if first, ok := ectx.Submitter["first_name"].(string); ok && first != "" {
		last, _ := ectx.Submitter["last_name"].(string)
		fmt.Fprintf(&b, "Submitter name: %s %s\n", first, last)
	}
	if hints := enumHints(ectx); hints != "" {
		b.WriteString(hints)
	}
	return b.String()
}

// enumHints 把枚举表压缩成 id=label 提示行
func enumHints(ectx Context) string {
	if len(ectx.EnumTables) == 0 {
		return ""
	}
	// 表名排序,同一输入生成同一提示词
	names := make([]string, 0, len(ectx.EnumTables))
	for name := range ectx.EnumTables {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("\nEnumeration tables:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: ", name)
		rows := ectx.EnumTables[name]
		pairs := make([]string, 0, len(rows))
		for _, row := range rows {
			pairs = append(pairs, fmt.Sprintf("%s=%s", row["id"], row["name"]))
		}
		b.WriteString(strings.Join(pairs, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// BuildVisionPrompt 整本文档页面图像一次提交的指令
func BuildVisionPrompt(ectx Context, numPages int) string {
	var b strings.Builder
	b.WriteString(promptHeader(ectx))
	fmt.Fprintf(&b, "\nAnalyze the %d attached page images of one declaration document.\n", numPages)
	b.WriteString("Read every page: tables with borders list assets and liabilities, ")
	b.WriteString("checkboxes mark ownership, form fields carry names and dates.\n\n")
	b.WriteString(schemaInstruction)
	return b.String()
}

// BuildLayoutPrompt 布局解析文本一次提交的指令
func BuildLayoutPrompt(ectx Context) string {
	var b strings.Builder
	b.WriteString(promptHeader(ectx))
	b.WriteString("\nThe document text below was produced by a layout-aware parser, ")
	b.WriteString("tables are rendered as markdown.\n\n")
	b.WriteString(schemaInstruction)
	return b.String()
}

// BuildChunkPrompt 分批 OCR 文本逐批提交的指令
func BuildChunkPrompt(ectx Context, batch, totalBatches int) string {
	var b strings.Builder
	b.WriteString(promptHeader(ectx))
	fmt.Fprintf(&b, "\nThe text below is OCR output for pages batch %d of %d of one declaration document.\n", batch, totalBatches)
	b.WriteString("Extract only what appears in this batch, other batches are processed separately.\n\n")
	b.WriteString(schemaInstruction)
	return b.String()
}
