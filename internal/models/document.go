package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// hashChunkSize 流式哈希的块大小
const hashChunkSize = 8 * 1024

// SourceDocument 源文档,读取后不可变,指纹即身份
type SourceDocument struct {
	ID          string
	Filename    string
	fingerprint string
	content     []byte
}

// NewSourceDocument 读取文档内容并计算指纹,哈希按固定块流式计算
func NewSourceDocument(id, filename string, r io.Reader) (*SourceDocument, error) {
	h := sha256.New()
	var buf bytes.Buffer
	chunk := make([]byte, hashChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			h.Write(chunk[:n])
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
	}

	return &SourceDocument{
		ID:          id,
		Filename:    filename,
		fingerprint: hex.EncodeToString(h.Sum(nil)),
		content:     buf.Bytes(),
	}, nil
}

// Fingerprint 返回内容指纹,构造后不再变化
func (d *SourceDocument) Fingerprint() string {
	return d.fingerprint
}

// Size 文档字节数
func (d *SourceDocument) Size() int64 {
	return int64(len(d.content))
}

// Reader 返回内容的新 reader,支持 io.ReaderAt
func (d *SourceDocument) Reader() *bytes.Reader {
	return bytes.NewReader(d.content)
}

// ValidationReport 验证结果,每个文档只生成一次
type ValidationReport struct {
	IsValid   bool     `json:"isValid"`
	PageCount int      `json:"pageCount"`
	SizeBytes int64    `json:"sizeBytes"`
	Warnings  []string `json:"warnings,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// PageImage 单页渲染结果
type PageImage struct {
	Page int
	JPEG []byte
}

// RenderedPageSet 渲染后的页面序列,存入缓存后归缓存所有
type RenderedPageSet []PageImage

// View 返回只读视图,调用方不得修改页面内容
func (s RenderedPageSet) View() RenderedPageSet {
	view := make(RenderedPageSet, len(s))
	copy(view, s)
	return view
}

// CacheEntry 缓存条目,创建后不可变
type CacheEntry struct {
	Fingerprint string
	Pages       RenderedPageSet
	CreatedAt   time.Time
	RenderCost  time.Duration
}
