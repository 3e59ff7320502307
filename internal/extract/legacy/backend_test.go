package legacy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naphat-c/nacc-digitizer/internal/cache"
	"github.com/naphat-c/nacc-digitizer/internal/extract"
	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/internal/render"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

type fakeRenderer struct {
	calls atomic.Int64
	pages int
}

func (r *fakeRenderer) Render(ctx context.Context, doc *models.SourceDocument) (models.RenderedPageSet, error) {
	r.calls.Add(1)
	pages := make(models.RenderedPageSet, r.pages)
	for i := range pages {
		pages[i] = models.PageImage{Page: i + 1, JPEG: []byte{0xFF, 0xD8, byte(i + 1)}}
	}
	return pages, nil
}

// fakeOCR 按页号编造文本,emptyPages 里的页返回空串
type fakeOCR struct {
	mu         sync.Mutex
	calls      int
	emptyPages map[int]bool
	err        error
}

func (f *fakeOCR) ImageText(jpegData []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	page := int(jpegData[2])
	if f.emptyPages[page] {
		return "", nil
	}
	return fmt.Sprintf("ข้อความหน้า %d", page), nil
}

func (f *fakeOCR) Close() error { return nil }

// scriptedClient 按调用顺序回放响应,记录每批的提示词和文本
type scriptedClient struct {
	prompts   []string
	texts     []string
	responses []string
	err       error
}

func (c *scriptedClient) GenerateFromText(ctx context.Context, prompt, text string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	c.texts = append(c.texts, text)
	if c.err != nil {
		return "", c.err
	}
	return c.responses[len(c.prompts)-1], nil
}

func (c *scriptedClient) GenerateFromImages(ctx context.Context, prompt string, images [][]byte) (string, error) {
	return "", errors.New("legacy backend must not use image generation")
}

func legacyDoc(t *testing.T) *models.SourceDocument {
	t.Helper()
	doc, err := models.NewSourceDocument("doc-1", "doc.pdf", bytes.NewReader([]byte("pdf bytes")))
	require.NoError(t, err)
	return doc
}

func testBackend(t *testing.T, client extract.ServiceClient, pages int, ocr *fakeOCR) (*Backend, *fakeRenderer) {
	t.Helper()
	renderer := &fakeRenderer{pages: pages}
	cached := render.NewCachedRenderer(cache.New(logger.NewTestLogger()), renderer)
	b := New(client, cached, logger.NewTestLogger())
	b.ocr = ocr
	return b, renderer
}

func TestLegacyExtract_BatchesAndMerges(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"submitter":{"first_name":"สมชาย"},"assets":[{"asset_name":"บ้าน"}],"positions":[{"position_name":"นายก"}]}`,
		`{"assets":[{"asset_name":"รถ"}],"statements":[{"statement_name":"เงินฝาก"}]}`,
	}}
	ocr := &fakeOCR{}
	backend, renderer := testBackend(t, client, 5, ocr)

	rec, err := backend.Extract(context.Background(), legacyDoc(t), extract.Context{})
	require.NoError(t, err)

	// 5 页按每批 3 页分两批,每批一次服务调用
	require.Len(t, client.prompts, 2)
	assert.Contains(t, client.prompts[0], "batch 1 of 2")
	assert.Contains(t, client.prompts[1], "batch 2 of 2")
	assert.Contains(t, client.texts[0], "--- page 1 ---")
	assert.Contains(t, client.texts[0], "--- page 3 ---")
	assert.NotContains(t, client.texts[0], "--- page 4 ---")
	assert.Contains(t, client.texts[1], "--- page 4 ---")
	assert.Contains(t, client.texts[1], "--- page 5 ---")

	// 部分结果按子集合拼接合并
	assert.Len(t, rec.Assets, 2)
	assert.Len(t, rec.Positions, 1)
	assert.Len(t, rec.Statements, 1)
	assert.Equal(t, "สมชาย", rec.Submitter["first_name"])

	assert.Equal(t, 5, ocr.calls)
	assert.Equal(t, int64(1), renderer.calls.Load())
}

func TestLegacyExtract_EmptyBatchSkipped(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"assets":[{"asset_name":"รถ"}]}`,
	}}
	ocr := &fakeOCR{emptyPages: map[int]bool{1: true, 2: true, 3: true}}
	backend, _ := testBackend(t, client, 5, ocr)

	rec, err := backend.Extract(context.Background(), legacyDoc(t), extract.Context{})
	require.NoError(t, err)

	// 第一批全空页,不提交
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "batch 2 of 2")
	assert.Len(t, rec.Assets, 1)
}

func TestLegacyExtract_OCRErrorFails(t *testing.T) {
	client := &scriptedClient{}
	backend, _ := testBackend(t, client, 3, &fakeOCR{err: errors.New("engine choked")})

	rec, err := backend.Extract(context.Background(), legacyDoc(t), extract.Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OCR failed for batch 1")
	assert.True(t, rec.IsEmpty())
	assert.Empty(t, client.prompts)
}

func TestLegacyExtract_ServiceErrorPropagates(t *testing.T) {
	client := &scriptedClient{err: models.ErrTransientService}
	backend, _ := testBackend(t, client, 2, &fakeOCR{})

	_, err := backend.Extract(context.Background(), legacyDoc(t), extract.Context{})
	assert.True(t, errors.Is(err, models.ErrTransientService))
}

func TestLegacyExtract_MalformedBatchResponse(t *testing.T) {
	client := &scriptedClient{responses: []string{"not json"}}
	backend, _ := testBackend(t, client, 2, &fakeOCR{})

	rec, err := backend.Extract(context.Background(), legacyDoc(t), extract.Context{})
	assert.True(t, errors.Is(err, models.ErrMalformedOutput))
	assert.True(t, rec.IsEmpty())
}
