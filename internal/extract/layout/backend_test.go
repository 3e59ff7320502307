package layout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
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

// scannedPDF 每页只有一个不含文字指令的内容流,文本抽取得到空串,走 OCR 兜底
func scannedPDF(t *testing.T, pageCount int) []byte {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	obj := func(s string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(s)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, pageCount)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	obj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), pageCount))

	for i := 0; i < pageCount; i++ {
		obj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Contents %d 0 R >>\nendobj\n",
			3+2*i, 4+2*i))
		obj(fmt.Sprintf("%d 0 obj\n<< /Length 3 >>\nstream\nq Q\nendstream\nendobj\n", 4+2*i))
	}

	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefPos)

	return buf.Bytes()
}

func scannedDoc(t *testing.T, pages int) *models.SourceDocument {
	t.Helper()
	doc, err := models.NewSourceDocument("doc-1", "doc.pdf", bytes.NewReader(scannedPDF(t, pages)))
	require.NoError(t, err)
	return doc
}

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

// fakeOCR 按页号编造文本,failPages 里的页报错
type fakeOCR struct {
	mu        sync.Mutex
	calls     int
	failPages map[int]bool
	emptyAll  bool
}

func (f *fakeOCR) ImageText(jpegData []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	page := int(jpegData[2])
	if f.failPages[page] {
		return "", errors.New("engine choked")
	}
	if f.emptyAll {
		return "", nil
	}
	return fmt.Sprintf("ข้อความหน้า %d", page), nil
}

func (f *fakeOCR) Close() error { return nil }

type captureClient struct {
	prompt   string
	text     string
	response string
	err      error
}

func (c *captureClient) GenerateFromText(ctx context.Context, prompt, text string) (string, error) {
	c.prompt = prompt
	c.text = text
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

func (c *captureClient) GenerateFromImages(ctx context.Context, prompt string, images [][]byte) (string, error) {
	return "", errors.New("layout backend must not use image generation")
}

func testBackend(t *testing.T, client extract.ServiceClient, pages int, ocr *fakeOCR) (*Backend, *fakeRenderer) {
	t.Helper()
	renderer := &fakeRenderer{pages: pages}
	cached := render.NewCachedRenderer(cache.New(logger.NewTestLogger()), renderer)
	b := New(client, cached, logger.NewTestLogger())
	b.ocr = ocr
	return b, renderer
}

func TestLayoutExtract_ScannedPagesFallBackToOCR(t *testing.T) {
	client := &captureClient{
		response: `{"submitter":{"first_name":"สมชาย"},"assets":[{"asset_name":"บ้าน"}]}`,
	}
	ocr := &fakeOCR{}
	backend, renderer := testBackend(t, client, 2, ocr)

	rec, err := backend.Extract(context.Background(), scannedDoc(t, 2), extract.Context{SubmitterID: 9})
	require.NoError(t, err)

	assert.Equal(t, "สมชาย", rec.Submitter["first_name"])
	assert.Contains(t, client.prompt, "submitter_id=9")
	assert.Contains(t, client.text, "## Page 1")
	assert.Contains(t, client.text, "ข้อความหน้า 1")
	assert.Contains(t, client.text, "## Page 2")
	assert.Contains(t, client.text, "ข้อความหน้า 2")
	assert.Equal(t, 2, ocr.calls)
	assert.Equal(t, int64(1), renderer.calls.Load())
}

func TestLayoutExtract_PageOCRFailureDegrades(t *testing.T) {
	client := &captureClient{response: `{"assets":[]}`}
	ocr := &fakeOCR{failPages: map[int]bool{1: true}}
	backend, _ := testBackend(t, client, 2, ocr)

	_, err := backend.Extract(context.Background(), scannedDoc(t, 2), extract.Context{})
	require.NoError(t, err)

	// 失败的页被跳过,其余页照常提交
	assert.NotContains(t, client.text, "## Page 1")
	assert.Contains(t, client.text, "## Page 2")
}

func TestLayoutExtract_NoTextAnywhere(t *testing.T) {
	client := &captureClient{response: `{"assets":[]}`}
	backend, _ := testBackend(t, client, 2, &fakeOCR{emptyAll: true})

	_, err := backend.Extract(context.Background(), scannedDoc(t, 2), extract.Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text extracted")
}

func TestLayoutExtract_ServiceErrorPropagates(t *testing.T) {
	client := &captureClient{err: models.ErrTransientService}
	backend, _ := testBackend(t, client, 1, &fakeOCR{})

	_, err := backend.Extract(context.Background(), scannedDoc(t, 1), extract.Context{})
	assert.True(t, errors.Is(err, models.ErrTransientService))
}

func TestLayoutExtract_MalformedResponse(t *testing.T) {
	client := &captureClient{response: "not json"}
	backend, _ := testBackend(t, client, 1, &fakeOCR{})

	rec, err := backend.Extract(context.Background(), scannedDoc(t, 1), extract.Context{})
	assert.True(t, errors.Is(err, models.ErrMalformedOutput))
	assert.True(t, rec.IsEmpty())
}
