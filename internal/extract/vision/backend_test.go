package vision

import (
	"bytes"
	"context"
	"errors"
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
		pages[i] = models.PageImage{Page: i + 1, JPEG: []byte{0xFF, 0xD8, byte(i)}}
	}
	return pages, nil
}

type captureClient struct {
	prompt   string
	images   [][]byte
	response string
	err      error
}

func (c *captureClient) GenerateFromImages(ctx context.Context, prompt string, images [][]byte) (string, error) {
	c.prompt = prompt
	c.images = images
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

func (c *captureClient) GenerateFromText(ctx context.Context, prompt, text string) (string, error) {
	return "", errors.New("vision backend must not use text generation")
}

func visionDoc(t *testing.T) *models.SourceDocument {
	t.Helper()
	doc, err := models.NewSourceDocument("doc-1", "doc.pdf", bytes.NewReader([]byte("pdf bytes")))
	require.NoError(t, err)
	return doc
}

func testBackend(t *testing.T, client extract.ServiceClient, pages int) (*Backend, *fakeRenderer) {
	t.Helper()
	renderer := &fakeRenderer{pages: pages}
	cached := render.NewCachedRenderer(cache.New(logger.NewTestLogger()), renderer)
	return New(client, cached, logger.NewTestLogger()), renderer
}

func TestVisionExtract(t *testing.T) {
	client := &captureClient{
		response: `{"submitter":{"first_name":"สมชาย"},"assets":[{"asset_name":"บ้าน"}]}`,
	}
	backend, renderer := testBackend(t, client, 3)

	rec, err := backend.Extract(context.Background(), visionDoc(t), extract.Context{SubmitterID: 9})
	require.NoError(t, err)

	assert.Equal(t, "สมชาย", rec.Submitter["first_name"])
	require.Len(t, rec.Assets, 1)
	// one image per rendered page, submitted in a single call
	assert.Len(t, client.images, 3)
	assert.Contains(t, client.prompt, "submitter_id=9")
	assert.Equal(t, int64(1), renderer.calls.Load())
}

func TestVisionExtract_RerunHitsCache(t *testing.T) {
	client := &captureClient{response: `{"assets":[]}`}
	backend, renderer := testBackend(t, client, 2)
	doc := visionDoc(t)

	_, err := backend.Extract(context.Background(), doc, extract.Context{})
	require.NoError(t, err)
	_, err = backend.Extract(context.Background(), doc, extract.Context{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), renderer.calls.Load())
}

func TestVisionExtract_FencedResponse(t *testing.T) {
	client := &captureClient{
		response: "```json\n{\"assets\":[{\"asset_name\":\"รถ\"}]}\n```",
	}
	backend, _ := testBackend(t, client, 1)

	rec, err := backend.Extract(context.Background(), visionDoc(t), extract.Context{})
	require.NoError(t, err)
	assert.Len(t, rec.Assets, 1)
}

func TestVisionExtract_ServiceErrorPropagates(t *testing.T) {
	client := &captureClient{err: models.ErrTransientService}
	backend, _ := testBackend(t, client, 1)

	_, err := backend.Extract(context.Background(), visionDoc(t), extract.Context{})
	assert.True(t, errors.Is(err, models.ErrTransientService))
}

func TestVisionExtract_MalformedResponse(t *testing.T) {
	client := &captureClient{response: "no json here"}
	backend, _ := testBackend(t, client, 1)

	rec, err := backend.Extract(context.Background(), visionDoc(t), extract.Context{})
	assert.True(t, errors.Is(err, models.ErrMalformedOutput))
	assert.True(t, rec.IsEmpty())
}
