package render

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naphat-c/nacc-digitizer/internal/cache"
	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

// countingRenderer 记录渲染次数的假渲染器
type countingRenderer struct {
	calls atomic.Int64
	err   error
}

func (r *countingRenderer) Render(ctx context.Context, doc *models.SourceDocument) (models.RenderedPageSet, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return models.RenderedPageSet{{Page: 1, JPEG: []byte{0xFF, 0xD8}}}, nil
}

func testDoc(t *testing.T, content string) *models.SourceDocument {
	t.Helper()
	doc, err := models.NewSourceDocument("doc-1", "doc.pdf", bytes.NewReader([]byte(content)))
	require.NoError(t, err)
	return doc
}

func TestCachedRenderer_RendersOnce(t *testing.T) {
	c := cache.New(logger.NewTestLogger())
	renderer := &countingRenderer{}
	cached := NewCachedRenderer(c, renderer)
	doc := testDoc(t, "same bytes")

	first, err := cached.Pages(context.Background(), doc)
	require.NoError(t, err)
	second, err := cached.Pages(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, int64(1), renderer.calls.Load())
	assert.Equal(t, first[0].JPEG, second[0].JPEG)
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestCachedRenderer_SharedAcrossConsumers(t *testing.T) {
	// two consumers sharing one cache render identical bytes exactly once combined
	c := cache.New(logger.NewTestLogger())
	renderer := &countingRenderer{}
	first := NewCachedRenderer(c, renderer)
	second := NewCachedRenderer(c, renderer)
	doc := testDoc(t, "identical declaration bytes")

	invocations := 0
	for _, r := range []*CachedRenderer{first, second, first} {
		_, err := r.Pages(context.Background(), doc)
		require.NoError(t, err)
		invocations++
	}

	assert.Equal(t, int64(1), renderer.calls.Load())
	assert.Equal(t, uint64(invocations-1), c.Stats().Hits)
}

func TestCachedRenderer_DistinctContentRendersSeparately(t *testing.T) {
	c := cache.New(logger.NewTestLogger())
	renderer := &countingRenderer{}
	cached := NewCachedRenderer(c, renderer)

	_, err := cached.Pages(context.Background(), testDoc(t, "content a"))
	require.NoError(t, err)
	_, err = cached.Pages(context.Background(), testDoc(t, "content b"))
	require.NoError(t, err)

	assert.Equal(t, int64(2), renderer.calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestCachedRenderer_RenderErrorNotCached(t *testing.T) {
	c := cache.New(logger.NewTestLogger())
	renderer := &countingRenderer{err: errors.New("pdftoppm not found")}
	cached := NewCachedRenderer(c, renderer)
	doc := testDoc(t, "broken")

	_, err := cached.Pages(context.Background(), doc)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	// a later attempt renders again instead of serving a failed entry
	renderer.err = nil
	_, err = cached.Pages(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, int64(2), renderer.calls.Load())
}
