package impute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
)

func TestImputeMetadata_ForwardFill(t *testing.T) {
	im := New(StrategyForwardFill, logger.NewTestLogger())

	rows := []models.Row{
		{"registry_office": "Bangkok", "batch": float64(1)},
		{"registry_office": "", "batch": nil},
		{"registry_office": nil, "batch": float64(3)},
	}

	out := im.ImputeMetadata(rows)

	// previous non-missing value propagates down
	assert.Equal(t, "Bangkok", out[1]["registry_office"])
	assert.Equal(t, "Bangkok", out[2]["registry_office"])
	assert.Equal(t, float64(1), out[1]["batch"])

	// input rows stay untouched
	assert.Equal(t, "", rows[1]["registry_office"])
	assert.Nil(t, rows[2]["registry_office"])
}

func TestImputeMetadata_MeanStrategy(t *testing.T) {
	im := New(StrategyMean, logger.NewTestLogger())

	rows := []models.Row{
		{"score": float64(10)},
		{"score": nil},
		{"score": float64(30)},
	}

	out := im.ImputeMetadata(rows)
	assert.Equal(t, float64(20), out[1]["score"])
}

func TestImputeMetadata_NoneStrategyUsesDefaults(t *testing.T) {
	im := New(StrategyNone, logger.NewTestLogger())

	rows := []models.Row{
		{"note": "present", "count": float64(5)},
		{"note": nil, "count": nil},
	}

	out := im.ImputeMetadata(rows)

	// text defaults to empty string, numeric to zero
	assert.Equal(t, "", out[1]["note"])
	assert.Equal(t, float64(0), out[1]["count"])
}

func TestImputeMetadata_ColumnUnion(t *testing.T) {
	im := New(StrategyNone, logger.NewTestLogger())

	rows := []models.Row{
		{"a": "x"},
		{"b": "y"},
	}

	out := im.ImputeMetadata(rows)

	// every row carries the union of observed columns afterwards
	assert.Contains(t, out[0], "b")
	assert.Contains(t, out[1], "a")
}

func TestImputeMetadata_EmptyInput(t *testing.T) {
	im := New(StrategyForwardFill, logger.NewTestLogger())
	assert.Empty(t, im.ImputeMetadata(nil))
	assert.Zero(t, im.Stats().MetadataFilled)
}

func TestImputeMetadata_TracksStats(t *testing.T) {
	im := New(StrategyForwardFill, logger.NewTestLogger())

	im.ImputeMetadata([]models.Row{
		{"office": "Bangkok"},
		{"office": ""},
	})

	assert.Equal(t, 1, im.Stats().MetadataFilled)
}

func TestCleanText(t *testing.T) {
	im := New(StrategyNone, logger.NewTestLogger())

	got := im.CleanText("  นาย \tสมชาย\n\nใจดี \x00 ")
	assert.Equal(t, "นาย สมชาย ใจดี", got)
	assert.Equal(t, 1, im.Stats().TextsCleaned)
}

func TestNormalizeNumeric(t *testing.T) {
	im := New(StrategyNone, logger.NewTestLogger())

	v, ok := im.NormalizeNumeric("1,500,000 บาท")
	require.True(t, ok)
	assert.Equal(t, float64(1500000), v)

	_, ok = im.NormalizeNumeric("ไม่ระบุ")
	assert.False(t, ok)
}
