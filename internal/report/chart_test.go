package report

import (
	"testing"

	"caravan/internal/store/runs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun() runs.Run {
	return runs.Run{
		ID:        "run-1",
		RouteName: "silk-road",
		Source:    runs.SourceInline,
		Selected:  3,
		Stats:     runs.RunStats{Stops: 4, Selected: 3, FinalBalance: 5, PeakBalance: 9},
	}
}

func TestRenderHTML(t *testing.T) {
	snaps := []runs.Snapshot{
		{Step: 0, Balance: 4},
		{Step: 1, Balance: 9},
		{Step: 2, Balance: 5},
	}
	html, err := RenderHTML(sampleRun(), snaps)
	require.NoError(t, err)
	assert.Contains(t, string(html), "silk-road")
	assert.Contains(t, string(html), "echarts")
}

func TestRenderHTMLRequiresSnapshots(t *testing.T) {
	_, err := RenderHTML(sampleRun(), nil)
	assert.Error(t, err)
}

func TestImageResultDataURI(t *testing.T) {
	img := &ImageResult{Bytes: []byte{0x89, 0x50}}
	uri := img.DataURI()
	assert.Contains(t, uri, "data:image/png;base64,")

	var empty *ImageResult
	assert.Empty(t, empty.DataURI())
}

func TestToLineDataPadsLeadingNaN(t *testing.T) {
	data := toLineData([]float64{1, 2}, 4)
	require.Len(t, data, 4)
	assert.Nil(t, data[0].Value)
	assert.Nil(t, data[1].Value)
	assert.Equal(t, 1.0, data[2].Value)
	assert.Equal(t, 2.0, data[3].Value)
}
