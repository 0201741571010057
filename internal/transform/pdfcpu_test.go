package transform

import (
	"bytes"
	"context"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfstudio/internal/pdfdoc"
	"github.com/local/pdfstudio/internal/pdftest"
)

func pdfcpuEngine() *Engine { return NewEngine(pdfdoc.NewPDFCPUDecoder(), Options{}) }

func minimalSource(pages int) Source {
	return Source{Name: "scan.pdf", Data: pdftest.MinimalPDF(pages, 612, 792)}
}

func rotations(t *testing.T, data []byte) []int {
	t.Helper()
	doc, err := pdfdoc.NewPDFCPUDecoder().Decode(data)
	require.NoError(t, err)
	out := make([]int, doc.PageCount())
	for i := range out {
		out[i], err = doc.Rotation(i + 1)
		require.NoError(t, err)
	}
	return out
}

func TestPDFCPUExtract(t *testing.T) {
	res, err := pdfcpuEngine().Run(context.Background(), minimalSource(5), ExtractParams{Pages: []int{4, 2}})
	require.NoError(t, err)
	assert.Equal(t, "scan_extracted.pdf", res.FileName)

	doc, err := pdfdoc.NewPDFCPUDecoder().Decode(res.Data)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())
}

func TestPDFCPUCompressLevels(t *testing.T) {
	src := minimalSource(3)
	for _, level := range []Level{LevelOptimal, LevelSmall, LevelLossless} {
		t.Run(string(level), func(t *testing.T) {
			res, err := pdfcpuEngine().Run(context.Background(), src, CompressParams{Level: level})
			require.NoError(t, err)
			require.NotNil(t, res.Stats)
			assert.Equal(t, int64(len(src.Data)), res.Stats.OriginalSize)
			assert.Equal(t, int64(len(res.Data)), res.Stats.CompressedSize)
			assert.Equal(t, Reduction(res.Stats.OriginalSize, res.Stats.CompressedSize), res.Stats.Reduction)

			doc, err := pdfdoc.NewPDFCPUDecoder().Decode(res.Data)
			require.NoError(t, err)
			assert.Equal(t, 3, doc.PageCount())
		})
	}
}

func TestPDFCPUWatermark(t *testing.T) {
	res, err := pdfcpuEngine().Run(context.Background(), minimalSource(2), WatermarkParams{
		Text:     "CONFIDENTIAL",
		FontSize: 48,
		Opacity:  0.3,
		Rotation: -45,
	})
	require.NoError(t, err)
	assert.Equal(t, "scan_watermarked.pdf", res.FileName)

	has, err := api.HasWatermarks(bytes.NewReader(res.Data), nil)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPDFCPURotateWrapsAround(t *testing.T) {
	e := pdfcpuEngine()
	ctx := context.Background()
	src := minimalSource(3)

	for i := 0; i < 3; i++ {
		res, err := e.Run(ctx, src, RotateParams{Direction: Right, Scope: ScopeSelected, Pages: []int{1}})
		require.NoError(t, err)
		src = Source{Name: "scan.pdf", Data: res.Data}
	}
	assert.Equal(t, []int{270, 0, 0}, rotations(t, src.Data))

	res, err := e.Run(ctx, src, RotateParams{Direction: Right, Scope: ScopeAll})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 90, 90}, rotations(t, res.Data))

	res, err = e.Run(ctx, Source{Name: "scan.pdf", Data: res.Data}, RotateParams{Direction: Left, Scope: ScopeSelected, Pages: []int{3}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 90, 0}, rotations(t, res.Data))
}
