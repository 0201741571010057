package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfstudio/internal/imagerender"
	"github.com/local/pdfstudio/internal/pdfdoc"
	"github.com/local/pdfstudio/internal/pdftest"
)

func identity(name string, size int64) FileIdentity {
	return FileIdentity{Name: name, Size: size, ModTime: time.UnixMilli(1700000000000)}
}

func strip(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("thumb-%d", i+1)
	}
	return out
}

func TestFileIdentityKey(t *testing.T) {
	id := identity("report.pdf", 2048)
	assert.Equal(t, "pdf-preview-report.pdf-2048-1700000000000", id.Key())
	assert.Equal(t, id.Key(), identity("report.pdf", 2048).Key())
	assert.NotEqual(t, id.Key(), identity("report.pdf", 2049).Key())
}

func TestCacheHitRequiresEnoughPages(t *testing.T) {
	c := NewCache()
	id := identity("a.pdf", 10)
	c.Put(id, strip(5), 200)

	got, ok := c.Get(id, 3)
	require.True(t, ok)
	assert.Equal(t, []string{"thumb-1", "thumb-2", "thumb-3"}, got)

	_, ok = c.Get(id, 10)
	assert.False(t, ok, "a 5-page strip cannot serve 10 pages")

	_, ok = c.Get(id, 0)
	assert.False(t, ok, "all pages of a 200-page document are not cached")
}

func TestCacheCompleteStripServesLargerCap(t *testing.T) {
	c := NewCache()
	id := identity("short.pdf", 10)
	c.Put(id, strip(3), 3)

	got, ok := c.Get(id, 50)
	require.True(t, ok)
	assert.Len(t, got, 3)

	got, ok = c.Get(id, 0)
	require.True(t, ok)
	assert.Len(t, got, 3)
}

func TestCacheInvalidateAndClear(t *testing.T) {
	c := NewCache()
	a, b := identity("a.pdf", 1), identity("b.pdf", 2)
	c.Put(a, strip(2), 2)
	c.Put(b, strip(2), 2)
	require.Equal(t, 2, c.Len())

	c.Invalidate(a)
	_, ok := c.Get(a, 1)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestCacheReturnsCopies(t *testing.T) {
	c := NewCache()
	id := identity("a.pdf", 1)
	c.Put(id, strip(2), 2)

	got, _ := c.Get(id, 2)
	got[0] = "mutated"

	again, _ := c.Get(id, 2)
	assert.Equal(t, "thumb-1", again[0])
}

func newGenerator(r *pdftest.Renderer, maxWidth int) (*Generator, *Cache) {
	cache := NewCache()
	g := NewGenerator(r, cache, imagerender.NewSurface(), Options{Scale: 0.3, Quality: 60, MaxWidth: maxWidth})
	return g, cache
}

func TestGenerateCapsPagesInOrder(t *testing.T) {
	r := &pdftest.Renderer{}
	g, cache := newGenerator(r, 1400)
	f := File{Identity: identity("big.pdf", 1), Data: pdftest.NewPDF(200)}

	pages, err := g.GenerateE(context.Background(), f, 50)
	require.NoError(t, err)
	require.Len(t, pages, 50)

	want := make([]int, 50)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, r.Rendered())
	assert.Equal(t, 1, cache.Len())

	for i, uri := range pages {
		img, err := pdftest.DecodeDataURI(uri)
		require.NoError(t, err)
		// red channel carries the page id; JPEG is lossy
		red, _, _, _ := img.At(1, 1).RGBA()
		assert.InDelta(t, float64(i+1), float64(red>>8), 6, "thumbnail %d", i)
	}
}

func TestGenerateUsesCache(t *testing.T) {
	r := &pdftest.Renderer{}
	g, _ := newGenerator(r, 0)
	f := File{Identity: identity("doc.pdf", 1), Data: pdftest.NewPDF(8)}

	first := g.Generate(context.Background(), f, 5)
	require.Len(t, first, 5)

	second := g.Generate(context.Background(), f, 3)
	assert.Equal(t, first[:3], second)
	assert.Equal(t, 1, r.Opens())

	all := g.Generate(context.Background(), f, 0)
	assert.Len(t, all, 8)
	assert.Equal(t, 2, r.Opens(), "a longer request regenerates")
}

func TestGenerateAbortsOnPageFailure(t *testing.T) {
	r := &pdftest.Renderer{FailPage: 3}
	g, cache := newGenerator(r, 0)
	f := File{Identity: identity("bad.pdf", 1), Data: pdftest.NewPDF(6)}

	pages, err := g.GenerateE(context.Background(), f, 0)
	assert.Empty(t, pages)
	assert.NotNil(t, pages)

	var pe *PageRenderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.Page)
	assert.Zero(t, cache.Len())

	assert.Equal(t, []string{}, g.Generate(context.Background(), f, 0))
}

func TestGenerateRejectsUndecodable(t *testing.T) {
	g, _ := newGenerator(&pdftest.Renderer{}, 0)
	pages, err := g.GenerateE(context.Background(), File{Identity: identity("x.pdf", 3), Data: []byte("junk")}, 10)
	assert.Empty(t, pages)
	var de *pdfdoc.DecodeError
	assert.True(t, errors.As(err, &de))
	var pe *PageRenderError
	assert.False(t, errors.As(err, &pe))

	_, err = g.PageCount([]byte("junk"))
	assert.True(t, errors.As(err, &de))
}

func TestGenerateStopsWhenCanceled(t *testing.T) {
	r := &pdftest.Renderer{}
	g, _ := newGenerator(r, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages, err := g.GenerateE(ctx, File{Identity: identity("c.pdf", 1), Data: pdftest.NewPDF(4)}, 0)
	assert.Empty(t, pages)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.Rendered())
}

func TestGenerateDownscalesToCeiling(t *testing.T) {
	g, _ := newGenerator(&pdftest.Renderer{}, 100)
	pages := g.Generate(context.Background(), File{Identity: identity("w.pdf", 1), Data: pdftest.NewPDF(1)}, 1)
	require.Len(t, pages, 1)

	img, err := pdftest.DecodeDataURI(pages[0])
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestGenerateSerializesRenders(t *testing.T) {
	r := &pdftest.Renderer{}
	g, _ := newGenerator(r, 0)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := File{Identity: identity(fmt.Sprintf("doc-%d.pdf", i), 1), Data: pdftest.NewPDF(5)}
			assert.Len(t, g.Generate(context.Background(), f, 0), 5)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, r.MaxConcurrent())
}

func TestPageCount(t *testing.T) {
	g, _ := newGenerator(&pdftest.Renderer{}, 0)
	n, err := g.PageCount(pdftest.NewPDF(7))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = g.PageCount([]byte("nope"))
	assert.Error(t, err)
}
