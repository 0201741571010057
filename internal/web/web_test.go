package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfstudio/internal/imagerender"
	"github.com/local/pdfstudio/internal/pdftest"
	"github.com/local/pdfstudio/internal/prefs"
	"github.com/local/pdfstudio/internal/preview"
	"github.com/local/pdfstudio/internal/session"
	"github.com/local/pdfstudio/internal/transform"
)

func newWeb() *Web {
	gen := preview.NewGenerator(&pdftest.Renderer{}, preview.NewCache(), imagerender.NewSurface(), preview.Options{})
	eng := transform.NewEngine(&pdftest.Decoder{}, transform.Options{})
	ctrl := session.NewController(eng, gen, session.Options{})
	return New(ctrl, prefs.NewMemoryStore("", ""), Options{})
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	newWeb().RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type stateResponse struct {
	SessionID string   `json:"session_id"`
	Busy      bool     `json:"busy"`
	Step      string   `json:"step"`
	Tool      string   `json:"tool"`
	Total     int      `json:"total_pages"`
	Selection []int    `json:"selection"`
	Viewer    []string `json:"viewer"`
	Error     string   `json:"error"`
	Output    *struct {
		FileName string `json:"file_name"`
	} `json:"output"`
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) (*http.Response, stateResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(srv.URL+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	var s stateResponse
	_ = json.NewDecoder(resp.Body).Decode(&s)
	return resp, s
}

func upload(t *testing.T, srv *httptest.Server, name, contentType string, data []byte) (*http.Response, stateResponse) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	pw, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = pw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("last_modified", "1700000000000"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/session/file", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	var s stateResponse
	_ = json.NewDecoder(resp.Body).Decode(&s)
	return resp, s
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRotateFlowAndDownload(t *testing.T) {
	srv := newServer(t)

	resp, s := postJSON(t, srv, "/api/session/tool", map[string]string{"tool": "rotate"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "upload", s.Step)
	assert.NotEmpty(t, s.SessionID)

	resp, s = upload(t, srv, "scan.pdf", "application/pdf", pdftest.NewPDF(10))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pdf-viewer", s.Step)

	_, s = postJSON(t, srv, "/api/session/viewer", nil)
	assert.Equal(t, 10, s.Total)
	assert.Len(t, s.Viewer, 10)

	_, s = postJSON(t, srv, "/api/session/continue", nil)
	assert.Equal(t, "rotate", s.Step)

	resp, _ = postJSON(t, srv, "/api/session/params", map[string]any{"rotate": map[string]string{"direction": "right", "scope": "selected"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, s = postJSON(t, srv, "/api/session/selection", map[string]string{"range": "2,4"})
	assert.Equal(t, []int{2, 4}, s.Selection)

	_, s = postJSON(t, srv, "/api/session/run", nil)
	require.Equal(t, "success", s.Step)
	require.NotNil(t, s.Output)
	assert.Equal(t, "scan_rotated.pdf", s.Output.FileName)

	dl, err := http.Get(srv.URL + "/api/session/download")
	require.NoError(t, err)
	defer dl.Body.Close()
	assert.Equal(t, http.StatusOK, dl.StatusCode)
	assert.Equal(t, "application/pdf", dl.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="scan_rotated.pdf"`, dl.Header.Get("Content-Disposition"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(dl.Body)
	require.NoError(t, err)
	doc := pdftest.MustParse(buf.Bytes())
	assert.Equal(t, 90, doc.Pages[1].Rotate)
	assert.Equal(t, 0, doc.Pages[2].Rotate)
	assert.Equal(t, 90, doc.Pages[3].Rotate)

	_, s = postJSON(t, srv, "/api/session/another", nil)
	assert.Equal(t, "upload", s.Step)
	assert.Equal(t, "rotate", s.Tool)
}

func TestUploadRejectsDeclaredNonPDF(t *testing.T) {
	srv := newServer(t)
	postJSON(t, srv, "/api/session/tool", map[string]string{"tool": "extract"})

	resp, _ := upload(t, srv, "photo.png", "image/png", []byte("\x89PNG"))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestMismatchedContentFailsAtRun(t *testing.T) {
	srv := newServer(t)
	postJSON(t, srv, "/api/session/tool", map[string]string{"tool": "compress"})

	resp, _ := upload(t, srv, "fake.pdf", "application/pdf", []byte("plain text"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	postJSON(t, srv, "/api/session/continue", nil)

	_, s := postJSON(t, srv, "/api/session/run", nil)
	assert.Equal(t, "error", s.Step)
	assert.Equal(t, session.MsgCompressFailed, s.Error)

	_, s = postJSON(t, srv, "/api/session/retry", nil)
	assert.Equal(t, "upload", s.Step)
}

func TestGuardErrorsMapToStatus(t *testing.T) {
	srv := newServer(t)

	resp, _ := postJSON(t, srv, "/api/session/continue", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = postJSON(t, srv, "/api/session/tool", map[string]string{"tool": "merge"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, srv, "/api/session/selection", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	dl, err := http.Get(srv.URL + "/api/session/download")
	require.NoError(t, err)
	dl.Body.Close()
	assert.Equal(t, http.StatusNotFound, dl.StatusCode)

	get, err := http.Get(srv.URL + "/api/session/run")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}

func TestAbout(t *testing.T) {
	srv := newServer(t)

	_, s := postJSON(t, srv, "/api/about", nil)
	assert.Equal(t, "about", s.Step)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/about", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, "idle", s.Step)
}

func TestTheme(t *testing.T) {
	srv := newServer(t)

	themeOf := func(resp *http.Response) string {
		defer resp.Body.Close()
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body["theme"]
	}

	resp, err := http.Get(srv.URL + "/api/theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", themeOf(resp))

	resp, err = http.Post(srv.URL+"/api/theme", "application/json", bytes.NewBufferString(`{"toggle":true}`))
	require.NoError(t, err)
	assert.Equal(t, "light", themeOf(resp))

	resp, err = http.Post(srv.URL+"/api/theme", "application/json", bytes.NewBufferString(`{"theme":"dark"}`))
	require.NoError(t, err)
	assert.Equal(t, "dark", themeOf(resp))

	resp, err = http.Post(srv.URL+"/api/theme", "application/json", bytes.NewBufferString(`{"theme":"neon"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type pageResponse struct {
	Page    int     `json:"page"`
	Total   int     `json:"total_pages"`
	Zoom    float64 `json:"zoom"`
	Width   int     `json:"width"`
	Image   string  `json:"image"`
	HasPrev bool    `json:"has_prev"`
	HasNext bool    `json:"has_next"`
	ZoomIn  float64 `json:"zoom_in"`
}

func getPage(t *testing.T, srv *httptest.Server, query string) (int, pageResponse) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/api/session/page?" + query)
	require.NoError(t, err)
	defer resp.Body.Close()
	var p pageResponse
	_ = json.NewDecoder(resp.Body).Decode(&p)
	return resp.StatusCode, p
}

func TestPageView(t *testing.T) {
	srv := newServer(t)

	code, _ := getPage(t, srv, "n=1")
	assert.Equal(t, http.StatusBadRequest, code, "no file attached")

	postJSON(t, srv, "/api/session/tool", map[string]string{"tool": "extract"})
	resp, _ := upload(t, srv, "book.pdf", "application/pdf", pdftest.NewPDF(3))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	code, p := getPage(t, srv, "n=2&zoom=1.3")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 1.25, p.Zoom)
	assert.Equal(t, 765, p.Width)
	assert.True(t, p.HasPrev)
	assert.True(t, p.HasNext)
	assert.Equal(t, 1.5, p.ZoomIn)
	assert.Contains(t, p.Image, "data:image/jpeg;base64,")

	code, p = getPage(t, srv, "n=1&fit=width&width=918")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 918, p.Width)

	code, _ = getPage(t, srv, "n=9")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = getPage(t, srv, "n=two")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = getPage(t, srv, "n=1&fit=stretch")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestViewerLoadOutlivesRequest(t *testing.T) {
	w := newWeb()
	_, err := w.ctrl.Dispatch(session.OpenTool{Tool: "rotate"})
	require.NoError(t, err)
	_, err = w.ctrl.AttachFile(session.File{Name: "a.pdf", Size: 1, Data: pdftest.NewPDF(4)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/session/viewer", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	w.handleViewer(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	s := w.ctrl.Snapshot()
	assert.Equal(t, session.StepViewer, s.Step)
	assert.Equal(t, 4, s.Total)
	assert.Empty(t, s.Error)
}
