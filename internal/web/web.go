package web

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/pdfstudio/internal/filetype"
    "github.com/local/pdfstudio/internal/prefs"
    "github.com/local/pdfstudio/internal/preview"
    "github.com/local/pdfstudio/internal/session"
    "github.com/local/pdfstudio/internal/transform"
)

// Web serves the session over a local JSON API.
type Web struct {
    ctrl      *session.Controller
    prefs     prefs.Store
    detector  *filetype.Detector
    maxUpload int64
}

type Options struct {
    MaxUploadMB int
}

func New(ctrl *session.Controller, store prefs.Store, opts Options) *Web {
    if opts.MaxUploadMB <= 0 { opts.MaxUploadMB = 100 }
    return &Web{
        ctrl:      ctrl,
        prefs:     store,
        detector:  filetype.New(),
        maxUpload: int64(opts.MaxUploadMB) << 20,
    }
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(wr http.ResponseWriter, r *http.Request){ wr.WriteHeader(http.StatusOK); _,_ = wr.Write([]byte("ok")) })
    mux.HandleFunc("/api/session", only(http.MethodGet, w.handleSnapshot))
    mux.HandleFunc("/api/session/tool", only(http.MethodPost, w.handleTool))
    mux.HandleFunc("/api/session/file", only(http.MethodPost, w.handleFile))
    mux.HandleFunc("/api/session/viewer", only(http.MethodPost, w.handleViewer))
    mux.HandleFunc("/api/session/page", only(http.MethodGet, w.handlePage))
    mux.HandleFunc("/api/session/continue", only(http.MethodPost, w.handleContinue))
    mux.HandleFunc("/api/session/back", only(http.MethodPost, w.dispatch(session.Back{})))
    mux.HandleFunc("/api/session/selection", only(http.MethodPost, w.handleSelection))
    mux.HandleFunc("/api/session/params", only(http.MethodPost, w.handleParams))
    mux.HandleFunc("/api/session/run", only(http.MethodPost, w.handleRun))
    mux.HandleFunc("/api/session/download", only(http.MethodGet, w.handleDownload))
    mux.HandleFunc("/api/session/retry", only(http.MethodPost, w.dispatch(session.Retry{})))
    mux.HandleFunc("/api/session/another", only(http.MethodPost, w.dispatch(session.ProcessAnother{})))
    mux.HandleFunc("/api/session/close", only(http.MethodPost, w.dispatch(session.Close{})))
    mux.HandleFunc("/api/about", w.handleAbout)
    mux.HandleFunc("/api/theme", w.handleTheme)
}

func only(method string, h http.HandlerFunc) http.HandlerFunc {
    return func(wr http.ResponseWriter, r *http.Request) {
        if r.Method != method { wr.WriteHeader(http.StatusMethodNotAllowed); return }
        h(wr, r)
    }
}

type snapshot struct {
    SessionID string `json:"session_id"`
    Busy      bool   `json:"busy"`
    session.State
}

func (w *Web) writeState(wr http.ResponseWriter, s session.State) {
    writeJSON(wr, http.StatusOK, snapshot{SessionID: w.ctrl.ID(), Busy: w.ctrl.Busy(), State: s})
}

func writeJSON(wr http.ResponseWriter, code int, v any) {
    wr.Header().Set("Content-Type", "application/json")
    wr.WriteHeader(code)
    _ = json.NewEncoder(wr).Encode(v)
}

// writeError maps controller guard errors to status codes.
func writeError(wr http.ResponseWriter, err error) {
    code := http.StatusBadRequest
    switch {
    case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrStale):
        code = http.StatusConflict
    case errors.Is(err, session.ErrPageOutOfRange):
        code = http.StatusNotFound
    case errors.Is(err, session.ErrNotPDF):
        code = http.StatusUnsupportedMediaType
    }
    writeJSON(wr, code, map[string]string{"error": err.Error()})
}

func (w *Web) respond(wr http.ResponseWriter, s session.State, err error) {
    if err != nil { writeError(wr, err); return }
    w.writeState(wr, s)
}

func (w *Web) dispatch(a session.Action) http.HandlerFunc {
    return func(wr http.ResponseWriter, r *http.Request) {
        s, err := w.ctrl.Dispatch(a)
        w.respond(wr, s, err)
    }
}

func (w *Web) handleSnapshot(wr http.ResponseWriter, r *http.Request) {
    w.writeState(wr, w.ctrl.Snapshot())
}

func (w *Web) handleTool(wr http.ResponseWriter, r *http.Request) {
    var body struct{ Tool string `json:"tool"` }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil { http.Error(wr, "invalid json", http.StatusBadRequest); return }
    tool, err := transform.ParseTool(body.Tool)
    if err != nil { writeError(wr, err); return }
    s, err := w.ctrl.Dispatch(session.OpenTool{Tool: tool})
    w.respond(wr, s, err)
}

// handleFile accepts a multipart "file" part. Only the part's declared
// Content-Type is checked; an optional "last_modified" field (unix millis)
// sets the file's identity for the preview cache.
func (w *Web) handleFile(wr http.ResponseWriter, r *http.Request) {
    r.Body = http.MaxBytesReader(wr, r.Body, w.maxUpload)
    if err := r.ParseMultipartForm(32 << 20); err != nil { http.Error(wr, "invalid multipart form", http.StatusBadRequest); return }
    file, hdr, err := r.FormFile("file")
    if err != nil { http.Error(wr, "missing file", http.StatusBadRequest); return }
    defer file.Close()

    declared := hdr.Header.Get("Content-Type")
    if !filetype.IsPDF(declared) {
        log.Warn().Str("file", hdr.Filename).Str("declared", declared).Msg("rejected upload")
        writeError(wr, session.ErrNotPDF)
        return
    }
    data, err := io.ReadAll(file)
    if err != nil { http.Error(wr, "upload error", http.StatusBadRequest); return }
    w.detector.Detect(hdr.Filename, declared, data)

    modTime := time.Now()
    if v := r.FormValue("last_modified"); v != "" {
        if ms, err := strconv.ParseInt(v, 10, 64); err == nil { modTime = time.UnixMilli(ms) }
    }
    s, err := w.ctrl.AttachFile(session.File{
        Name:    hdr.Filename,
        Size:    int64(len(data)),
        ModTime: modTime,
        Data:    data,
    })
    w.respond(wr, s, err)
}

// Loads write their outcome into the session, so like runs they outlive
// the request that started them.
func (w *Web) handleViewer(wr http.ResponseWriter, r *http.Request) {
    s, err := w.ctrl.LoadViewer(context.WithoutCancel(r.Context()))
    w.respond(wr, s, err)
}

func (w *Web) handleContinue(wr http.ResponseWriter, r *http.Request) {
    s, err := w.ctrl.Continue(context.WithoutCancel(r.Context()))
    w.respond(wr, s, err)
}

// handlePage renders one page at full size: ?n=<page>&zoom=<factor>, or
// &fit=width|page&width=<container px> to size it to the viewer.
func (w *Web) handlePage(wr http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    n, err := strconv.Atoi(q.Get("n"))
    if err != nil { http.Error(wr, "invalid page number", http.StatusBadRequest); return }
    req := preview.PageRequest{Page: n}
    if v := q.Get("zoom"); v != "" {
        if req.Zoom, err = strconv.ParseFloat(v, 64); err != nil { http.Error(wr, "invalid zoom", http.StatusBadRequest); return }
    }
    if req.Fit, err = preview.ParseFit(q.Get("fit")); err != nil { writeError(wr, err); return }
    if v := q.Get("width"); v != "" {
        if req.ContainerWidth, err = strconv.Atoi(v); err != nil { http.Error(wr, "invalid width", http.StatusBadRequest); return }
    }

    view, err := w.ctrl.Page(r.Context(), req)
    switch {
    case err == nil:
        writeJSON(wr, http.StatusOK, view)
    case errors.Is(err, session.ErrNoFile), errors.Is(err, session.ErrPageOutOfRange):
        writeError(wr, err)
    default:
        http.Error(wr, "failed to render page", http.StatusInternalServerError)
    }
}

type selectionRequest struct {
    Range  *string `json:"range,omitempty"`
    Toggle *int    `json:"toggle,omitempty"`
    All    bool    `json:"all,omitempty"`
}

func (w *Web) handleSelection(wr http.ResponseWriter, r *http.Request) {
    var body selectionRequest
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil { http.Error(wr, "invalid json", http.StatusBadRequest); return }
    var a session.Action
    switch {
    case body.All:
        a = session.SelectAll{}
    case body.Toggle != nil:
        a = session.TogglePage{Page: *body.Toggle}
    case body.Range != nil:
        a = session.SetRange{Text: *body.Range}
    default:
        http.Error(wr, "one of range, toggle or all is required", http.StatusBadRequest)
        return
    }
    s, err := w.ctrl.Dispatch(a)
    w.respond(wr, s, err)
}

type paramsRequest struct {
    Compression string             `json:"compression,omitempty"`
    Watermark   *session.Watermark `json:"watermark,omitempty"`
    Rotate      *session.Rotate    `json:"rotate,omitempty"`
}

func (w *Web) handleParams(wr http.ResponseWriter, r *http.Request) {
    var body paramsRequest
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil { http.Error(wr, "invalid json", http.StatusBadRequest); return }
    var a session.Action
    switch {
    case body.Compression != "":
        lvl, err := transform.ParseLevel(body.Compression)
        if err != nil { writeError(wr, err); return }
        a = session.SetCompression{Level: lvl}
    case body.Watermark != nil:
        a = session.SetWatermark{Watermark: *body.Watermark}
    case body.Rotate != nil:
        a = session.SetRotate{Rotate: *body.Rotate}
    default:
        http.Error(wr, "one of compression, watermark or rotate is required", http.StatusBadRequest)
        return
    }
    s, err := w.ctrl.Dispatch(a)
    w.respond(wr, s, err)
}

func (w *Web) handleRun(wr http.ResponseWriter, r *http.Request) {
    // A run cannot be abandoned once started, so it is detached from the request.
    s, err := w.ctrl.Run(context.WithoutCancel(r.Context()))
    w.respond(wr, s, err)
}

func (w *Web) handleDownload(wr http.ResponseWriter, r *http.Request) {
    out, ok := w.ctrl.Output()
    if !ok { http.Error(wr, "no output", http.StatusNotFound); return }
    wr.Header().Set("Content-Type", out.MediaType)
    wr.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.FileName))
    wr.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
    wr.Header().Set("X-Output-Id", out.ID)
    _, _ = wr.Write(out.Data)
}

func (w *Web) handleAbout(wr http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        w.dispatch(session.OpenAbout{})(wr, r)
    case http.MethodDelete:
        w.dispatch(session.CloseAbout{})(wr, r)
    default:
        wr.WriteHeader(http.StatusMethodNotAllowed)
    }
}

func (w *Web) handleTheme(wr http.ResponseWriter, r *http.Request) {
    ctx := r.Context()
    switch r.Method {
    case http.MethodGet:
        t, err := w.prefs.Theme(ctx)
        if err != nil { http.Error(wr, "theme unavailable", http.StatusInternalServerError); return }
        writeJSON(wr, http.StatusOK, map[string]string{"theme": string(t)})
    case http.MethodPost:
        var body struct {
            Theme  string `json:"theme"`
            Toggle bool   `json:"toggle"`
        }
        if err := json.NewDecoder(r.Body).Decode(&body); err != nil { http.Error(wr, "invalid json", http.StatusBadRequest); return }
        var (
            t   prefs.Theme
            err error
        )
        if body.Toggle {
            t, err = prefs.Toggle(ctx, w.prefs)
        } else {
            t, err = prefs.ParseTheme(body.Theme)
            if err == nil { err = w.prefs.SetTheme(ctx, t) }
        }
        if err != nil { writeError(wr, err); return }
        writeJSON(wr, http.StatusOK, map[string]string{"theme": string(t)})
    default:
        wr.WriteHeader(http.StatusMethodNotAllowed)
    }
}
