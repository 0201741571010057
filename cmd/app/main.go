package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/pdfstudio/internal/config"
    "github.com/local/pdfstudio/internal/imagerender"
    logpkg "github.com/local/pdfstudio/internal/logger"
    "github.com/local/pdfstudio/internal/metrics"
    "github.com/local/pdfstudio/internal/pdfdoc"
    "github.com/local/pdfstudio/internal/prefs"
    "github.com/local/pdfstudio/internal/preview"
    "github.com/local/pdfstudio/internal/session"
    "github.com/local/pdfstudio/internal/transform"
    web "github.com/local/pdfstudio/internal/web"
)

func main() {
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    // Theme preference
    var store prefs.Store
    defTheme, err := prefs.ParseTheme(cfg.Prefs.Default)
    if err != nil { defTheme = prefs.Dark }
    if cfg.Prefs.RedisURL != "" {
        rs, err := prefs.NewRedisStore(cfg.Prefs.RedisURL, cfg.Prefs.Key, defTheme)
        if err != nil {
            log.Warn().Err(err).Msg("redis unavailable, keeping theme in memory")
            store = prefs.NewMemoryStore(cfg.Prefs.Key, defTheme)
        } else {
            defer rs.Close()
            store = rs
        }
    } else {
        store = prefs.NewMemoryStore(cfg.Prefs.Key, defTheme)
    }

    // Previews share one cache and one scratch surface for the process.
    gen := preview.NewGenerator(
        imagerender.NewFitzRenderer(),
        preview.NewCache(),
        imagerender.NewSurface(),
        preview.Options{Scale: cfg.Preview.Scale, Quality: cfg.Preview.Quality, MaxWidth: cfg.Preview.MaxWidth()},
    )
    eng := transform.NewEngine(pdfdoc.NewPDFCPUDecoder(), transform.Options{CompressDelay: cfg.Compress.ProgressDelay})
    ctrl := session.NewController(eng, gen, session.Options{
        SelectPages: cfg.Preview.MaxPages,
        ViewerPages: cfg.Preview.ViewerMaxPages,
    })

    mux := http.NewServeMux()
    mux.Handle("/metrics", metrics.Handler())
    web.New(ctrl, store, web.Options{MaxUploadMB: cfg.HTTP.MaxUploadMB}).RegisterRoutes(mux)

    srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}

    go func(){
        log.Info().Str("session_id", ctrl.ID()).Msgf("HTTP server listening on %s", cfg.HTTP.Addr)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
    defer cancel()
    _ = srv.Shutdown(ctx)
    fmt.Println("shutdown complete")
}
