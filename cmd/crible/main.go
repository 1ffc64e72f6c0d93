// Command crible runs the resume preflight service: an HTTP API (and
// optional MCP stdio transport) that decides whether an uploaded document
// carries a usable machine-readable text layer before it enters the
// analysis pipeline.
package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/crible/dbopen"
	"github.com/hazyhaar/crible/decisionlog"
	"github.com/hazyhaar/crible/docgate"
	"github.com/hazyhaar/crible/extract"
	"github.com/hazyhaar/crible/keywords"
	"github.com/hazyhaar/crible/shield"
)

func main() {
	port := env("PORT", "8090")
	dbPath := env("CRIBLE_DB", "db/crible.db")
	mcpTransport := env("CRIBLE_MCP", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging. Stdio MCP owns stdout, so logs go to stderr in that mode.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logOut := io.Writer(os.Stdout)
	if mcpTransport == "stdio" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Preflight engine.
	cfg := docgate.Config{
		DenyList: os.Getenv("CRIBLE_DENYLIST"),
		Debug:    os.Getenv("CRIBLE_DEBUG") == "1",
		Logger:   logger,
	}
	if path := os.Getenv("CRIBLE_THRESHOLDS"); path != "" {
		if err := docgate.LoadThresholds(path, &cfg); err != nil {
			slog.Error("load thresholds", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("thresholds loaded", "path", path)
	}
	engine := docgate.New(cfg)

	// MCP stdio mode: no HTTP server, no decision DB.
	if mcpTransport == "stdio" {
		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "crible",
			Version: "1.0.0",
		}, nil)
		docgate.RegisterMCPTools(srv, engine)
		slog.Info("MCP stdio starting")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("MCP stdio", "error", err)
			os.Exit(1)
		}
		return
	}

	// Decision log + rate limit DB.
	db, err := dbopen.Open(dbPath,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(decisionlog.Schema),
		dbopen.WithSchema(shield.Schema))
	if err != nil {
		slog.Error("open db", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := decisionlog.NewStore(db)
	defer store.Close()

	maxUpload := envInt64("MAX_UPLOAD_BYTES", 16*1024*1024)

	// Router.
	r := chi.NewRouter()
	stack, rl := shield.DefaultStack(db, maxUpload)
	for _, mw := range stack {
		r.Use(mw)
	}
	rl.StartReloader(ctx.Done())

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/formats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{
			"formats": []string{
				string(extract.FormatPDF),
				string(extract.FormatDocx),
				string(extract.FormatDoc),
				string(extract.FormatTXT),
				string(extract.FormatHTML),
			},
			"max_upload_bytes": maxUpload,
		})
	})

	// Preflight: the verdict only. End users see ok plus the remediation
	// message, never which rule fired.
	r.Post("/api/preflight", func(w http.ResponseWriter, r *http.Request) {
		data, filename, ok := readUpload(w, r, maxUpload)
		if !ok {
			return
		}
		v := engine.Evaluate(r.Context(), data, filename)
		store.Record(&v)
		writeJSON(w, 200, v)
	})

	// Analyze: preflight gate, then keyword match against a job description.
	r.Post("/api/analyze", func(w http.ResponseWriter, r *http.Request) {
		data, filename, ok := readUpload(w, r, maxUpload)
		if !ok {
			return
		}
		job := r.FormValue("job")

		v := engine.Evaluate(r.Context(), data, filename)
		store.Record(&v)
		if !v.OK {
			writeJSON(w, 422, v)
			return
		}

		content, err := extract.Extract(data, filename)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		report := keywords.Analyze(content.FullText, job)
		writeJSON(w, 200, map[string]any{
			"ok":       true,
			"format":   content.Format,
			"pages":    content.PageCount,
			"keywords": report,
		})
	})

	// Operator endpoints. Enabled only when ADMIN_PASSWORD_HASH is set.
	adminUser := env("ADMIN_USER", "admin")
	adminHash := os.Getenv("ADMIN_PASSWORD_HASH")
	if adminHash == "" {
		slog.Warn("ADMIN_PASSWORD_HASH not set, admin endpoints disabled")
	} else {
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(requireBasicAuth(adminUser, adminHash))

			r.Get("/decisions", func(w http.ResponseWriter, r *http.Request) {
				limit := queryInt(r, "limit", 50)
				decisions, err := store.Recent(r.Context(), limit)
				if err != nil {
					writeError(w, 500, err)
					return
				}
				if decisions == nil {
					decisions = []decisionlog.Decision{}
				}
				writeJSON(w, 200, decisions)
			})

			r.Get("/reject-rate", func(w http.ResponseWriter, r *http.Request) {
				hours := queryInt(r, "hours", 24)
				rate, total, err := store.RejectRate(r.Context(), time.Duration(hours)*time.Hour)
				if err != nil {
					writeError(w, 500, err)
					return
				}
				writeJSON(w, 200, map[string]any{
					"reject_rate": rate,
					"total":       total,
					"hours":       hours,
				})
			})

			r.Get("/thresholds", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, engine.Thresholds())
			})
		})
	}

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// readUpload pulls the "file" part out of a multipart request. Writes the
// error response itself and returns ok=false on failure.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, string, bool) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeJSON(w, 413, map[string]string{"error": "upload too large or malformed"})
		return nil, "", false
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": "missing file field"})
		return nil, "", false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, 500, err)
		return nil, "", false
	}
	if len(data) == 0 {
		writeJSON(w, 400, map[string]string{"error": "empty file"})
		return nil, "", false
	}
	return data, hdr.Filename, true
}

// requireBasicAuth checks HTTP Basic credentials against a bcrypt hash.
func requireBasicAuth(user, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(p)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="crible admin"`)
				writeJSON(w, 401, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
