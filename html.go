/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/gamenight/internal/signup"
	"github.com/julienschmidt/httprouter"
)

//go:embed assets/*
var assets embed.FS

// renderPage writes the sign-up page. It renders into a buffer first so a
// component failure never leaves a half-written page behind.
func renderPage(cfg *Config, w http.ResponseWriter, r *http.Request, status int, data pageData) (int, error) {
	var buf bytes.Buffer
	if err := signupPage(data).Render(r.Context(), &buf); err != nil {
		return 0, err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	return w.Write(buf.Bytes())
}

func serveUnavailable(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(http.StatusServiceUnavailable)

	_, _ = io.WriteString(w, newPage(cfg, "Try Again", signup.StorageUnavailable.Message()))
}

func serveHomePage(cfg *Config, e *signup.Engine, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		view, err := e.Snapshot(r.Context())
		if err != nil {
			errs <- err

			serveUnavailable(cfg, w)

			return
		}

		written, err := renderPage(cfg, w, r, http.StatusOK, newPageData(cfg, view))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Home page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveForm handles the plain HTML form, so the page works without scripts.
func serveForm(cfg *Config, e *signup.Engine, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

		var name, code, action string
		if err := r.ParseForm(); err == nil {
			name = r.PostForm.Get("name")
			code = r.PostForm.Get("code")
			action = r.PostForm.Get("action")
		}

		var outcome signup.Outcome
		var err error
		switch action {
		case "unregister":
			outcome, err = e.Unregister(r.Context(), name, code)
		case "register":
			outcome, err = e.Register(r.Context(), name, code)
		default:
			outcome = signup.InvalidInput
		}
		if err != nil {
			errs <- err

			serveUnavailable(cfg, w)

			return
		}

		view, err := e.Snapshot(r.Context())
		if err != nil {
			errs <- err

			serveUnavailable(cfg, w)

			return
		}

		data := newPageData(cfg, view)
		data.Flash = outcome.Message()
		data.FlashOK = outcome.OK()
		data.Name = strings.TrimSpace(name)

		written, err := renderPage(cfg, w, r, outcomeStatus(outcome), data)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "FORM: %s for %q from %s: %s (%s) in %s",
			action,
			data.Name,
			realIP(r),
			outcome,
			humanReadableSize(int64(written)),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(cfg *Config, e *signup.Engine, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		body := "Ok\n"
		if err := e.Ping(r.Context()); err != nil {
			logf(cfg, "HEALTH: %v", err)

			body = "Unavailable\n"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_, err := w.Write([]byte(body))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveAssets(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		fname := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, cfg.prefix), "/")

		ext := strings.ToLower(filepath.Ext(fname))
		if ext == ".html" {
			http.NotFound(w, r)

			return
		}

		data, err := assets.ReadFile(fname)
		if err != nil {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		switch ext {
		case ".css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case ".js":
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		}

		_, err = w.Write(data)
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}

func humanReadableSize(size int64) string {
	const unit int64 = 1000
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := unit, 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(size)/float64(div),
		"kMGTPE"[exp])
}
