// Package webui serves the analysis session to a browser.
package webui

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/04pril/minesight/internal/analysis"
	"github.com/04pril/minesight/internal/session"
)

//go:embed templates/*.html
var assets embed.FS

var pageTmpl = template.Must(template.ParseFS(assets, "templates/index.html"))

// formOverhead is allowed on top of the upload limit for multipart framing.
const formOverhead = 1 << 20

// Server exposes one controller over HTTP. Requests are serialized so the
// controller is only ever driven by one request at a time.
type Server struct {
	mu        sync.Mutex
	ctl       *session.Controller
	maxUpload int64
	logger    *slog.Logger
}

// New wraps ctl. maxUpload bounds request bodies; 0 means 32 MB.
func New(ctl *session.Controller, maxUpload int64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &Server{ctl: ctl, maxUpload: maxUpload, logger: logger}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleIndex)
	r.Post("/select", s.handleSelect)
	r.Post("/submit", s.handleSubmit)
	r.Get("/board.png", s.handleBoard)
	r.Get("/preview.png", s.handlePreview)
	return r
}

type pageData struct {
	session.Views
	Gallery template.HTML
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v := s.ctl.Views()
	var gallery bytes.Buffer
	if v.DebugVisible() {
		if err := v.Gallery.WriteHTML(&gallery); err != nil {
			s.mu.Unlock()
			s.logger.Error("gallery render failed", "err", err)
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// gallery HTML comes from html/template and is already escaped
	data := pageData{Views: v, Gallery: template.HTML(gallery.String())}
	if err := pageTmpl.Execute(w, data); err != nil {
		s.logger.Error("page render failed", "err", err)
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if s.rejectOversized(r, err) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.ctl.Select(up)
	s.mu.Unlock()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSubmit selects the posted file, if any, then runs the analysis.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if s.rejectOversized(r, err) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	if up != nil {
		s.ctl.Select(up)
	}
	outcome := s.ctl.Submit(r.Context())
	s.mu.Unlock()
	s.logger.Info("submit", "outcome", outcome)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v := s.ctl.Views()
	s.mu.Unlock()
	if !v.Results || v.Surface == nil {
		http.NotFound(w, r)
		return
	}
	writePNG(w, v.Surface, s.logger)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v := s.ctl.Views()
	s.mu.Unlock()
	if v.PreviewImage == nil {
		http.NotFound(w, r)
		return
	}
	writePNG(w, v.PreviewImage.Pixels, s.logger)
}

// rejectOversized reports whether err is a body over the upload limit. If so,
// the file is rejected through the session, so the page shows the same error
// as for any other oversized upload.
func (s *Server) rejectOversized(r *http.Request, err error) bool {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return false
	}
	s.mu.Lock()
	s.ctl.Reject(session.UploadLimitMessage(s.maxUpload))
	outcome := s.ctl.Submit(r.Context())
	s.mu.Unlock()
	s.logger.Info("upload rejected", "limit", tooLarge.Limit, "outcome", outcome)
	return true
}

// readUpload returns the "image" file of a multipart form, or nil when the
// form carries no file.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*analysis.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(s.maxUpload + formOverhead); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	f, hdr, err := r.FormFile(analysis.FieldName)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &analysis.Upload{Filename: hdr.Filename, Data: data}, nil
}

func writePNG(w http.ResponseWriter, img image.Image, logger *slog.Logger) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		logger.Error("png encode failed", "err", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// requestLogger logs method, path, status, bytes, and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"dur", time.Since(start).Round(time.Millisecond),
		)
	})
}
