package http

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"lyra-care/internal/logger"
	"lyra-care/internal/session"
	"lyra-care/pkg"
)

// SessionCookie carries the browser session ID.
const SessionCookie = "lyra_session"

// maxUploadBytes caps the in-memory part of a multipart upload; larger
// files spill to temporary files.
const maxUploadBytes = 32 << 20

//go:embed templates/*.html
var templateFS embed.FS

// markdown renders transcript text.  Raw HTML in messages is escaped before
// conversion, so only markdown produces markup.
var markdown = goldmark.New(goldmark.WithRendererOptions(gmhtml.WithHardWraps()))

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(html.EscapeString(text)), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.ListenAndServe.
type Server struct {
	Sessions   session.Store
	Controller *session.Controller
	Templates  *template.Template
	router     *mux.Router
	log        *logrus.Entry
}

// pageData feeds page.html.
type pageData struct {
	View   pkg.SessionView
	Accept string
	Error  string
}

// NewServer constructs a Server and its routes.  Templates are compiled
// from the embedded templates directory.
func NewServer(store session.Store, ctrl *session.Controller) (*Server, error) {
	tmpl, err := template.New("").
		Funcs(template.FuncMap{"markdown": renderMarkdown}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		Sessions:   store,
		Controller: ctrl,
		Templates:  tmpl,
		log:        logger.For("http"),
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/session", s.handleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/messages", s.handlePostMessage).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/api/session", s.handleSessionAPI).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.router = r
	return s, nil
}

// ServeHTTP dispatches to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// lookup returns the session named by the request cookie, if any.
func (s *Server) lookup(r *http.Request) (*session.State, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	return s.Sessions.Get(c.Value)
}

// current returns the caller's session, or an unsaved empty one.  Every stage
// after upload fails on an empty session, so only uploads create sessions.
func (s *Server) current(r *http.Request) *session.State {
	if st, ok := s.lookup(r); ok {
		return st
	}
	return session.NewState("")
}

// sessionFor returns the caller's session, creating one (and its cookie) when
// the cookie is missing or refers to an unknown session.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session.State {
	if st, ok := s.lookup(r); ok {
		return st
	}
	st := s.Sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    st.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return st
}

// handlePage renders the page for whichever stage the session is in.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	st := s.current(r)
	s.Controller.Open(st)
	s.renderPage(w, st, http.StatusOK, "")
}

// handleUpload ingests the multipart "file" field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	st := s.sessionFor(w, r)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.renderPage(w, st, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.renderPage(w, st, http.StatusBadRequest, "no file in upload")
		return
	}
	defer file.Close()

	if err := s.Controller.Upload(r.Context(), st, header.Filename, file); err != nil {
		s.fail(w, st, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleGenerate provisions the knowledge index and conversation.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	st := s.current(r)
	if err := s.Controller.GenerateSession(r.Context(), st); err != nil {
		s.fail(w, st, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handlePostMessage relays one chat turn.  HTMX requests get an HTML snippet
// with the two new messages to append to the transcript; plain form posts
// are redirected back to the page.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	st := s.current(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	resp, err := s.Controller.Send(r.Context(), st, r.FormValue("content"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if r.Header.Get("HX-Request") == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.Templates.ExecuteTemplate(w, "messages", []pkg.Message{resp.User, resp.Reply}); err != nil {
		s.log.WithError(err).Error("render messages")
	}
}

// handleReset drops the session; the next request starts a fresh one.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if st, ok := s.Sessions.Get(c.Value); ok {
			s.Controller.Reset(st)
		}
		s.Sessions.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSessionAPI returns the session state as JSON.
func (s *Server) handleSessionAPI(w http.ResponseWriter, r *http.Request) {
	st := s.current(r)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st.View())
}

func (s *Server) renderPage(w http.ResponseWriter, st *session.State, status int, msg string) {
	data := pageData{
		View:   st.View(),
		Accept: strings.Join(session.AcceptedExtensions, ","),
		Error:  msg,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.Templates.ExecuteTemplate(w, "page.html", data); err != nil {
		s.log.WithError(err).Error("render page")
	}
}

func (s *Server) fail(w http.ResponseWriter, st *session.State, err error) {
	status := statusFor(err)
	entry := s.log.WithError(err).WithField("session_id", st.ID)
	if status >= http.StatusInternalServerError {
		entry.Error("stage failed")
	} else {
		entry.Warn("stage rejected")
	}
	s.renderPage(w, st, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrUnsupportedUpload):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, session.ErrNoDocument), errors.Is(err, session.ErrNotProvisioned):
		return http.StatusConflict
	case errors.Is(err, session.ErrEmptyMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs one line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"latency_ms": time.Since(start).Milliseconds(),
		}).Info("request")
	})
}
