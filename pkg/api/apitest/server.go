// Package apitest runs an in-process stand-in for the translation web
// application so clients can be tested end to end.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/models"
)

const (
	sessionCookie = "session"
	sessionValue  = "authenticated"

	DefaultUsername  = "admin"
	DefaultPassword  = "secret"
	DefaultCSRFToken = "csrf-test-token"
)

// Upload is what the server received on /upload.
type Upload struct {
	Fields map[string][]string
	Files  map[string]string
}

type Server struct {
	*httptest.Server
	Echo *echo.Echo

	mu sync.Mutex

	Username  string
	Password  string
	CSRFToken string

	// Languages is answered by /upload_examples.
	Languages []string
	// UploadError, when set, is answered by /upload instead of a redirect.
	UploadError string
	// Frames are written to every stream connection after StreamFailures
	// connections have been refused with 503.
	Frames         []string
	StreamFailures int
	Files          map[string][]byte

	Uploads         []Upload
	ExampleUploads  []string
	StreamRequests  []http.Header
	Downloads       []string
	LanguageConfigs []models.LanguageConfig
}

func NewServer() *Server {
	s := &Server{
		Echo:      echo.New(),
		Username:  DefaultUsername,
		Password:  DefaultPassword,
		CSRFToken: DefaultCSRFToken,
		Files:     map[string][]byte{},
	}
	s.Echo.HideBanner = true

	s.Echo.GET("/login", s.loginPage)
	s.Echo.POST("/login", s.login)

	authed := s.Echo.Group("", s.requireLogin)
	authed.GET("/", func(c echo.Context) error { return c.HTML(http.StatusOK, "<h1>dashboard</h1>") })
	authed.POST("/upload_examples", s.uploadExamples, s.requireCSRF)
	authed.POST("/upload", s.upload, s.requireCSRF)
	authed.GET("/translate_display_names", s.stream)
	authed.GET("/translate_descriptions", s.stream)
	authed.GET("/download/:file", s.download)
	authed.POST("/update_language_config", s.updateLanguageConfig, s.requireCSRF)

	s.Server = httptest.NewServer(s.Echo)
	return s
}

func (s *Server) Lock()   { s.mu.Lock() }
func (s *Server) Unlock() { s.mu.Unlock() }

func (s *Server) loginPage(c echo.Context) error {
	s.mu.Lock()
	token := s.CSRFToken
	s.mu.Unlock()
	return c.HTML(http.StatusOK, fmt.Sprintf(`<html><body><form method="post">
<input type="hidden" name="csrf_token" value="%s"/>
<input name="username"><input name="password" type="password">
</form></body></html>`, token))
}

func (s *Server) login(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.FormValue("csrf_token") != s.CSRFToken {
		return c.String(http.StatusBadRequest, "The CSRF token is missing.")
	}
	if c.FormValue("username") != s.Username || c.FormValue("password") != s.Password {
		return c.HTML(http.StatusOK, "<p>Ogiltiga inloggningsuppgifter</p>")
	}
	c.SetCookie(&http.Cookie{Name: sessionCookie, Value: sessionValue, Path: "/"})
	return c.Redirect(http.StatusFound, "/")
}

func (s *Server) requireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(sessionCookie)
		if err != nil || cookie.Value != sessionValue {
			return c.Redirect(http.StatusFound, "/login")
		}
		return next(c)
	}
}

func (s *Server) requireCSRF(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		token := s.CSRFToken
		s.mu.Unlock()
		if c.Request().Header.Get("X-CSRFToken") != token && c.FormValue("csrf_token") != token {
			return c.String(http.StatusBadRequest, "The CSRF token is missing.")
		}
		return next(c)
	}
}

func (s *Server) uploadExamples(c echo.Context) error {
	fh, err := c.FormFile("examples_file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Ingen fil vald"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExampleUploads = append(s.ExampleUploads, fh.Filename)
	langs := s.Languages
	if langs == nil {
		langs = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"available_languages": langs})
}

func (s *Server) upload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if len(form.File["input_file"]) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Input file must be uploaded"})
	}

	rec := Upload{Fields: map[string][]string{}, Files: map[string]string{}}
	for k, v := range form.Value {
		rec.Fields[k] = v
	}
	for k, fhs := range form.File {
		f, err := fhs[0].Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return err
		}
		rec.Files[k] = string(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Uploads = append(s.Uploads, rec)
	if s.UploadError != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": s.UploadError})
	}
	if form.Value["action"] == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid action"})
	}
	switch form.Value["action"][0] {
	case string(models.ActionTranslateTitles):
		return c.JSON(http.StatusOK, map[string]string{"redirect": "/translate_display_names"})
	case string(models.ActionTranslateDescriptions):
		return c.JSON(http.StatusOK, map[string]string{"redirect": "/translate_descriptions"})
	}
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid action"})
}

func (s *Server) stream(c echo.Context) error {
	s.mu.Lock()
	s.StreamRequests = append(s.StreamRequests, c.Request().Header.Clone())
	refuse := len(s.StreamRequests) <= s.StreamFailures
	frames := append([]string(nil), s.Frames...)
	s.mu.Unlock()

	if refuse {
		return c.NoContent(http.StatusServiceUnavailable)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	for _, f := range frames {
		if _, err := io.WriteString(w, f); err != nil {
			return nil
		}
		w.Flush()
	}
	return nil
}

func (s *Server) download(c echo.Context) error {
	name := path.Base(c.Param("file"))
	s.mu.Lock()
	data, ok := s.Files[name]
	if ok {
		s.Downloads = append(s.Downloads, name)
	}
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Fil hittades inte"})
	}
	return c.Blob(http.StatusOK, "text/csv", data)
}

func (s *Server) updateLanguageConfig(c echo.Context) error {
	cfg := models.LanguageConfig{}
	if err := json.NewDecoder(c.Request().Body).Decode(&cfg); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
	}
	s.mu.Lock()
	s.LanguageConfigs = append(s.LanguageConfigs, cfg)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// Data frames one JSON payload as an event stream message.
func Data(payload string) string {
	return "data: " + payload + "\n\n"
}
