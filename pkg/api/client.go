// Package api talks to the translation web application: login, uploads,
// downloads and the language configuration.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"golang.org/x/net/publicsuffix"

	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/models"
)

const (
	loginPath          = "/login"
	uploadExamplesPath = "/upload_examples"
	uploadPath         = "/upload"
	downloadPath       = "/download/"
	languageConfigPath = "/update_language_config"

	maxErrorBody = 4 << 10
)

type Client struct {
	baseURL   *url.URL
	http      *http.Client
	timeout   time.Duration
	csrfToken string
}

// NewClient returns a client with its own cookie jar. timeout bounds every
// request except event streams, which share HTTPClient but run until closed.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", baseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Jar: jar},
		timeout: timeout,
	}, nil
}

// HTTPClient shares the session cookies; use it for the event stream.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

func (c *Client) CSRFToken() string {
	return c.csrfToken
}

// ResolveURL resolves a server-relative reference such as an upload redirect.
func (c *Client) ResolveURL(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	return c.baseURL.ResolveReference(r).String(), nil
}

// DownloadURL is the address of a translated file.
func (c *Client) DownloadURL(file string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + downloadPath + file
	u.RawPath = strings.TrimRight(c.baseURL.EscapedPath(), "/") + downloadPath + url.PathEscape(file)
	return u.String()
}

func (c *Client) endpoint(p string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + p
	return u.String()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// FetchCSRFToken loads the page at p and keeps the form token it carries.
func (c *Client) FetchCSRFToken(ctx context.Context, p string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(p), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readServerError(resp)
	}
	token, ok := findCSRFToken(resp.Body)
	if !ok {
		return "", fmt.Errorf("%w on %s", ErrNoCSRFToken, p)
	}
	c.csrfToken = token
	return token, nil
}

// Login signs in with the form the web application renders at /login.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if _, err := c.FetchCSRFToken(ctx, loginPath); err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set(csrfFieldName, c.csrfToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(loginPath), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readServerError(resp)
	}
	// a failed login renders the form again instead of redirecting
	if onLoginPage(resp) {
		return ErrInvalidCredentials
	}
	log.WithField("user", username).Info("logged in")
	return nil
}

func onLoginPage(resp *http.Response) bool {
	return resp.Request != nil && strings.TrimRight(resp.Request.URL.Path, "/") == loginPath
}

// UploadExamples sends the examples file and returns the languages the
// server found in it.
func (c *Client) UploadExamples(ctx context.Context, examplesPath string) ([]string, error) {
	body, contentType, err := c.multipartBody(map[string]string{"examples_file": examplesPath}, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		AvailableLanguages []string `json:"available_languages"`
		Error              string   `json:"error"`
	}
	if err := c.postJSONResponse(ctx, uploadExamplesPath, body, contentType, &out); err != nil {
		return nil, fmt.Errorf("failed to upload examples file: %w", err)
	}
	return out.AvailableLanguages, nil
}

// Upload submits the translation form and returns the event stream URL the
// server redirects to.
func (c *Client) Upload(ctx context.Context, r models.UploadRequest) (string, error) {
	files := map[string]string{"input_file": r.InputFile}
	if r.ExamplesFile != "" {
		files["examples_file"] = r.ExamplesFile
	}
	fields := url.Values{}
	for _, lang := range r.Languages {
		fields.Add("languages", lang)
	}
	fields.Set("version", r.Version())
	fields.Set("action", string(r.Action))
	if r.UserPrompt != "" {
		fields.Set("user_prompt", r.UserPrompt)
	}

	body, contentType, err := c.multipartBody(files, fields)
	if err != nil {
		return "", err
	}

	var out struct {
		Redirect string `json:"redirect"`
		Error    string `json:"error"`
	}
	if err := c.postJSONResponse(ctx, uploadPath, body, contentType, &out); err != nil {
		return "", err
	}
	if out.Redirect == "" {
		return "", ErrEmptyRedirect
	}
	return c.ResolveURL(out.Redirect)
}

// Download saves a translated file into dir and returns its path.
func (c *Client) Download(ctx context.Context, file, dir string) (string, error) {
	name := filepath.Base(path.Clean("/" + file))
	if name == "/" || name == "." {
		return "", fmt.Errorf("invalid download file name %q", file)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(file), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", file, err)
	}
	defer resp.Body.Close()

	if onLoginPage(resp) {
		return "", ErrNotAuthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return "", readServerError(resp)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}
	dst := filepath.Join(dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return dst, nil
}

// UpdateLanguageConfig replaces the server's language code mapping.
func (c *Client) UpdateLanguageConfig(ctx context.Context, cfg models.LanguageConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal language config: %w", err)
	}

	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.postJSONResponse(ctx, languageConfigPath, bytes.NewReader(payload), "application/json", &out); err != nil {
		return fmt.Errorf("failed to update language config: %w", err)
	}
	if !out.Success {
		return &ServerError{StatusCode: http.StatusOK, Message: out.Error}
	}
	return nil
}

func (c *Client) multipartBody(files map[string]string, fields url.Values) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if c.csrfToken != "" {
		if err := w.WriteField(csrfFieldName, c.csrfToken); err != nil {
			return nil, "", err
		}
	}
	for key, values := range fields {
		for _, v := range values {
			if err := w.WriteField(key, v); err != nil {
				return nil, "", err
			}
		}
	}
	for field, p := range files {
		if err := writeFile(w, field, p); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(p))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", p, err)
	}
	return nil
}

// postJSONResponse posts body and decodes a JSON answer into out. An "error"
// member in the answer becomes a *ServerError.
func (c *Client) postJSONResponse(ctx context.Context, p string, body io.Reader, contentType string, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(p), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.csrfToken != "" {
		req.Header.Set("X-CSRFToken", c.csrfToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", p, err)
	}
	defer resp.Body.Close()

	if onLoginPage(resp) {
		return ErrNotAuthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readServerError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", p, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", p, err)
	}
	var probe struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &probe) == nil && probe.Error != "" {
		return &ServerError{StatusCode: resp.StatusCode, Message: probe.Error}
	}
	return nil
}

func readServerError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return &ServerError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	log.WithField("status", resp.StatusCode).Debugf("server response: %s", strings.TrimSpace(string(data)))
	return &ServerError{StatusCode: resp.StatusCode}
}
