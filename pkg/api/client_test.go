package api

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/api/apitest"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/models"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newLoggedInClient(t *testing.T, srv *apitest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, c.Login(context.Background(), apitest.DefaultUsername, apitest.DefaultPassword))
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url", time.Second)
	assert.Error(t, err)
	_, err = NewClient("localhost:8080", time.Second)
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	c := newLoggedInClient(t, srv)
	assert.Equal(t, apitest.DefaultCSRFToken, c.CSRFToken())

	bad, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)
	err = bad.Login(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRequestsWithoutLogin(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	c, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	_, err = c.UploadExamples(context.Background(), writeTemp(t, "examples.csv", "a,b\n"))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestUploadExamples(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.Languages = []string{"Swedish", "Pig Latin"}

	c := newLoggedInClient(t, srv)
	langs, err := c.UploadExamples(context.Background(), writeTemp(t, "examples.csv", "Display Name,Display Name - sv\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Swedish", "Pig Latin"}, langs)

	srv.Lock()
	assert.Equal(t, []string{"examples.csv"}, srv.ExampleUploads)
	srv.Unlock()
}

func TestUpload(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	c := newLoggedInClient(t, srv)
	redirect, err := c.Upload(context.Background(), models.UploadRequest{
		InputFile:    writeTemp(t, "input.csv", "SKU,Display Name\n1,Chair\n"),
		ExamplesFile: writeTemp(t, "examples.csv", "Display Name - sv\n"),
		Languages:    []string{"Swedish", "Pig Latin"},
		UserPrompt:   "keep brand names",
		Action:       models.ActionTranslateTitles,
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/translate_display_names", redirect)

	srv.Lock()
	defer srv.Unlock()
	require.Len(t, srv.Uploads, 1)
	up := srv.Uploads[0]
	assert.Equal(t, []string{"Swedish", "Pig Latin"}, up.Fields["languages"])
	assert.Equal(t, []string{"1"}, up.Fields["version"])
	assert.Equal(t, []string{"translate_titles"}, up.Fields["action"])
	assert.Equal(t, []string{"keep brand names"}, up.Fields["user_prompt"])
	assert.Equal(t, []string{apitest.DefaultCSRFToken}, up.Fields["csrf_token"])
	assert.True(t, strings.HasPrefix(up.Files["input_file"], "SKU,Display Name"))
	assert.Contains(t, up.Files, "examples_file")
}

func TestUploadServerError(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.UploadError = "Only CSV files are allowed"

	c := newLoggedInClient(t, srv)
	_, err := c.Upload(context.Background(), models.UploadRequest{
		InputFile: writeTemp(t, "input.txt", "x"),
		Languages: []string{"Swedish"},
		Action:    models.ActionTranslateDescriptions,
	})
	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, "Only CSV files are allowed", serverErr.Message)
	assert.Equal(t, 400, serverErr.StatusCode)
}

func TestDownload(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.Files["translated_sv.csv"] = []byte("SKU,Display Name\n1,Stol\n")

	c := newLoggedInClient(t, srv)
	dir := t.TempDir()

	p, err := c.Download(context.Background(), "translated_sv.csv", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "translated_sv.csv"), p)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "SKU,Display Name\n1,Stol\n", string(data))

	_, err = c.Download(context.Background(), "missing.csv", dir)
	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, 404, serverErr.StatusCode)
	assert.Equal(t, "Fil hittades inte", serverErr.Message)
}

func TestUpdateLanguageConfig(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	c := newLoggedInClient(t, srv)
	cfg := models.LanguageConfig{"sv": "Swedish", "fi": "Finnish"}
	require.NoError(t, c.UpdateLanguageConfig(context.Background(), cfg))

	srv.Lock()
	defer srv.Unlock()
	assert.Equal(t, []models.LanguageConfig{cfg}, srv.LanguageConfigs)
}

func TestURLs(t *testing.T) {
	c, err := NewClient("https://translate.example.com/app/", time.Second)
	require.NoError(t, err)

	assert.Equal(t, "https://translate.example.com/app/download/all%20languages.csv", c.DownloadURL("all languages.csv"))

	u, err := c.ResolveURL("/translate_display_names")
	require.NoError(t, err)
	assert.Equal(t, "https://translate.example.com/translate_display_names", u)

	u, err = c.ResolveURL("https://other.example.com/stream")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/stream", u)
}

func TestFindCSRFToken(t *testing.T) {
	token, ok := findCSRFToken(strings.NewReader(`<meta name="csrf-token" content="abc">`))
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = findCSRFToken(strings.NewReader(`<form><input name="username"></form>`))
	assert.False(t, ok)
}
