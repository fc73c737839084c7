package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLanguage(t *testing.T) {
	testCases := map[string]string{
		"Pig Latin":               "pig_latin",
		"Swedish":                 "swedish",
		"Chinese  (Traditional)":  "chinese_(traditional)",
		"Norwegian\tBokmål":       "norwegian_bokmål",
		" Greek":                  "_greek",
		"ÖSTERREICHISCH DEUTSCH":  "österreichisch_deutsch",
		"":                        "",
	}
	for in, expected := range testCases {
		assert.Equal(t, expected, SanitizeLanguage(in), in)
	}
	assert.Equal(t, SanitizeLanguage("Pig Latin"), SanitizeLanguage("Pig Latin"))
}

func TestAvailableLanguages(t *testing.T) {
	cfg := LanguageConfig{"sv": "Swedish", "da": "Danish", "fi": "Finnish"}
	header := []string{"SKU", "Display Name", "Display Name - sv", "Display Name - xx", "Description - sv", "Display Name - da"}
	assert.Equal(t, []string{"Swedish", "Danish"}, cfg.AvailableLanguages(header))
	assert.Empty(t, cfg.AvailableLanguages([]string{"SKU", "Display Name"}))
}

func TestLoadLanguageConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "language_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sv": "Swedish", "de": "German"}`), 0o644))

	cfg, err := LoadLanguageConfig(path)
	require.NoError(t, err)
	assert.Equal(t, LanguageConfig{"sv": "Swedish", "de": "German"}, cfg)

	_, err = LoadLanguageConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestUploadRequestValidate(t *testing.T) {
	titles := UploadRequest{InputFile: "in.csv", ExamplesFile: "ex.csv", Languages: []string{"Swedish"}, Action: ActionTranslateTitles}
	assert.NoError(t, titles.Validate())
	assert.Equal(t, "1", titles.Version())
	assert.Equal(t, "Display Name", titles.RequiredHeader())

	noExamples := titles
	noExamples.ExamplesFile = ""
	assert.ErrorIs(t, noExamples.Validate(), ErrMissingExamplesFile)

	descriptions := noExamples
	descriptions.Action = ActionTranslateDescriptions
	assert.NoError(t, descriptions.Validate())
	assert.Equal(t, "2", descriptions.Version())
	assert.Equal(t, "Description", descriptions.RequiredHeader())

	noLangs := descriptions
	noLangs.Languages = nil
	assert.ErrorIs(t, noLangs.Validate(), ErrNoLanguages)

	noInput := titles
	noInput.InputFile = ""
	assert.ErrorIs(t, noInput.Validate(), ErrMissingInputFile)

	bad := titles
	bad.Action = "translate_everything"
	assert.ErrorIs(t, bad.Validate(), ErrUnknownAction)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("titles")
	require.NoError(t, err)
	assert.Equal(t, ActionTranslateTitles, a)

	a, err = ParseAction("translate_descriptions")
	require.NoError(t, err)
	assert.Equal(t, ActionTranslateDescriptions, a)

	_, err = ParseAction("nope")
	assert.ErrorIs(t, err, ErrUnknownAction)
}
