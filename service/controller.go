package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/apex/log"

	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/models"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/preview"
)

const (
	msgExamplesUploaded    = "Examples file uploaded successfully"
	msgNoLanguages         = "No languages with examples found in the uploaded file"
	msgAllComplete         = "All translations complete!"
	msgCombinedLink        = "Download combined translations"
	msgConnectionLost      = "Connection lost. Re-run the command to continue from where you left off."
	msgConnectionLostToast = "Connection lost. Your progress has been saved."
	msgConnectionFailed    = "Connection lost. Please try again."
)

var ErrSubmitDisabled = errors.New("translation cannot be submitted")

// Outcome is what dispatching one event did.
type Outcome struct {
	// Applied is false for no-ops, e.g. updates for a completed language.
	Applied bool
	// Navigate is the combined download URL; set at most once per session.
	Navigate string
	// Close asks the caller to stop reading the stream.
	Close bool
}

// Result pairs a decoded event with its outcome.
type Result struct {
	Event   models.Event
	Outcome Outcome
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Bars      []Bar           `json:"bars"`
	Completed []string        `json:"completed"`
	Downloads []DownloadEntry `json:"downloads"`
	Languages []string        `json:"languages"`
	Navigated string          `json:"navigated,omitempty"`
	Closed    bool            `json:"closed"`
}

// Controller maps server events onto progress bars, toasts and downloads.
// All state is per session and cleared by Reset.
type Controller struct {
	mu          sync.Mutex
	renderer    Renderer
	downloadURL func(file string) string

	languages []string
	bars      map[string]*Bar
	barOrder  []string
	completed map[string]bool
	downloads []DownloadEntry
	navigated string
	closed    bool
}

func NewController(renderer Renderer, downloadURL func(file string) string) *Controller {
	c := &Controller{renderer: renderer, downloadURL: downloadURL}
	c.Reset()
	return c
}

// Reset starts a new session.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.languages = nil
	c.bars = map[string]*Bar{}
	c.barOrder = nil
	c.completed = map[string]bool{}
	c.downloads = nil
	c.navigated = ""
	c.closed = false
}

// PreviewFile renders the first lines of a selected file.
func (c *Controller) PreviewFile(label, path string) error {
	lines, err := preview.File(path, preview.DefaultLines)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer.Preview(label, lines)
	return nil
}

// ExamplesUploaded renders the answer to an examples upload.
func (c *Controller) ExamplesUploaded(languages []string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.renderer.Toast(Toast{Message: "Error uploading examples file: " + err.Error()})
		return
	}
	c.languages = append([]string(nil), languages...)
	if len(languages) == 0 {
		c.renderer.HideLanguages()
		c.renderer.Toast(Toast{Message: msgNoLanguages})
		return
	}
	c.renderer.ShowLanguages(languages)
	c.renderer.Toast(Toast{Message: msgExamplesUploaded})
}

// CheckSubmit reports why req may not be submitted yet.
func (c *Controller) CheckSubmit(req models.UploadRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitDisabled, err)
	}
	ok, err := preview.Contains(req.InputFile, req.RequiredHeader())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitDisabled, err)
	}
	if !ok {
		return fmt.Errorf("%w: input file has no %q column", ErrSubmitDisabled, req.RequiredHeader())
	}
	return nil
}

// UploadFailed renders a failed form submission.
func (c *Controller) UploadFailed(err error, reportedByServer bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reportedByServer {
		c.renderer.Toast(Toast{Message: "Error: " + err.Error()})
		return
	}
	c.renderer.Toast(Toast{Message: "Error during processing: " + err.Error()})
}

// HandleMessage decodes one stream message and dispatches its events.
// Malformed messages are logged and ignored.
func (c *Controller) HandleMessage(data []byte) []Result {
	events, err := models.DecodeEvents(data)
	if err != nil {
		log.WithError(err).WithField("data", string(data)).Warn("ignoring stream message")
		return nil
	}
	results := make([]Result, 0, len(events))
	for _, ev := range events {
		results = append(results, Result{Event: ev, Outcome: c.Dispatch(ev)})
	}
	return results
}

// Dispatch applies one event.
func (c *Controller) Dispatch(ev models.Event) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Outcome{Close: true}
	}

	switch e := ev.(type) {
	case models.ErrorEvent:
		return c.onError(e)
	case models.ProgressEvent:
		return c.onLanguage(e, func(b *Bar) {
			b.Percent = e.Percent
			b.State = models.BarRunning
		})
	case models.SkippedEvent:
		return c.onLanguage(e, func(b *Bar) {
			c.finish(b, e.Language, models.BarSkipped)
		})
	case models.NoExamplesEvent:
		return c.onLanguage(e, func(b *Bar) {
			c.finish(b, e.Language, models.BarNoExamples)
		})
	case models.LanguageCompleteEvent:
		out := c.onLanguage(e, func(b *Bar) {
			c.finish(b, e.Language, models.BarComplete)
		})
		if out.Applied {
			d := DownloadEntry{Language: e.Language, File: e.File, URL: c.downloadURL(e.File)}
			c.downloads = append(c.downloads, d)
			c.renderer.Download(d)
		}
		return out
	case models.SessionCompleteEvent:
		return c.onSessionComplete(e)
	}
	log.Warnf("unhandled event kind %s", ev.Kind())
	return Outcome{}
}

func (c *Controller) onError(e models.ErrorEvent) Outcome {
	c.renderer.Toast(Toast{Message: "Error: " + e.Message})
	if e.Language != "" {
		if b, ok := c.bars[models.SanitizeLanguage(e.Language)]; ok {
			b.Percent = 100
			b.State = models.BarError
			c.renderer.Bar(*b)
		}
	}
	return Outcome{Applied: true}
}

func (c *Controller) onLanguage(e models.LanguageEvent, apply func(b *Bar)) Outcome {
	lang := e.LanguageName()
	if c.completed[lang] {
		return Outcome{}
	}
	b := c.bar(lang)
	apply(b)
	c.renderer.Bar(*b)
	return Outcome{Applied: true}
}

// bar returns the bar for lang, creating it on first sight.
func (c *Controller) bar(lang string) *Bar {
	key := models.SanitizeLanguage(lang)
	if b, ok := c.bars[key]; ok {
		return b
	}
	b := &Bar{Key: key, Language: lang, State: models.BarRunning}
	c.bars[key] = b
	c.barOrder = append(c.barOrder, key)
	return b
}

func (c *Controller) finish(b *Bar, lang string, state models.BarState) {
	b.Percent = 100
	b.State = state
	c.completed[lang] = true
}

func (c *Controller) onSessionComplete(e models.SessionCompleteEvent) Outcome {
	url := c.downloadURL(e.File)
	c.renderer.Toast(Toast{Message: msgAllComplete, Link: url, LinkText: msgCombinedLink})
	c.closed = true
	out := Outcome{Applied: true, Close: true}
	if c.navigated == "" {
		c.navigated = url
		out.Navigate = url
	}
	return out
}

// ConnectionLost renders the terminal state after the stream gave up.
func (c *Controller) ConnectionLost(capped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if capped {
		c.renderer.ConnectionLost(msgConnectionLost)
		c.renderer.Toast(Toast{Message: msgConnectionLostToast})
		return
	}
	c.renderer.Toast(Toast{Message: msgConnectionFailed})
}

// Completed reports whether lang has reached a terminal state this session.
func (c *Controller) Completed(lang string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed[lang]
}

func (c *Controller) Downloads() []DownloadEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DownloadEntry(nil), c.downloads...)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Bars:      make([]Bar, 0, len(c.barOrder)),
		Completed: make([]string, 0, len(c.completed)),
		Downloads: append([]DownloadEntry{}, c.downloads...),
		Languages: append([]string{}, c.languages...),
		Navigated: c.navigated,
		Closed:    c.closed,
	}
	for _, key := range c.barOrder {
		s.Bars = append(s.Bars, *c.bars[key])
	}
	for lang := range c.completed {
		s.Completed = append(s.Completed, lang)
	}
	sort.Strings(s.Completed)
	return s
}

// Bar returns the bar for a sanitized key.
func (c *Controller) Bar(key string) (Bar, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bars[key]
	if !ok {
		return Bar{}, false
	}
	return *b, true
}
