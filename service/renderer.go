package service

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/models"
)

const barWidth = 20

// Toast is a dismissible notice. Link is set for download notices.
type Toast struct {
	Message  string `json:"message"`
	Link     string `json:"link,omitempty"`
	LinkText string `json:"link_text,omitempty"`
}

// Bar is the progress of one language.
type Bar struct {
	Key      string          `json:"key"`
	Language string          `json:"language"`
	Percent  float64         `json:"percent"`
	State    models.BarState `json:"state"`
}

// Label is the text shown inside the bar.
func (b Bar) Label() string {
	if l := b.State.Label(); l != "" {
		return l
	}
	return fmt.Sprintf("%g%%", b.Percent)
}

// DownloadEntry is one row of the completed translations list.
type DownloadEntry struct {
	Language string `json:"language"`
	File     string `json:"file"`
	URL      string `json:"url"`
}

// Renderer draws controller state. Implementations must be safe for use by
// one goroutine at a time; the controller serializes its calls.
type Renderer interface {
	Toast(t Toast)
	Preview(label string, lines []string)
	ShowLanguages(languages []string)
	HideLanguages()
	Bar(b Bar)
	Download(d DownloadEntry)
	ConnectionLost(message string)
}

// TerminalRenderer prints every change as a line of text.
type TerminalRenderer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTerminalRenderer(w io.Writer) *TerminalRenderer {
	return &TerminalRenderer{w: w}
}

func (r *TerminalRenderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format, args...)
}

func (r *TerminalRenderer) Toast(t Toast) {
	if t.Link != "" {
		r.printf("» %s\n  %s: %s\n", t.Message, t.LinkText, t.Link)
		return
	}
	r.printf("» %s\n", t.Message)
}

func (r *TerminalRenderer) Preview(label string, lines []string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Preview of %s:\n", label)
	for _, l := range lines {
		fmt.Fprintf(&b, "  %s\n", l)
	}
	r.printf("%s", b.String())
}

func (r *TerminalRenderer) ShowLanguages(languages []string) {
	r.printf("Available languages: %s\n", strings.Join(languages, ", "))
}

func (r *TerminalRenderer) HideLanguages() {}

func (r *TerminalRenderer) Bar(b Bar) {
	r.printf("%s %-11s %s\n", drawBar(b.Percent), b.Label(), b.Language)
}

func (r *TerminalRenderer) Download(d DownloadEntry) {
	r.printf("✓ %s: Download %s translations %s\n", d.Language, d.Language, d.URL)
}

func (r *TerminalRenderer) ConnectionLost(message string) {
	r.printf("! %s\n", message)
}

func drawBar(percent float64) string {
	filled := int(percent / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}
