package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/config"
)

const senderName = "TranslationClient"

type Mailer interface {
	SendCompletion(ctx context.Context, c Completion) error
}

// Completion summarizes a finished session for the notice email.
type Completion struct {
	SessionID   string
	CombinedURL string
	Languages   []LanguageLink
}

type LanguageLink struct {
	Language string
	URL      string
}

type MailerSend struct {
	ms   *mailersend.Mailersend
	from string
	to   string
}

func NewMailerSend(cfg config.Email) *MailerSend {
	return &MailerSend{ms: mailersend.NewMailersend(cfg.APIKey), from: cfg.From, to: cfg.To}
}

func (m *MailerSend) SendCompletion(ctx context.Context, c Completion) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	message := m.ms.Email.NewMessage()
	message.SetFrom(mailersend.From{Name: senderName, Email: m.from})
	message.SetRecipients([]mailersend.Recipient{{Email: m.to}})
	message.SetSubject(completionSubject(c))
	message.SetText(completionText(c))
	message.SetHTML(completionHTML(c))

	if _, err := m.ms.Email.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send completion email: %w", err)
	}
	return nil
}

func completionSubject(c Completion) string {
	return fmt.Sprintf("translations complete (%d languages)", len(c.Languages))
}

func completionText(c Completion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "All translations complete! Download combined translations: %s\n", c.CombinedURL)
	for _, l := range c.Languages {
		fmt.Fprintf(&b, "%s: %s\n", l.Language, l.URL)
	}
	return b.String()
}

func completionHTML(c Completion) string {
	var b strings.Builder
	b.WriteString("<h1>All translations complete!</h1>")
	fmt.Fprintf(&b, `<p><a href="%s">Download combined translations</a></p>`, html.EscapeString(c.CombinedURL))
	if len(c.Languages) > 0 {
		b.WriteString("<ul>")
		for _, l := range c.Languages {
			fmt.Fprintf(&b, `<li>%s: <a href="%s">Download %s translations</a></li>`,
				html.EscapeString(l.Language), html.EscapeString(l.URL), html.EscapeString(l.Language))
		}
		b.WriteString("</ul>")
	}
	return b.String()
}
