package api

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

const csrfFieldName = "csrf_token"

// findCSRFToken returns the value of the first hidden csrf_token input, or of
// a csrf-token meta tag.
func findCSRFToken(r io.Reader) (string, bool) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "input":
				if attr(tok, "name") == csrfFieldName {
					if v := attr(tok, "value"); v != "" {
						return v, true
					}
				}
			case "meta":
				if strings.EqualFold(attr(tok, "name"), "csrf-token") {
					if v := attr(tok, "content"); v != "" {
						return v, true
					}
				}
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
