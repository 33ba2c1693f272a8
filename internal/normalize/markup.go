package normalize

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// StripMarkup removes HTML and JATS tags, keeping text content with entities decoded.
// Adapters call it on abstracts and feed descriptions before normalization.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return Text(b.String())
			}
			return Text(s)
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}
