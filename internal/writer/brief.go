package writer

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/research-digest/internal/digest"
)

const ellipsis = "..."

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	`<`, `\<`,
	`>`, `\>`,
	`#`, `\#`,
)

// RenderBrief lays the digest out as Markdown. Abstracts longer than abstractChars
// runes are cut and marked with an ellipsis; a non-positive bound disables truncation.
func RenderBrief(d digest.Digest, abstractChars int) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Research digest for %s\n\n", d.Date)
	switch len(d.Items) {
	case 0:
		b.WriteString("No items today.\n")
		return b.Bytes()
	case 1:
		b.WriteString("1 item.\n")
	default:
		fmt.Fprintf(&b, "%d items.\n", len(d.Items))
	}

	for i, e := range d.Items {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, markdownEscaper.Replace(e.Title))
		if e.Abstract != "" {
			b.WriteString(markdownEscaper.Replace(Truncate(e.Abstract, abstractChars)))
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "- Source: %s\n", e.Source)
		fmt.Fprintf(&b, "- Score: %d\n", e.Score)
		if e.Date != "" {
			fmt.Fprintf(&b, "- Date: %s\n", e.Date)
		}
		fmt.Fprintf(&b, "- Link: <%s>\n", e.URL)
	}
	return b.Bytes()
}

// Truncate cuts s to at most n runes, appending an ellipsis when anything was dropped.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), " ") + ellipsis
}
