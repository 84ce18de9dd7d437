package markdown

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Convert turns an HTML fragment into cleaned-up markdown. Script and
// style noise is stripped before conversion; failures collapse to "".
func Convert(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	sel.Find("script, style, noscript, iframe, svg").Each(func(_ int, s *goquery.Selection) { s.Remove() })

	body, err := sel.Html()
	if err != nil {
		return ""
	}

	conv := md.NewConverter("", true, nil)
	out, err := conv.ConvertString(body)
	if err != nil {
		return ""
	}

	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
