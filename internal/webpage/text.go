package webpage

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]*?>`)
	urlPattern     = regexp.MustCompile(`http[s]?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\\(),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	specialPattern = regexp.MustCompile(`[^a-zA-Z0-9 ]`)
)

// HTMLText returns the text nodes of an HTML document separated by single
// spaces. Content of script, style, noscript, template and head elements is
// skipped.
func HTMLText(document string) (string, error) {
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return "", err
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	return CollapseSpaces(strings.Join(parts, " ")), nil
}

// CleanText prepares scraped text for the model: it drops leftover tags and
// URLs, replaces everything but ASCII letters, digits and spaces with a space
// and collapses whitespace.
func CleanText(text string) string {
	text = tagPattern.ReplaceAllString(text, "")
	text = urlPattern.ReplaceAllString(text, "")
	text = specialPattern.ReplaceAllString(text, " ")
	return CollapseSpaces(text)
}

// CollapseSpaces trims s and replaces every whitespace run with one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
