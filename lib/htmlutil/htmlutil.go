package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// GetText concatenates every text node under node without any separators.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Blockquote: true, atom.Dd: true,
	atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true,
	atom.P: true, atom.Section: true, atom.Table: true, atom.Tr: true, atom.Ul: true,
}

var innerWhitespace = regexp.MustCompile(`[ \t\r\f\v]+`)
var manyNewlines = regexp.MustCompile(`\n\s*\n+`)

// RenderText approximates the text a browser would render for node: <br> and block level
// elements become line breaks, runs of inline whitespace collapse into a single space and every
// line is trimmed.
func RenderText(node *html.Node) string {
	var buffer bytes.Buffer
	renderRecursive(node, &buffer, true)

	text := innerWhitespace.ReplaceAllString(buffer.String(), " ")
	text = manyNewlines.ReplaceAllString(text, "\n")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func renderRecursive(node *html.Node, buffer *bytes.Buffer, root bool) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(strings.ReplaceAll(node.Data, "\n", " "))
		return
	case html.ElementNode:
		if node.DataAtom == atom.Script || node.DataAtom == atom.Style {
			return
		}
		if node.DataAtom == atom.Br {
			buffer.WriteByte('\n')
			return
		}
	}

	block := !root && node.Type == html.ElementNode && blockElements[node.DataAtom]
	if block {
		buffer.WriteByte('\n')
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		renderRecursive(child, buffer, false)
	}
	if block {
		buffer.WriteByte('\n')
	}
}

type Anchor struct {
	Name string
	Url  *url.URL
}

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// GetAnchors resolves the href of every anchor in sel against base, anchors with
// unparsable or missing hrefs are skipped.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	var anchors []Anchor
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}
		if href == "" {
			continue
		}

		link, err := url.Parse(href)
		if err != nil {
			continue
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		name := removeNonPrintable(GetText(n))
		name = strings.TrimSpace(name)
		name = innerWhitespace.ReplaceAllString(name, " ")

		anchors = append(anchors, Anchor{
			Name: name,
			Url:  link,
		})
	}
	return anchors
}

// Locate returns one single node selection per element under root matching css whose rendered
// text contains contains (when set). If child is set, the elements matching it under the first
// such element are returned instead.
func Locate(root *goquery.Selection, css, contains, child string) []*goquery.Selection {
	var matches []*goquery.Selection
	root.Find(css).Each(func(_ int, s *goquery.Selection) {
		if contains != "" && !strings.Contains(RenderText(s.Nodes[0]), contains) {
			return
		}
		matches = append(matches, s)
	})
	if child == "" || len(matches) == 0 {
		return matches
	}

	var children []*goquery.Selection
	matches[0].Find(child).Each(func(_ int, s *goquery.Selection) {
		children = append(children, s)
	})
	return children
}
