package htmlutil

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func TestRenderText(t *testing.T) {
	doc := parse(t, `<div class="x"><p><b>Address:</b><br>
		100 Main St<br>
		Austin,   TX 78701</p><script>var x = 1;</script></div>`)

	text := RenderText(doc.Find("p").Nodes[0])
	require.Equal(t, "Address:\n100 Main St\nAustin, TX 78701", text)

	text = RenderText(doc.Find("div").Nodes[0])
	require.Equal(t, "Address:\n100 Main St\nAustin, TX 78701", text)
}

func TestRenderTextBlocks(t *testing.T) {
	doc := parse(t, `<section><h1> Hello </h1><span>inline</span> <span>text</span><ul><li>a</li><li>b</li></ul></section>`)
	require.Equal(t, "Hello\ninline text\na\nb", RenderText(doc.Find("section").Nodes[0]))
}

func TestGetAnchors(t *testing.T) {
	doc := parse(t, `<a href="/school/1"> One </a><a>no href</a><a href="https://other.org/x">Two</a>`)
	base, err := url.Parse("https://txschools.gov/?view=schools")
	require.NoError(t, err)

	anchors := GetAnchors(base, doc.Find("a"))
	require.Len(t, anchors, 2)
	require.Equal(t, "One", anchors[0].Name)
	require.Equal(t, "https://txschools.gov/school/1", anchors[0].Url.String())
	require.Equal(t, "https://other.org/x", anchors[1].Url.String())
}

func TestLocate(t *testing.T) {
	doc := parse(t, `<body>
		<span>Grades Served: <b>PK - 05</b></span>
		<span>District: <b><a href="/d/1">Austin ISD</a></b><b><a href="/d/2">Other</a></b></span>
		<span>District: <b><a href="/d/3">Second</a></b></span>
	</body>`)

	require.Len(t, Locate(doc.Selection, "span", "", ""), 3)
	require.Len(t, Locate(doc.Selection, "span", "District:", ""), 2)

	children := Locate(doc.Selection, "span", "District:", "b > a")
	require.Len(t, children, 2)
	require.Equal(t, "Austin ISD", children[0].Text())

	require.Empty(t, Locate(doc.Selection, "span", "Principal", "b"))
	require.Empty(t, Locate(doc.Selection, "span", "Grades Served:", "a"))
}
