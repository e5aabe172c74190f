package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

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

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// NormalizeText strips non-printable runes, trims the edges and collapses
// runs of inner whitespace down to a single space.
func NormalizeText(s string) string {
	printable := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			printable.WriteRune(c)
		}
	}
	out := strings.Trim(printable.String(), " \t\n")
	return innerWhitespace.ReplaceAllString(out, " ")
}

type Anchor struct {
	Name string
	Href string
}

// GetAnchors pulls (link text, href) pairs out of a selection of <a> nodes,
// skipping anchors whose href does not parse as a url.
func GetAnchors(sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		link, err := url.Parse(href)
		if err != nil {
			continue
		}

		anchors = append(anchors, Anchor{
			Name: NormalizeText(GetText(n)),
			Href: link.String(),
		})
	}

	return anchors
}
