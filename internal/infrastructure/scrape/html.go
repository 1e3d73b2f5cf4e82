package scrape

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	errs "github.com/turtacn/enzbench/pkg/errors"
)

// Matcher selects element nodes.
type Matcher func(n *html.Node) bool

// ByTag matches elements named tag.
func ByTag(tag string) Matcher {
	return func(n *html.Node) bool { return n.Data == tag }
}

// ByID matches the element with the given id attribute.
func ByID(id string) Matcher {
	return ByAttr("id", id)
}

// ByAttr matches elements whose attribute key equals val.
func ByAttr(key, val string) Matcher {
	return func(n *html.Node) bool {
		v, ok := Attr(n, key)
		return ok && v == val
	}
}

// And matches elements accepted by every matcher.
func And(ms ...Matcher) Matcher {
	return func(n *html.Node) bool {
		for _, m := range ms {
			if !m(n) {
				return false
			}
		}
		return true
	}
}

// ParseHTML parses a page body.
func ParseHTML(body []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeToolParseError, "parse html")
	}
	return doc, nil
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// FindElement returns the first element below n, in document order, that m
// accepts. n itself is considered.
func FindElement(n *html.Node, m Matcher) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && m(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := FindElement(c, m); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every element below n that m accepts.
func FindAll(n *html.Node, m Matcher) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && m(node) {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// InputValue returns the value attribute of the first input named name.
func InputValue(doc *html.Node, name string) (string, bool) {
	in := FindElement(doc, And(ByTag("input"), ByAttr("name", name)))
	if in == nil {
		return "", false
	}
	return Attr(in, "value")
}

// Text returns the text pieces below n, each trimmed, empty pieces dropped,
// joined by sep.
func Text(n *html.Node, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if s := strings.TrimSpace(node.Data); s != "" {
				parts = append(parts, strings.Join(strings.Fields(s), " "))
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}

// Tables returns every table element below n.
func Tables(n *html.Node) []*html.Node {
	return FindAll(n, ByTag("table"))
}

// TableRows returns the th/td cell texts of every row of table, cell pieces
// joined by sep. Rows of nested tables are not included.
func TableRows(table *html.Node, sep string) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "table":
				continue
			case "tr":
				var cells []string
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type == html.ElementNode && (td.Data == "td" || td.Data == "th") {
						cells = append(cells, Text(td, sep))
					}
				}
				rows = append(rows, cells)
			default:
				walk(c)
			}
		}
	}
	if table != nil {
		walk(table)
	}
	return rows
}
