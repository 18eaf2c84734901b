package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Small DOM helpers over x/net/html nodes. The site markup is stable enough
// that class/id matching covers every strategy.

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// walk visits every element node under root in document order. Returning
// false from visit stops the traversal.
func walk(root *html.Node, visit func(*html.Node) bool) {
	var rec func(*html.Node) bool
	rec = func(n *html.Node) bool {
		if n.Type == html.ElementNode && !visit(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !rec(c) {
				return false
			}
		}
		return true
	}
	rec(root)
}

func findByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

func findAllByClass(root *html.Node, class string) []*html.Node {
	var nodes []*html.Node
	walk(root, func(n *html.Node) bool {
		if hasClass(n, class) {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

func findFirstByClass(root *html.Node, class string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if hasClass(n, class) {
			found = n
			return false
		}
		return true
	})
	return found
}

func findAllByTag(root *html.Node, tag string) []*html.Node {
	var nodes []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Data == tag {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

// textContent concatenates all text under n, collapsing whitespace runs.
func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
