package scrape

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

const (
	reviewSectionClass = "ReviewText__content"
	reviewTextClass    = "TruncatedContent__text"

	// NoContent stands in for a review section without a text block.
	NoContent = "No content"
)

// ErrNoReviews is returned when a page has no review sections.
var ErrNoReviews = errors.New("no reviews found on the provided page")

// ParseReviews extracts the text of every review section on a review page.
func ParseReviews(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse review page: %w", err)
	}

	var reviews []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "section" && hasClass(n, reviewSectionClass) {
			reviews = append(reviews, reviewText(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(reviews) == 0 {
		return nil, ErrNoReviews
	}
	return reviews, nil
}

func reviewText(section *html.Node) string {
	div := find(section, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" && hasClass(n, reviewTextClass)
	})
	if div == nil {
		return NoContent
	}

	var buf strings.Builder
	extractText(div, &buf)
	return strings.TrimSpace(collapseWhitespace(buf.String()))
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			return c
		}
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" && slices.Contains(strings.Fields(attr.Val), class) {
			return true
		}
	}
	return false
}

// extractText recursively extracts text content from HTML nodes.
func extractText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "br", "li":
			buf.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, buf)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "li":
			buf.WriteString(" ")
		}
	}
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return whitespaceRegex.ReplaceAllString(s, " ")
}
