// Package parser extracts a reusable summary of one HTML page, for use by
// the example crawler's default parse function. Ported from the teacher's
// internal/parser/parser.go PageData/Link/Image shape, trimmed to the
// fields a generic crawl example plausibly wants, and rewritten from a
// manual golang.org/x/net/html tree walk to goquery selectors (see
// internal/message.Response.Select for why goquery was chosen as the
// idiomatic Go analogue of mocy/response.py's BeautifulSoup `.select()`).
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cobweb-crawl/cobweb/internal/message"
)

// PageData is the extracted summary of one page.
type PageData struct {
	Title           string
	MetaDescription string
	Canonical       string
	H1              []string
	H2              []string
	Links           []Link
	Images          []Image
	WordCount       int
}

// Link is one anchor found on the page.
type Link struct {
	URL      string
	Text     string
	NoFollow bool
}

// Image is one img element found on the page.
type Image struct {
	Src string
	Alt string
}

// Parse extracts a PageData from a fetched response, the way the
// teacher's Parser.Parse walked the raw node tree, but expressed as a set
// of goquery CSS selections over res.Document().
func Parse(res *message.Response) (*PageData, error) {
	doc, err := res.Document()
	if err != nil {
		return nil, err
	}

	data := &PageData{
		H1:     make([]string, 0),
		H2:     make([]string, 0),
		Links:  make([]Link, 0),
		Images: make([]Image, 0),
	}

	data.Title = strings.TrimSpace(doc.Find("title").First().Text())
	data.MetaDescription = attrOrEmpty(doc, `meta[name="description"]`, "content")
	data.Canonical = attrOrEmpty(doc, `link[rel="canonical"]`, "href")

	doc.Find("h1").Each(func(_ int, sel *goquery.Selection) {
		data.H1 = append(data.H1, strings.TrimSpace(sel.Text()))
	})
	doc.Find("h2").Each(func(_ int, sel *goquery.Selection) {
		data.H2 = append(data.H2, strings.TrimSpace(sel.Text()))
	})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		rel, _ := sel.Attr("rel")
		data.Links = append(data.Links, Link{
			URL:      href,
			Text:     strings.TrimSpace(sel.Text()),
			NoFollow: strings.Contains(rel, "nofollow"),
		})
	})

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		alt, _ := sel.Attr("alt")
		data.Images = append(data.Images, Image{Src: src, Alt: alt})
	})

	data.WordCount = len(strings.Fields(doc.Find("body").Text()))

	return data, nil
}

func attrOrEmpty(doc *goquery.Document, selector, attr string) string {
	v, _ := doc.Find(selector).First().Attr(attr)
	return v
}
