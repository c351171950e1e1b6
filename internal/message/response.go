package message

import (
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseFunc turns a Response into zero or more yielded values, each either
// a *Request (follow-up fetch) or an item (anything else, routed through
// the pipe chain). yield is called once per produced value, in order; this
// is the Go analogue of the Python generator `parse(res) -> Generator`
// (mocy/spider.py), expressed as a push-style callback so a callback can
// stream results without materializing a slice. A non-nil error aborts the
// parse and is reported as a ParseError.
type ParseFunc func(res *Response, yield func(item interface{})) error

// Response is the result of a successful fetch.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte

	// URL is the final URL the response came from (after any redirects the
	// transport followed).
	URL string

	Req     *Request
	State   map[string]interface{}
	Session SessionHandle

	doc     *goquery.Document
	docErr  error
	docOnce bool
}

// Text returns the response body decoded as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Select runs a CSS selector against the response body, parsed as HTML, and
// returns matching elements (spec.md §3/§4.2 "a CSS-select convenience that
// delegates to an HTML parser"). Ported from mocy/response.py's
// `BeautifulSoup(self.text, parser).select(selector)`, using goquery (which
// wraps golang.org/x/net/html + cascadia) as the idiomatic Go equivalent of
// BeautifulSoup+lxml.
func (r *Response) Select(selector string) *goquery.Selection {
	doc, err := r.document()
	if err != nil || doc == nil {
		return new(goquery.Selection)
	}
	return doc.Find(selector)
}

// Document returns the lazily-parsed goquery document backing Select, for
// callers that want to run more than one selection without re-parsing.
func (r *Response) Document() (*goquery.Document, error) {
	return r.document()
}

func (r *Response) document() (*goquery.Document, error) {
	if !r.docOnce {
		r.doc, r.docErr = goquery.NewDocumentFromReader(strings.NewReader(r.Text()))
		r.docOnce = true
	}
	return r.doc, r.docErr
}

// IsSuccess returns true for a 2xx status code.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
