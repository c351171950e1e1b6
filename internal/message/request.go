// Package message defines the Request/Response value types the crawl
// engine passes between the fetcher pool and the dispatcher: an instruction
// to fetch one resource, and the result of fetching it, including the
// session/state/retry bookkeeping threaded through a crawl (spec.md §3;
// ported from mocy/request.py and mocy/response.py). Request and Response
// live in one package because each refers to the other (a Response holds
// its originating Request; a Request's Callback is keyed by a parse
// function that receives a Response).
package message

import (
	"net/http"
	"time"
)

// SessionMode tells the fetcher what kind of session a Request wants.
type SessionMode int

const (
	// SessionNone means no session is used; the request is fetched with a
	// bare client. A request yielded from a response that carries a live
	// session with this mode inherits that session instead.
	SessionNone SessionMode = iota
	// SessionNew means a fresh session should be created for this request.
	SessionNew
	// SessionAttrs means a fresh session is created for this request, the
	// same way as for SessionNew. The transport does not apply
	// SessionSpec.Attrs to that session.
	SessionAttrs
	// SessionExisting means Session carries a live session handle to reuse.
	SessionExisting
)

// SessionHandle is satisfied by *session.Session; declared here as an
// interface so this package doesn't import internal/session.
type SessionHandle interface {
	Client() *http.Client
	Close() error
}

// SessionSpec describes what a Request wants for session handling — the Go
// analogue of mocy's `session: Union[bool, dict, requests.Session]`.
type SessionSpec struct {
	Mode  SessionMode
	Attrs map[string]string // carried when Mode == SessionAttrs; not applied by the transport
	Live  SessionHandle     // used when Mode == SessionExisting
}

// NoSession is the zero-value SessionSpec.
var NoSession = SessionSpec{Mode: SessionNone}

// NewSession requests a fresh session be created for this request.
func NewSession() SessionSpec { return SessionSpec{Mode: SessionNew} }

// SessionWithAttrs requests a fresh session and records attrs on the spec;
// the transport does not apply them to the session.
func SessionWithAttrs(attrs map[string]string) SessionSpec {
	return SessionSpec{Mode: SessionAttrs, Attrs: attrs}
}

// UseSession reuses an existing, live session handle.
func UseSession(h SessionHandle) SessionSpec {
	return SessionSpec{Mode: SessionExisting, Live: h}
}

// Request is an instruction to fetch one resource.
type Request struct {
	URL    string
	Method string // default GET

	// Headers are merged over Config.DefaultHeaders without overwriting
	// anything the caller already set: at enqueue time for seed requests,
	// and for every request when its HTTP request is built. No Host header
	// is added here; net/http sends Host from URL.
	Headers http.Header

	Body    []byte
	Params  map[string][]string // query string additions
	JSON    interface{}
	Files   map[string][]byte
	Cookies []*http.Cookie
	Proxy   string
	Verify  bool // false disables TLS certificate verification
	Timeout time.Duration

	// Callback is the parse function used for the resulting response. If
	// nil, the spider's default Parse is used.
	Callback ParseFunc

	Session SessionSpec

	// State is opaque user data carried forward onto the resulting
	// Response (and, if the user wires it, onto requests derived from that
	// response).
	State map[string]interface{}

	// RetryNum starts at 0 and is incremented before each re-enqueue (§3
	// invariant 3).
	RetryNum int
}

// New builds a GET request for url with sane defaults.
func New(url string) *Request {
	return &Request{
		URL:     url,
		Method:  http.MethodGet,
		Headers: make(http.Header),
		Verify:  true,
		State:   make(map[string]interface{}),
	}
}

// Initial reports whether this is a unique request or the first request of
// a session — true iff Session does not yet carry a live handle (§3).
func (r *Request) Initial() bool {
	return r.Session.Mode != SessionExisting
}

// Clone returns a shallow copy suitable for re-enqueue with an incremented
// RetryNum; Headers/State maps are copied so retries don't alias the
// original request's mutable fields.
func (r *Request) Clone() *Request {
	c := *r
	c.Headers = r.Headers.Clone()
	if r.State != nil {
		c.State = make(map[string]interface{}, len(r.State))
		for k, v := range r.State {
			c.State[k] = v
		}
	}
	return &c
}
