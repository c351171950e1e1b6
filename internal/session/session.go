// Package session implements the stateful cookie-/connection-holding handle
// Request.Session can reference across multiple fetches (spec.md §3;
// ported from mocy/request.py's `Request._make_session`, which wraps
// requests.Session — the Go equivalent is an *http.Client with its own
// cookie jar sharing the fetch pool's transport).
package session

import (
	"net/http"
	"net/http/cookiejar"
	"sync"
)

// Session is an opaque cookie-/connection-holding handle. Its lifetime is
// governed by the dispatcher: it is closed exactly once, when no request
// derived from the response that carried it has claimed ownership (§3
// invariant 4).
type Session struct {
	client *http.Client
	jar    http.CookieJar

	mu     sync.Mutex
	closed bool
}

// New creates a session sharing transport with the given base client but
// owning its own cookie jar, the way mocy's `requests.Session()` does.
func New(transport http.RoundTripper, timeout http.Client) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Transport:     transport,
		Timeout:       timeout.Timeout,
		CheckRedirect: timeout.CheckRedirect,
		Jar:           jar,
	}
	return &Session{client: client, jar: jar}, nil
}

// Client returns the *http.Client to issue requests through.
func (s *Session) Client() *http.Client {
	return s.client
}

// Jar returns the session's cookie jar, so e.g. a form-login hook can
// inspect or seed cookies directly.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// Close releases the session's own resources. Safe to call more than once;
// only the first call has effect, matching the "closed exactly once"
// invariant being the dispatcher's responsibility to enforce at the call
// site, not this type's. It must not touch the underlying RoundTripper:
// New shares the fetch pool's single *http.Transport (see
// transport.Transport.base) across every session so its connection pool is
// reused, so CloseIdleConnections here would tear down pooled connections
// other in-flight sessions and requests still depend on. Dropping the jar
// reference is this session's own cleanup, the Go analogue of
// requests.Session.close() only closing that session's adapters
// (mocy/request.py), not the whole process's connection pool.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.jar = nil
	return nil
}
