// Package authhook supplies example pre-download hooks that authenticate
// outgoing requests: HTTP Basic, Bearer token, static cookies, and a
// form-login flow that seeds a shared cookie jar. Adapted from the
// teacher's internal/auth/auth.go Authenticator, reshaped from a global
// per-crawl object into small hooks.BeforeDownloadFunc constructors that
// slot directly into a Spider's pre-download chain (spec.md §4.3), since
// this module has no notion of a single crawl-wide authenticator — auth is
// just another request transform.
package authhook

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cobweb-crawl/cobweb/internal/message"
)

// Basic returns a pre-download hook that sets an HTTP Basic Authorization
// header on every request it sees.
func Basic(username, password string) func(req *message.Request) (*message.Request, error) {
	creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return func(req *message.Request) (*message.Request, error) {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}
		req.Headers.Set("Authorization", "Basic "+creds)
		return req, nil
	}
}

// Bearer returns a pre-download hook that sets a Bearer Authorization header.
func Bearer(token string) func(req *message.Request) (*message.Request, error) {
	return func(req *message.Request) (*message.Request, error) {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}
		req.Headers.Set("Authorization", "Bearer "+token)
		return req, nil
	}
}

// StaticCookies returns a pre-download hook that attaches the given cookies
// to every request, the way the teacher's addConfiguredCookies seeds a jar
// from config up front.
func StaticCookies(cookies ...*http.Cookie) func(req *message.Request) (*message.Request, error) {
	return func(req *message.Request) (*message.Request, error) {
		req.Cookies = append(append([]*http.Cookie(nil), req.Cookies...), cookies...)
		return req, nil
	}
}

// FormLogin performs a one-time form POST login and then attaches the
// resulting session cookies to every subsequent request the hook sees.
// Login runs lazily, on the first request the hook processes, and only
// once; a failed login is returned as the pre-download error, aborting
// that request with RequestIgnored (spec.md §4.3) and is retried on the
// next request the hook sees.
type FormLogin struct {
	LoginURL    string
	FormFields  map[string]string
	SuccessText string

	mu      sync.Mutex
	client  *http.Client
	jar     http.CookieJar
	cookies []*http.Cookie
	loggedIn bool
}

// NewFormLogin builds a FormLogin hook, the Go-hook equivalent of the
// teacher's Authenticator.performFormLogin, minus the crawl-wide
// AuthType switch (callers just register the hook that matches what they
// need).
func NewFormLogin(loginURL string, formFields map[string]string, successText string) *FormLogin {
	jar, _ := cookiejar.New(nil)
	return &FormLogin{
		LoginURL:    loginURL,
		FormFields:  formFields,
		SuccessText: successText,
		jar:         jar,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("authhook: too many redirects during login")
				}
				return nil
			},
		},
	}
}

// Hook returns the pre-download function to register on a Chains.
func (f *FormLogin) Hook() func(req *message.Request) (*message.Request, error) {
	return func(req *message.Request) (*message.Request, error) {
		f.mu.Lock()
		if !f.loggedIn {
			if err := f.login(); err != nil {
				f.mu.Unlock()
				return nil, err
			}
		}
		cookies := f.cookies
		f.mu.Unlock()

		req.Cookies = append(append([]*http.Cookie(nil), req.Cookies...), cookies...)
		return req, nil
	}
}

// login must be called with f.mu held.
func (f *FormLogin) login() error {
	formData := url.Values{}
	for k, v := range f.FormFields {
		formData.Set(k, v)
	}

	resp, err := f.client.PostForm(f.LoginURL, formData)
	if err != nil {
		return fmt.Errorf("authhook: login request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("authhook: reading login response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("authhook: login failed with status %d", resp.StatusCode)
	}
	if f.SuccessText != "" && !strings.Contains(string(body), f.SuccessText) {
		return fmt.Errorf("authhook: login response missing success text")
	}

	loginURL, _ := url.Parse(f.LoginURL)
	f.cookies = f.jar.Cookies(loginURL)
	f.loggedIn = true
	return nil
}
