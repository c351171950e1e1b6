// Package transport performs the actual HTTP fetch for one Request and
// builds the resulting Response, including session binding (spec.md §4.2's
// request-scoped vs persistent cookie jars) and error categorization.
// Ported from the teacher's internal/fetcher/fetcher.go — same connection
// pool tuning, same gzip handling, same net.Error-based retryability
// classification — generalized from "fetch a raw URL" to "execute a
// message.Request", and with manual redirect tracking dropped since
// spec.md's Response model has no notion of a redirect chain: a normal
// http.Client redirect policy is enough here.
package transport

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cobweb-crawl/cobweb/internal/message"
	"github.com/cobweb-crawl/cobweb/internal/session"
	"github.com/cobweb-crawl/cobweb/internal/spiderconfig"
)

// Transport fetches requests over HTTP, reusing a shared connection pool.
type Transport struct {
	base        *http.Transport
	noJarClient *http.Client
	maxBodySize int64
	cfg         *spiderconfig.Config
}

// New builds a Transport sized the way the teacher's NewFetcher tunes its
// connection pool.
func New(cfg *spiderconfig.Config) *Transport {
	base := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{},
	}

	return &Transport{
		base:        base,
		maxBodySize: 10 * 1024 * 1024,
		cfg:         cfg,
		noJarClient: &http.Client{
			Transport: base,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= cfg.MaxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch executes req and returns its Response. If req carries a session
// (spec.md §4.2), the request is issued through that session's client so
// cookies persist across requests sharing the session; otherwise a
// one-off client without a cookie jar is used.
func (t *Transport) Fetch(ctx context.Context, req *message.Request) (*message.Response, error) {
	client := t.noJarClient
	var sess message.SessionHandle

	switch req.Session.Mode {
	case message.SessionExisting:
		sess = req.Session.Live
		client = sess.Client()
	case message.SessionNew, message.SessionAttrs:
		s, err := session.New(t.base, http.Client{
			Timeout: t.timeoutFor(req),
			CheckRedirect: func(r *http.Request, via []*http.Request) error {
				if len(via) >= t.cfg.MaxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		})
		if err != nil {
			return nil, fmt.Errorf("transport: creating session: %w", err)
		}
		sess = s
		client = s.Client()
	}

	httpReq, err := t.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("transport: building request: %w", err)
	}

	if req.Timeout > 0 || req.Proxy != "" || !req.Verify {
		override := *client
		override.Timeout = t.timeoutFor(req)

		baseTransport := t.base
		if req.Proxy != "" || !req.Verify {
			cloned := baseTransport.Clone()
			if req.Proxy != "" {
				proxyURL, perr := url.Parse(req.Proxy)
				if perr != nil {
					return nil, fmt.Errorf("transport: invalid proxy url: %w", perr)
				}
				cloned.Proxy = http.ProxyURL(proxyURL)
			}
			if !req.Verify {
				cloned.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			}
			baseTransport = cloned
		}
		override.Transport = baseTransport
		client = &override
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, t.categorizeError(err)
	}
	defer resp.Body.Close()

	body, err := t.readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("transport: reading body: %w", err)
	}

	finalURL := httpReq.URL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	out := &message.Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
		URL:        finalURL,
		Req:        req,
		State:      req.State,
		Session:    sess,
	}
	return out, nil
}

func (t *Transport) timeoutFor(req *message.Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return t.cfg.Timeout
}

func (t *Transport) buildHTTPRequest(ctx context.Context, req *message.Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	reqURL := req.URL
	if len(req.Params) > 0 {
		parsed, err := url.Parse(reqURL)
		if err != nil {
			return nil, err
		}
		q := parsed.Query()
		for k, values := range req.Params {
			for _, v := range values {
				q.Add(k, v)
			}
		}
		parsed.RawQuery = q.Encode()
		reqURL = parsed.String()
	}

	var body io.Reader
	contentType := ""

	switch {
	case len(req.Files) > 0:
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		for name, content := range req.Files {
			part, err := w.CreateFormFile(name, name)
			if err != nil {
				return nil, err
			}
			if _, err := part.Write(content); err != nil {
				return nil, err
			}
		}
		w.Close()
		body = buf
		contentType = w.FormDataContentType()
	case req.JSON != nil:
		buf, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	case req.Body != nil:
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}

	for key, header := range t.cfg.DefaultHeaders {
		httpReq.Header.Set(key, header)
	}
	for key, values := range req.Headers {
		httpReq.Header[key] = values
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept-Encoding", "gzip")

	for _, c := range req.Cookies {
		httpReq.AddCookie(c)
	}

	return httpReq, nil
}

func (t *Transport) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode error: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	limited := io.LimitReader(reader, t.maxBodySize)
	return io.ReadAll(limited)
}

// categorizeError wraps an HTTP client error with a descriptive prefix, the
// way the teacher's categorizeError annotates timeouts/DNS/TLS failures.
func (t *Transport) categorizeError(err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return fmt.Errorf("transport: timeout: %w", err)
	}
	if _, ok := err.(*net.DNSError); ok {
		return fmt.Errorf("transport: dns error: %w", err)
	}
	if opErr, ok := err.(*net.OpError); ok && opErr.Op == "dial" {
		return fmt.Errorf("transport: connection failed: %w", err)
	}
	if strings.Contains(err.Error(), "tls:") || strings.Contains(err.Error(), "certificate") {
		return fmt.Errorf("transport: tls error: %w", err)
	}
	return fmt.Errorf("transport: %w", err)
}

// IsRetryableError reports whether a transport-level error (as opposed to a
// successful response with a retryable status code) should be retried, the
// way the teacher's isRetryableError inspects net.Error and well-known
// error substrings.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection reset", "connection refused", "no such host", "eof", "broken pipe"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// Close releases pooled connections.
func (t *Transport) Close() {
	t.base.CloseIdleConnections()
}
