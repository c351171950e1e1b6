// Package spidererr defines the tagged error taxonomy the crawl engine uses
// to route failures back through the dispatcher (see mocy/exceptions.py for
// the original shape this is ported from).
package spidererr

import "fmt"

// Kind tags a SpiderError with the stage that produced it.
type Kind int

const (
	// RequestIgnored means the pre-download chain dropped the request.
	RequestIgnored Kind = iota
	// ResponseIgnored means the post-download chain dropped the response.
	ResponseIgnored
	// DownloadError means the HTTP call itself failed or returned a
	// retry-eligible status code.
	DownloadError
	// ParseError means the parse callback raised.
	ParseError
	// PipeError means a pipe handler raised.
	PipeError
	// Generic covers anything else (e.g. session close failure).
	Generic
)

func (k Kind) String() string {
	switch k {
	case RequestIgnored:
		return "RequestIgnored"
	case ResponseIgnored:
		return "ResponseIgnored"
	case DownloadError:
		return "DownloadError"
	case ParseError:
		return "ParseError"
	case PipeError:
		return "PipeError"
	default:
		return "Generic"
	}
}

// FailedStatusCode is the cause attached to a DownloadError SpiderError when
// a response's status code falls in the configured retry-code set (ported
// from mocy/exceptions.py FailedStatusCode).
type FailedStatusCode struct {
	Code int
}

func (e FailedStatusCode) Error() string {
	return fmt.Sprintf("failed status code %d", e.Code)
}

// SpiderError is the tagged error that flows from a fetcher to the
// dispatcher's retry/error classifier.
type SpiderError struct {
	Kind Kind
	Msg  string
	// Cause is the underlying error, if any. A nil Cause on a Request/
	// ResponseIgnored error means a handler deliberately dropped the value
	// rather than raising.
	Cause error

	URL string
	// NewReq carries a replacement request when a post-download handler
	// returned one instead of a Response (§4.3).
	NewReq interface{}
	// NeedRetry is set on DownloadError to request a delayed re-enqueue.
	NeedRetry bool

	// Req and Res optionally carry the originating request/response for
	// handlers that want the full context (§3). Typed as interface{} to
	// avoid a dependency from this package onto internal/message.
	Req interface{}
	Res interface{}
}

func (e *SpiderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *SpiderError) Unwrap() error {
	return e.Cause
}

// New builds a SpiderError of the given kind.
func New(kind Kind, url, msg string, cause error) *SpiderError {
	return &SpiderError{Kind: kind, Msg: msg, Cause: cause, URL: url}
}

func NewRequestIgnored(url string, cause error) *SpiderError {
	return New(RequestIgnored, url, fmt.Sprintf("request was ignored for %s", url), cause)
}

func NewResponseIgnored(url string, cause error) *SpiderError {
	return New(ResponseIgnored, url, fmt.Sprintf("response was ignored for %s", url), cause)
}

func NewDownloadError(url string, cause error) *SpiderError {
	return New(DownloadError, url, fmt.Sprintf("cannot download from %s", url), cause)
}

func NewParseError(url string, cause error) *SpiderError {
	return New(ParseError, url, fmt.Sprintf("error parsing response from %s", url), cause)
}

func NewPipeError(url string, cause error) *SpiderError {
	return New(PipeError, url, fmt.Sprintf("error collecting results from %s", url), cause)
}

func NewGeneric(msg string, cause error) *SpiderError {
	return New(Generic, "", msg, cause)
}
