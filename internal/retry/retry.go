// Package retry classifies the outcome of one download attempt — success,
// a retryable failure, or a terminal failure — ported from mocy/spider.py's
// `_ensure_valid_response` and the status-code/exception branching
// `Spider._download` performs before publishing onto the response channel.
// The teacher's scheduler.go folds this same decision ("Retry && item.
// RetryCount < MaxRetries") into its worker loop; this package extracts it
// into standalone functions the fetcher pool and dispatcher share.
package retry

import (
	"errors"
	"net"

	"github.com/cobweb-crawl/cobweb/internal/message"
	"github.com/cobweb-crawl/cobweb/internal/spidererr"
	"github.com/cobweb-crawl/cobweb/internal/spiderconfig"
	"github.com/cobweb-crawl/cobweb/internal/transport"
)

// ClassifyStatus returns a DownloadError tagged with FailedStatusCode if
// code is in the configured retry-code set (§4.4 step 4), else nil.
func ClassifyStatus(cfg *spiderconfig.Config, req *message.Request, code int) *spidererr.SpiderError {
	if !cfg.IsRetryCode(code) {
		return nil
	}
	cause := &spidererr.FailedStatusCode{Code: code}
	err := spidererr.NewDownloadError(req.URL, cause)
	err.NeedRetry = true
	err.Req = req
	return err
}

// WrapDownloadError wraps a transport-level failure as a DownloadError,
// setting NeedRetry when the cause is a connection error, a timeout, or an
// already-tagged FailedStatusCode (§4.4 step 5).
func WrapDownloadError(req *message.Request, cause error) *spidererr.SpiderError {
	var existing *spidererr.SpiderError
	if errors.As(cause, &existing) && existing.Kind == spidererr.DownloadError {
		existing.Req = req
		return existing
	}

	err := spidererr.NewDownloadError(req.URL, cause)
	err.Req = req
	err.NeedRetry = isRetryableCause(cause)
	return err
}

func isRetryableCause(cause error) bool {
	var statusErr *spidererr.FailedStatusCode
	if errors.As(cause, &statusErr) {
		return true
	}
	var netErr net.Error
	if errors.As(cause, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(cause, &opErr) {
		return true
	}
	return transport.IsRetryableError(cause)
}

// ShouldRetry reports whether a DownloadError should be re-enqueued,
// per §4.7: NeedRetry must be set and the request's retry budget must not
// be exhausted.
func ShouldRetry(cfg *spiderconfig.Config, err *spidererr.SpiderError, retryNum int) bool {
	return err.NeedRetry && retryNum < cfg.RetryTimes
}
