// Package hooks implements the three ordered hook chains spec.md §4.3
// describes: pre-download, post-download, and pipe. A chain is composed of
// plain functions or objects exposing the conventional method
// (BeforeDownload/AfterDownload); object entries are resolved to their
// method at bind time, the way mocy's `before_download`/`after_download`/
// `pipe` decorators register a bound method onto a per-class handler list
// (mocy/spider.py). The Go surface offered here is a builder (explicit
// Use* calls, spec.md §9's "builder that accumulates handlers") plus
// support for object-shaped handlers (spec.md §9's "annotation-like
// mechanism"), since Go has no runtime decorator/metaclass equivalent.
package hooks

import (
	"errors"

	"github.com/cobweb-crawl/cobweb/internal/message"
	"github.com/cobweb-crawl/cobweb/internal/spiderlog"
)

// BeforeDownloadFunc transforms a request before it is fetched. Returning a
// non-nil error aborts the chain (wrapped as RequestIgnored by the caller).
type BeforeDownloadFunc func(req *message.Request) (*message.Request, error)

// BeforeDownloadHandler is the object-shaped equivalent, matching the
// "object exposing a conventionally-named method" surface from §4.3.
type BeforeDownloadHandler interface {
	BeforeDownload(req *message.Request) (*message.Request, error)
}

// AfterDownloadFunc transforms a response after it is fetched. Returning a
// non-nil error aborts the chain. Returning a nil response together with a
// non-nil *message.Request error payload is not how this is modeled in Go;
// instead, return a RedirectError (see below) when a handler wants to
// redirect to a fresh request.
type AfterDownloadFunc func(res *message.Response) (*message.Response, error)

// AfterDownloadHandler is the object-shaped equivalent of AfterDownloadFunc.
type AfterDownloadHandler interface {
	AfterDownload(res *message.Response) (*message.Response, error)
}

// RedirectError lets an after-download handler reject a response in favor
// of a fresh request, the way mocy's post-download chain aborts with
// `ResponseIgnored(new_req=...)` when a handler returns a Request instead
// of a Response (§4.3). A handler that wants this should return
// &RedirectError{Req: req} as its error.
type RedirectError struct {
	Req *message.Request
}

func (e *RedirectError) Error() string {
	return "after-download handler redirected to a new request"
}

// PipeFunc processes one extracted item. item2 variants additionally see
// the response that produced the item ("dynamic arity" in spec.md §9,
// expressed here as two explicit handler types instead of reflecting on a
// function's declared parameter count). Returning nil drops the item
// silently, ending the chain (§4.3).
type PipeFunc func(item interface{}) interface{}

// PipeWithResponseFunc is the response-aware pipe handler variant.
type PipeWithResponseFunc func(item interface{}, res *message.Response) interface{}

// pipeEntry normalizes both PipeFunc and PipeWithResponseFunc into one
// internal shape so the chain can run them uniformly.
type pipeEntry struct {
	fn         PipeFunc
	fnWithResp PipeWithResponseFunc
}

func (p pipeEntry) run(item interface{}, res *message.Response) interface{} {
	if p.fnWithResp != nil {
		return p.fnWithResp(item, res)
	}
	return p.fn(item)
}

// AnnotatedHandler is an object that may implement BeforeDownloadHandler
// and/or AfterDownloadHandler; Bind resolves it against the chain it's
// registered for and falls back to the identity function (with a logged
// warning) if the object doesn't implement the expected method, per §4.3.
type AnnotatedHandler interface{}

// Chains holds one spider type's three ordered hook chains. The zero value
// is three empty chains (pipe chain empty means "call spider.Collect",
// resolved by the caller per §4.3).
type Chains struct {
	before []BeforeDownloadFunc
	after  []AfterDownloadFunc
	pipes  []pipeEntry
}

// NewChains returns an empty chain set.
func NewChains() *Chains {
	return &Chains{}
}

// Clone copies a base chain set the way a subclass "copies the base chain"
// at bind time (§4.3), so appending to the clone never mutates the base.
func (c *Chains) Clone() *Chains {
	clone := &Chains{
		before: append([]BeforeDownloadFunc(nil), c.before...),
		after:  append([]AfterDownloadFunc(nil), c.after...),
		pipes:  append([]pipeEntry(nil), c.pipes...),
	}
	return clone
}

// UseBeforeDownload appends a plain pre-download handler.
func (c *Chains) UseBeforeDownload(fn BeforeDownloadFunc) *Chains {
	c.before = append(c.before, fn)
	return c
}

// UseAfterDownload appends a plain post-download handler.
func (c *Chains) UseAfterDownload(fn AfterDownloadFunc) *Chains {
	c.after = append(c.after, fn)
	return c
}

// UsePipe appends an item-only pipe handler.
func (c *Chains) UsePipe(fn PipeFunc) *Chains {
	c.pipes = append(c.pipes, pipeEntry{fn: fn})
	return c
}

// UsePipeWithResponse appends a response-aware pipe handler.
func (c *Chains) UsePipeWithResponse(fn PipeWithResponseFunc) *Chains {
	c.pipes = append(c.pipes, pipeEntry{fnWithResp: fn})
	return c
}

// UseAnnotated resolves an object-shaped handler against whichever chains
// it implements (a handler may implement both interfaces and be appended to
// both chains). An object implementing neither is replaced by the identity
// function and a warning is logged, per §4.3.
func (c *Chains) UseAnnotated(name string, h AnnotatedHandler) *Chains {
	matched := false
	if bd, ok := h.(BeforeDownloadHandler); ok {
		c.UseBeforeDownload(bd.BeforeDownload)
		matched = true
	}
	if ad, ok := h.(AfterDownloadHandler); ok {
		c.UseAfterDownload(ad.AfterDownload)
		matched = true
	}
	if !matched {
		spiderlog.L().Warn().Str("handler", name).Msg("hook object exposes neither BeforeDownload nor AfterDownload; using identity")
		c.UseBeforeDownload(func(req *message.Request) (*message.Request, error) { return req, nil })
	}
	return c
}

// ErrDropped is returned by RunBeforeDownload/RunAfterDownload when a
// handler deliberately drops the value by returning (nil, nil) — the Go
// expression of §4.3's "handler returns a value that is not a
// Request/Response", as distinct from a handler that raises. Callers
// should map this sentinel to a cause-less RequestIgnored/ResponseIgnored
// (§8 property 5's "cause = null"), not to a reported error.
var ErrDropped = errors.New("hooks: handler dropped the value")

// RunBeforeDownload runs the pre-download chain in order. If any handler
// returns an error, the chain aborts (§4.3).
func (c *Chains) RunBeforeDownload(req *message.Request) (*message.Request, error) {
	cur := req
	for _, fn := range c.before {
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, ErrDropped
		}
		cur = next
	}
	return cur, nil
}

// RunAfterDownload runs the post-download chain in order.
func (c *Chains) RunAfterDownload(res *message.Response) (*message.Response, error) {
	cur := res
	for _, fn := range c.after {
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, ErrDropped
		}
		cur = next
	}
	return cur, nil
}

// RunPipes runs the pipe chain for one item. If the chain is empty, collect
// is invoked with the item unchanged (§4.3's "If the chain is empty, the
// spider's collect method is called with the item"). Otherwise, collect is
// invoked with the last non-nil return value once every handler has run
// (§4.3's "the last non-null return value is the final collected item").
// Returns false if some handler in the chain returned nil, meaning the item
// was silently dropped before reaching collect.
func (c *Chains) RunPipes(item interface{}, res *message.Response, collect func(interface{})) (interface{}, bool) {
	if len(c.pipes) == 0 {
		collect(item)
		return item, true
	}
	cur := item
	for _, p := range c.pipes {
		cur = p.run(cur, res)
		if cur == nil {
			return nil, false
		}
	}
	collect(cur)
	return cur, true
}

// HasPipes reports whether any pipe handlers are registered.
func (c *Chains) HasPipes() bool {
	return len(c.pipes) > 0
}
