// Package dispatcher implements the single-consumer loop spec.md §4.5
// describes: it drains the response channel the fetcher pool publishes to,
// invokes the per-response parser, routes yielded requests back to the
// queue and yielded items through the pipe chain, and owns session
// lifetime and completion accounting. Ported from mocy/spider.py's
// `Spider.start` loop, with the teacher's scheduler.go contributing the
// worker/result-channel idiom (a select loop reading one result at a time,
// updating atomic-free counters because only one goroutine touches them).
package dispatcher

import (
	"container/list"
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/cobweb-crawl/cobweb/internal/hooks"
	"github.com/cobweb-crawl/cobweb/internal/message"
	"github.com/cobweb-crawl/cobweb/internal/queue"
	"github.com/cobweb-crawl/cobweb/internal/retry"
	"github.com/cobweb-crawl/cobweb/internal/spidererr"
	"github.com/cobweb-crawl/cobweb/internal/spiderconfig"
	"github.com/cobweb-crawl/cobweb/internal/spiderlog"
	"github.com/cobweb-crawl/cobweb/internal/urlutil"
)

// Outcome is whatever arrives on the response queue: either a
// *message.Response or a *spidererr.SpiderError.
type Outcome interface{}

// Outcomes is the unbounded queue fetchers publish Outcome values onto and
// the dispatcher drains. It must never block a Send: the dispatcher is its
// only consumer, and handleResponse's Enqueue path can itself block inside
// DelayQueue.Put when the bounded request FIFO (§4.1) is full. A bounded
// channel here can deadlock — every fetcher blocked sending a result while
// the dispatcher is blocked enqueueing one never lets the DelayQueue drain,
// which is the only thing that would unblock the dispatcher. Grounded on
// the teacher's internal/frontier/frontier.go (an unbounded container/list
// queue behind a mutex) and internal/scheduler/scheduler.go's polling
// consumer loop; a buffered notify channel stands in for the teacher's
// fixed-interval sleep so Recv wakes promptly instead of busy-polling.
type Outcomes struct {
	mu     sync.Mutex
	items  *list.List
	notify chan struct{}
}

// NewOutcomes builds an empty, unbounded Outcomes queue.
func NewOutcomes() *Outcomes {
	return &Outcomes{
		items:  list.New(),
		notify: make(chan struct{}, 1),
	}
}

// Send appends an outcome. Never blocks.
func (o *Outcomes) Send(v Outcome) {
	o.mu.Lock()
	o.items.PushBack(v)
	o.mu.Unlock()
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *Outcomes) tryRecv() (Outcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	front := o.items.Front()
	if front == nil {
		return nil, false
	}
	o.items.Remove(front)
	return front.Value, true
}

// Recv blocks until an outcome is available or ctx is done.
func (o *Outcomes) Recv(ctx context.Context) (Outcome, bool) {
	for {
		if v, ok := o.tryRecv(); ok {
			return v, true
		}
		select {
		case <-o.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Dispatcher is the sole consumer of the response channel and the sole
// mutator of the issued/completed counters (§5's "no concurrent writers"
// invariant, preserved here by routing every enqueue — including ones
// triggered from inside a parse callback — through this goroutine).
type Dispatcher struct {
	cfg       *spiderconfig.Config
	queue     *queue.DelayQueue
	responses *Outcomes
	chains    *hooks.Chains

	defaultParse message.ParseFunc
	onError      func(err *spidererr.SpiderError)
	collect      func(item interface{})

	issued     int
	completed  int
	failedURLs []string
}

// New builds a Dispatcher. defaultParse is used for any response whose
// request carries no explicit Callback.
func New(
	cfg *spiderconfig.Config,
	q *queue.DelayQueue,
	responses *Outcomes,
	chains *hooks.Chains,
	defaultParse message.ParseFunc,
	onError func(err *spidererr.SpiderError),
	collect func(item interface{}),
) *Dispatcher {
	return &Dispatcher{
		cfg:          cfg,
		queue:        q,
		responses:    responses,
		chains:       chains,
		defaultParse: defaultParse,
		onError:      onError,
		collect:      collect,
	}
}

// Enqueue submits a seed or freshly-yielded request, incrementing the
// issued counter. Must only be called from this goroutine (seed
// materialization, before Run starts, or from within a parse callback
// while Run is executing).
func (d *Dispatcher) Enqueue(req *message.Request) {
	d.issued++
	d.queue.Put(req)
}

func (d *Dispatcher) enqueueLater(req *message.Request, delayed bool) {
	d.issued++
	if delayed {
		d.queue.PutLater(req, d.cfg.RetryDelay)
	} else {
		d.queue.Put(req)
	}
}

// Run drives the dispatcher loop until issued == completed (§4.8 step 6),
// or ctx is cancelled. It returns the accumulated failed-URL list.
func (d *Dispatcher) Run(ctx context.Context) []string {
	for d.issued != d.completed {
		outcome, ok := d.responses.Recv(ctx)
		if !ok {
			return d.failedURLs
		}
		d.completed++
		d.handle(outcome)
	}
	return d.failedURLs
}

func (d *Dispatcher) handle(outcome Outcome) {
	switch v := outcome.(type) {
	case *spidererr.SpiderError:
		d.handleError(v)
	case *message.Response:
		d.handleResponse(v)
	default:
		spiderlog.L().Warn().Msg("dispatcher: unrecognized outcome type discarded")
	}
}

// handleError implements the retry/error classifier, §4.7.
func (d *Dispatcher) handleError(err *spidererr.SpiderError) {
	switch err.Kind {
	case spidererr.RequestIgnored:
		d.reportOrAbsorb(err)

	case spidererr.ResponseIgnored:
		if req, ok := err.NewReq.(*message.Request); ok && req != nil {
			d.Enqueue(req)
		}
		d.reportOrAbsorb(err)

	case spidererr.DownloadError:
		req, _ := err.Req.(*message.Request)
		if req != nil && retry.ShouldRetry(d.cfg, err, req.RetryNum) {
			req.RetryNum++
			spiderlog.L().Debug().Str("url", err.URL).Int("retry_num", req.RetryNum).Msg("retrying download")
			d.enqueueLater(req, true)
			return
		}
		d.failedURLs = append(d.failedURLs, err.URL)
		d.report(err)

	default: // ParseError, PipeError, Generic
		d.report(err)
	}
}

// reportOrAbsorb applies the silent-absorb Open Question decision (§9):
// a RequestIgnored/ResponseIgnored with no Cause is absorbed at DEBUG
// unless Config.ReportIgnoredWithoutCause opts back into reporting it.
func (d *Dispatcher) reportOrAbsorb(err *spidererr.SpiderError) {
	if err.Cause != nil || d.cfg.ReportIgnoredWithoutCause {
		d.report(err)
		return
	}
	spiderlog.L().Debug().Str("url", err.URL).Str("kind", err.Kind.String()).Msg("absorbed without cause")
}

func (d *Dispatcher) report(err *spidererr.SpiderError) {
	if d.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			spiderlog.L().Error().Interface("panic", r).Msg("error in error handler")
		}
	}()
	d.onError(err)
}

// handleResponse implements §4.5 steps 3-7.
func (d *Dispatcher) handleResponse(res *message.Response) {
	parser := d.defaultParse
	if res.Req != nil && res.Req.Callback != nil {
		parser = res.Req.Callback
	}

	session := res.Session
	closeSession := session != nil

	var parseErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				parseErr = panicToError(r)
			}
		}()
		parseErr = parser(res, func(item interface{}) {
			d.dispatchYield(item, res, session, &closeSession)
		})
	}()

	if parseErr != nil {
		spErr := spidererr.NewParseError(res.URL, parseErr)
		spErr.Res = res
		if res.Req != nil {
			spErr.Req = res.Req
		}
		d.report(spErr)
	}

	if closeSession {
		if err := session.Close(); err != nil {
			d.report(spidererr.NewGeneric("cannot close session", err))
		}
	}
}

func (d *Dispatcher) dispatchYield(item interface{}, res *message.Response, session message.SessionHandle, closeSession *bool) {
	switch v := item.(type) {
	case *message.Request:
		d.followRequest(v, res, session, closeSession)
	case nil:
		// ignored, same as a parser yielding nothing for this step
	default:
		d.runPipes(v, res)
	}
}

func (d *Dispatcher) followRequest(req *message.Request, res *message.Response, session message.SessionHandle, closeSession *bool) {
	if resolved, err := urlutil.ResolveURL(res.URL, req.URL); err == nil {
		req.URL = resolved
	}
	if req.Headers == nil {
		req.Headers = make(http.Header)
	}
	req.Headers.Set("Referer", res.URL)

	if session != nil && req.Session.Mode == message.SessionNone {
		req.Session = message.UseSession(session)
		*closeSession = false
	}

	d.Enqueue(req)
}

func (d *Dispatcher) runPipes(item interface{}, res *message.Response) {
	var pipeErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				pipeErr = panicToError(r)
			}
		}()
		d.chains.RunPipes(item, res, d.collect)
	}()
	if pipeErr != nil {
		spErr := spidererr.NewPipeError(res.URL, pipeErr)
		spErr.Res = res
		d.report(spErr)
	}
}

func panicToError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
