// Package cobweb implements the core of a lightweight web-crawling
// framework: a bounded fetcher pool draining a delay-aware request queue,
// three ordered hook chains, a single-consumer parse dispatcher, and a
// lifecycle controller that drives a crawl from seed requests to
// completion. Ported in shape from mocy/spider.py's Spider class —
// workers, pre/post-download chains, pipe chain, entry seeding,
// completion-by-counter-equality — expressed with goroutines/channels
// instead of Python threads and queues, the way the teacher's
// cmd/spider/main.go and internal/scheduler wire a worker pool together.
package cobweb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cobweb-crawl/cobweb/internal/dispatcher"
	"github.com/cobweb-crawl/cobweb/internal/hooks"
	"github.com/cobweb-crawl/cobweb/internal/message"
	"github.com/cobweb-crawl/cobweb/internal/queue"
	"github.com/cobweb-crawl/cobweb/internal/ratelimit"
	"github.com/cobweb-crawl/cobweb/internal/retry"
	"github.com/cobweb-crawl/cobweb/internal/spidererr"
	"github.com/cobweb-crawl/cobweb/internal/spiderconfig"
	"github.com/cobweb-crawl/cobweb/internal/spiderlog"
	"github.com/cobweb-crawl/cobweb/internal/transport"
)

// Request and Response are re-exported so application code never imports
// the internal/message package directly.
type Request = message.Request
type Response = message.Response
type ParseFunc = message.ParseFunc

// NewRequest builds a GET request with sane defaults.
func NewRequest(url string) *Request { return message.New(url) }

// Session constructors, re-exported for request.Session assignment.
var (
	NewSession      = message.NewSession
	SessionWithAttr = message.SessionWithAttrs
)

// Entry is anything start() accepts as a seed producer: a URL string, a
// *Request, a slice of either, or a func() returning one of the above
// (§4.8 step 4's "parameterless method returning such").
type Entry interface{}

// Config is re-exported so callers configure a Spider without importing
// internal/spiderconfig.
type Config = spiderconfig.Config

// DefaultConfig returns the framework's default knob set (§6).
func DefaultConfig() *Config { return spiderconfig.Default() }

// Spider is one crawl definition: seeds, a default parser, hook chains,
// and lifecycle callbacks.
type Spider struct {
	Config *Config
	Entry  Entry

	// Parse is the default parser used for any response whose request
	// carries no explicit Callback. Required.
	Parse ParseFunc

	// Collect receives every item that reaches the end of the pipe chain
	// (§4.3): the item unchanged when the chain is empty, otherwise the last
	// handler's non-nil result. Defaults to logging the item at INFO,
	// mirroring mocy's `Spider.collect`.
	Collect func(item interface{})

	// OnStart/OnFinish bracket the crawl (§4.8 steps 3 and 8).
	OnStart  func()
	OnFinish func()

	// OnError receives every reported SpiderError (§4.7). Defaults to
	// logging at ERROR.
	OnError func(err *spidererr.SpiderError)

	chains *hooks.Chains
}

// NewSpider returns a Spider with default config and empty hook chains.
func NewSpider() *Spider {
	return &Spider{
		Config: spiderconfig.Default(),
		chains: hooks.NewChains(),
	}
}

// Chains exposes the builder surface for registering hooks (§4.3, §9):
// UseBeforeDownload, UseAfterDownload, UsePipe, UsePipeWithResponse,
// UseAnnotated.
func (s *Spider) Chains() *hooks.Chains {
	if s.chains == nil {
		s.chains = hooks.NewChains()
	}
	return s.chains
}

// UseChains replaces the spider's hook chains outright — the Go analogue
// of a subclass copying and extending its base chain (§4.3): call
// base.Chains().Clone(), append to the clone, then pass it here.
func (s *Spider) UseChains(c *hooks.Chains) {
	s.chains = c
}

func (s *Spider) defaultCollect(item interface{}) {
	if s.Collect != nil {
		s.Collect(item)
		return
	}
	spiderlog.L().Info().Interface("item", item).Msg("collected")
}

func (s *Spider) defaultOnError(err *spidererr.SpiderError) {
	if s.OnError != nil {
		s.OnError(err)
		return
	}
	spiderlog.L().Error().Err(err.Cause).Str("kind", err.Kind.String()).Str("url", err.URL).Msg(err.Msg)
}

// Run executes the full lifecycle (§4.8): validate config, bind hook
// chains, on_start, materialize seeds, launch the fetcher pool, run the
// dispatcher to completion, emit the failed-URL summary, on_finish.
func (s *Spider) Run(ctx context.Context) error {
	if s.Parse == nil {
		return fmt.Errorf("cobweb: Spider.Parse is required")
	}
	if s.Config == nil {
		s.Config = spiderconfig.Default()
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("cobweb: invalid config: %w", err)
	}
	if s.chains == nil {
		s.chains = hooks.NewChains()
	}

	start := time.Now()
	spiderlog.L().Info().Msg("spider is running")

	if s.OnStart != nil {
		s.OnStart()
	}

	q := queue.New(s.Config.MaxRequestQueueSize)
	defer q.Close()

	responses := dispatcher.NewOutcomes()
	tr := transport.New(s.Config)
	defer tr.Close()
	limiter := ratelimit.New(s.Config.DownloadDelay, s.Config.RandomDelay)

	d := dispatcher.New(s.Config, q, responses, s.chains, s.Parse, s.defaultOnError, s.defaultCollect)

	seeds, err := s.materializeSeeds()
	if err != nil {
		return fmt.Errorf("cobweb: materializing entry: %w", err)
	}
	for _, req := range seeds {
		applyDefaultHeaders(req, s.Config.DefaultHeaders)
		d.Enqueue(req)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for i := 0; i < s.Config.Workers; i++ {
		go s.fetchWorker(workerCtx, q, responses, tr, limiter)
	}

	failedURLs := d.Run(ctx)

	spiderlog.L().Info().Dur("elapsed", time.Since(start)).Msg("spider exited")
	logFailedURLs(failedURLs)

	if s.OnFinish != nil {
		s.OnFinish()
	}
	return nil
}

// fetchWorker is one member of the fixed-size fetcher pool (§4.4). It runs
// until its context is cancelled, which Run does when the crawl completes.
func (s *Spider) fetchWorker(ctx context.Context, q *queue.DelayQueue, responses *dispatcher.Outcomes, tr *transport.Transport, limiter *ratelimit.Limiter) {
	for {
		req, ok := q.Get(ctx)
		if !ok {
			return
		}

		limiter.Wait()

		outcome := s.fetchOne(ctx, req, tr)
		responses.Send(outcome)
	}
}

// fetchOne runs the pre-download chain, issues the HTTP call, classifies
// the outcome, and runs the post-download chain for a single request
// (§4.4 steps 2-7). Scoped to its own call so a per-request timeout
// context is always cancelled before returning, rather than accumulating
// across the worker's lifetime.
func (s *Spider) fetchOne(ctx context.Context, req *message.Request, tr *transport.Transport) dispatcher.Outcome {
	processed, err := s.chains.RunBeforeDownload(req)
	if err != nil {
		if errors.Is(err, hooks.ErrDropped) {
			return spidererr.NewRequestIgnored(req.URL, nil)
		}
		return spidererr.NewRequestIgnored(req.URL, err)
	}

	fetchCtx := ctx
	if processed.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, processed.Timeout)
		defer cancel()
	}

	fetchStart := time.Now()
	res, err := tr.Fetch(fetchCtx, processed)
	elapsed := time.Since(fetchStart)
	if err != nil {
		spiderlog.L().Debug().Str("method", processed.Method).Str("url", processed.URL).Dur("elapsed", elapsed).Msg("download failed")
		return retry.WrapDownloadError(processed, err)
	}

	spiderlog.L().Info().Str("method", processed.Method).Str("url", processed.URL).Int("status", res.StatusCode).Dur("elapsed", elapsed).Msg("fetched")

	if statusErr := retry.ClassifyStatus(s.Config, processed, res.StatusCode); statusErr != nil {
		return statusErr
	}

	finalRes, err := s.chains.RunAfterDownload(res)
	if err != nil {
		var redirect *hooks.RedirectError
		if errors.As(err, &redirect) {
			ignored := spidererr.NewResponseIgnored(res.URL, err)
			ignored.NewReq = redirect.Req
			return ignored
		}
		if errors.Is(err, hooks.ErrDropped) {
			return spidererr.NewResponseIgnored(res.URL, nil)
		}
		return spidererr.NewResponseIgnored(res.URL, err)
	}

	return finalRes
}

func applyDefaultHeaders(req *message.Request, defaults map[string]string) {
	if req.Headers == nil {
		req.Headers = make(http.Header)
	}
	for k, v := range defaults {
		if req.Headers.Get(k) == "" {
			req.Headers.Set(k, v)
		}
	}
}

// materializeSeeds resolves Entry's polymorphism (§4.8 step 4, §8 property
// 11): a URL string, a *Request, a slice of either, or a parameterless
// func returning any of those.
func (s *Spider) materializeSeeds() ([]*message.Request, error) {
	return resolveEntry(s.Entry)
}

func resolveEntry(entry Entry) ([]*message.Request, error) {
	switch v := entry.(type) {
	case nil:
		return nil, nil
	case string:
		return []*message.Request{message.New(v)}, nil
	case *message.Request:
		return []*message.Request{v}, nil
	case []string:
		reqs := make([]*message.Request, 0, len(v))
		for _, u := range v {
			reqs = append(reqs, message.New(u))
		}
		return reqs, nil
	case []*message.Request:
		return v, nil
	case []Entry:
		var out []*message.Request
		for _, e := range v {
			sub, err := resolveEntry(e)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case func() Entry:
		return resolveEntry(v())
	case func() (Entry, error):
		produced, err := v()
		if err != nil {
			return nil, err
		}
		return resolveEntry(produced)
	default:
		return nil, fmt.Errorf("cobweb: unsupported entry type %T", entry)
	}
}

func logFailedURLs(urls []string) {
	if len(urls) == 0 {
		return
	}
	plural := ""
	if len(urls) > 1 {
		plural = "s"
	}
	spiderlog.L().Info().Strs("urls", urls).Msgf("cannot download from %d url%s", len(urls), plural)
}
