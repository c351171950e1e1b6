// Command spidercrawl is an example crawler built on package cobweb: it
// fetches a seed URL, extracts page metadata with internal/parser, follows
// same-host links, and prints a one-line summary per page plus periodic
// stats — adapted from the teacher's cmd/spider/main.go (signal handling,
// periodic stats ticker, CLI arg = seed URL), rewired onto the dispatcher/
// fetcher pool this module actually has instead of the teacher's
// scheduler/frontier.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cobweb-crawl/cobweb"
	"github.com/cobweb-crawl/cobweb/internal/parser"
	"github.com/cobweb-crawl/cobweb/internal/spidererr"
	"github.com/cobweb-crawl/cobweb/internal/urlutil"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: spidercrawl <url>")
		fmt.Println("Example: spidercrawl https://example.com")
		os.Exit(1)
	}
	seedURL := os.Args[1]

	if _, err := urlutil.ExtractHost(seedURL); err != nil {
		log.Fatalf("invalid seed url: %v", err)
	}

	cfg := cobweb.DefaultConfig()
	cfg.Workers = 4
	cfg.DownloadDelay = 250 * time.Millisecond
	cfg.Timeout = 10 * time.Second

	var processed, succeeded, failed int64

	s := cobweb.NewSpider()
	s.Config = cfg
	s.Entry = seedURL

	s.Parse = func(res *cobweb.Response, yield func(item interface{})) error {
		page, err := parser.Parse(res)
		if err != nil {
			return err
		}
		yield(page)

		for _, link := range page.Links {
			if link.NoFollow {
				continue
			}
			resolved, err := urlutil.ResolveURL(res.URL, link.URL)
			if err != nil {
				continue
			}
			if !urlutil.IsSameHost(resolved, seedURL) {
				continue
			}
			yield(cobweb.NewRequest(resolved))
		}
		return nil
	}

	s.Collect = func(item interface{}) {
		atomic.AddInt64(&processed, 1)
		atomic.AddInt64(&succeeded, 1)
		if page, ok := item.(*parser.PageData); ok {
			fmt.Printf("[OK] %s (%d words)\n", page.Title, page.WordCount)
		}
	}
	s.OnError = func(err *spidererr.SpiderError) {
		atomic.AddInt64(&processed, 1)
		atomic.AddInt64(&failed, 1)
		fmt.Printf("[ERROR] %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nreceived interrupt, stopping...")
		cancel()
	}()

	fmt.Printf("Starting crawl of %s\n", seedURL)
	fmt.Printf("  - Workers: %d\n", cfg.Workers)
	fmt.Printf("  - Download delay: %v\n", cfg.DownloadDelay)
	fmt.Println()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("[stats] processed=%d succeeded=%d failed=%d\n",
					atomic.LoadInt64(&processed), atomic.LoadInt64(&succeeded), atomic.LoadInt64(&failed))
			}
		}
	}()

	start := time.Now()
	if err := s.Run(ctx); err != nil {
		log.Fatalf("crawl failed: %v", err)
	}

	fmt.Println("\n========== Crawl Complete ==========")
	fmt.Printf("Processed: %d\n", atomic.LoadInt64(&processed))
	fmt.Printf("Succeeded: %d\n", atomic.LoadInt64(&succeeded))
	fmt.Printf("Failed: %d\n", atomic.LoadInt64(&failed))
	fmt.Printf("Elapsed: %v\n", time.Since(start).Round(time.Millisecond))
}
