package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"eosearch/internal/errdefs"
	"eosearch/internal/logging"
	"eosearch/internal/query"
	"eosearch/internal/search"
	"eosearch/internal/spec"
	"eosearch/sink"
	"eosearch/source/kafka"
)

// DefaultConcurrency bounds how many static searches run at once.
const DefaultConcurrency = 4

var errSink = errors.New("sink")

// Searcher runs searches against one provider. *search.Orchestrator
// implements it.
type Searcher interface {
	Name() string
	Query(ctx context.Context, args map[string]any) ([]search.Entry, int, error)
	Next(ctx context.Context) ([]search.Entry, int, error)
	Pagination() search.Pagination
	Clear()
}

// searcher serialises the searches of one provider; an orchestrator holds
// the cursor of its last query.
type searcher struct {
	mu sync.Mutex
	s  Searcher
}

type Runner struct {
	searchers   map[string]*searcher
	searches    []spec.SearchSpec
	source      kafka.Adapter
	sinks       []sink.Adapter
	concurrency int
	metricsPort int
	closers     []io.Closer

	mu   sync.Mutex
	subs []func(kafka.Checkpoint)
}

func NewRunner() *Runner {
	return &Runner{searchers: map[string]*searcher{}, concurrency: DefaultConcurrency}
}

func (r *Runner) AddSink(s sink.Adapter) { r.sinks = append(r.sinks, s) }
func (r *Runner) SetSource(s kafka.Adapter) { r.source = s }
func (r *Runner) AddSearch(s spec.SearchSpec) { r.searches = append(r.searches, s) }
func (r *Runner) SetConcurrency(n int) { r.concurrency = n }
func (r *Runner) AddSearcher(s Searcher) { r.searchers[s.Name()] = &searcher{s: s} }
func (r *Runner) MetricsPort() int { return r.metricsPort }

// AddCloser registers c to be closed with the runner.
func (r *Runner) AddCloser(c io.Closer) { r.closers = append(r.closers, c) }

// Providers lists the providers searches can be run against.
func (r *Runner) Providers() []string {
	names := make([]string, 0, len(r.searchers))
	for name := range r.searchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Runner) SubscribeAck(fn func(kafka.Checkpoint)) {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

// Ack tells the subscribers that the request read at cp is done.
func (r *Runner) Ack(cp kafka.Checkpoint) {
	r.mu.Lock()
	handlers := append([]func(kafka.Checkpoint){}, r.subs...)
	r.mu.Unlock()

	for _, fn := range handlers {
		fn(cp)
	}
}

/*──────── entry routing ───────*/
func (r *Runner) pushEntries(entries []search.Entry) error {
	for _, e := range entries {
		for _, s := range r.sinks {
			if err := s.Push(e); err != nil {
				return fmt.Errorf("%w: push %s: %w", errSink, e.ID(), err)
			}
		}
	}
	return nil
}

// Search runs s and pushes every entry to the sinks, following next page
// links for up to s.Pages pages. It returns the number of entries pushed.
func (r *Runner) Search(ctx context.Context, s spec.SearchSpec) (int, error) {
	g, ok := r.searchers[s.Provider]
	if !ok {
		return 0, fmt.Errorf("provider %q: %w", s.Provider, errdefs.ErrNotFound)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.s.Clear()

	args := maps.Clone(s.Args)
	if args == nil {
		args = map[string]any{}
	}
	if s.ProductType != "" {
		args[query.ProductTypeKey] = s.ProductType
	}

	entries, _, err := g.s.Query(ctx, args)
	if err != nil {
		return 0, err
	}
	if err := r.pushEntries(entries); err != nil {
		return 0, err
	}
	pushed := len(entries)

	for page := 1; page < max(s.Pages, 1) && g.s.Pagination().HasNext; page++ {
		entries, _, err := g.s.Next(ctx)
		if err != nil {
			return pushed, fmt.Errorf("page %d: %w", page+1, err)
		}
		if err := r.pushEntries(entries); err != nil {
			return pushed, err
		}
		pushed += len(entries)
	}
	return pushed, nil
}

// Run runs the static searches and, when a source is configured, serves
// its requests until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency + 1)
	}

	if r.source != nil {
		g.Go(func() error {
			err := r.source.Run(ctx, r.handleRequest)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	for i, s := range r.searches {
		g.Go(func() error {
			log := logging.With("search", i, "provider", s.Provider)
			n, err := r.Search(ctx, s)
			if err != nil {
				log.Error("search failed", "err", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("search %d (%s): %w", i, s.Provider, err))
				mu.Unlock()
				return nil
			}
			log.Info("search done", "entries", n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// handleRequest runs a streamed request. A request whose search fails is
// still acked; a sink failure stops the source.
func (r *Runner) handleRequest(ctx context.Context, req kafka.Request) error {
	log := logging.With("provider", req.Search.Provider, "topic", req.Checkpoint.Topic,
		"partition", req.Checkpoint.Partition, "offset", req.Checkpoint.Offset)
	n, err := r.Search(ctx, req.Search)
	switch {
	case errors.Is(err, errSink):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		log.Warn("streamed search failed", "err", err)
	default:
		log.Info("streamed search done", "entries", n)
	}
	r.Ack(req.Checkpoint)
	return nil
}

// Close releases the source and the sinks.
func (r *Runner) Close() error {
	var errs []error
	if r.source != nil {
		errs = append(errs, r.source.Close())
	}
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
