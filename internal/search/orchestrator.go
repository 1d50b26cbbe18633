// Package search runs the poll-based search workflow against a provider:
// create a data request job, poll it until it completes, fetch the result
// page and turn its items into normalized entries.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"eosearch/internal/auth"
	"eosearch/internal/backoff"
	"eosearch/internal/errdefs"
	"eosearch/internal/logging"
	"eosearch/internal/metadata"
	"eosearch/internal/pathquery"
	"eosearch/internal/query"
	"eosearch/internal/spec"
	"eosearch/internal/telemetry"
	"eosearch/internal/template"
	"eosearch/internal/transform"
	"eosearch/internal/transport"
)

// DefaultResultsEntry is the result page key holding the items.
const DefaultResultsEntry = "content"

// ErrNoNextPage is returned by Next when the last page had no next link.
var ErrNoNextPage = errors.New("eosearch: no next page")

// State is the workflow step an orchestrator is in.
type State string

const (
	StateIdle     State = "idle"
	StateCreating State = "creating"
	StatePolling  State = "polling"
	StateFetching State = "fetching"
	StateDone     State = "done"
)

// Job status values reported by providers.
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// JobHandle identifies a data request job.
type JobHandle string

// Entry is a normalized catalog entry.
type Entry struct {
	Provider    string                `json:"provider"`
	ProductType string                `json:"productType,omitempty"`
	Properties  *metadata.PropertyBag `json:"properties"`

	// Err joins the conversion errors hit while extracting this entry. The
	// affected properties hold NotAvailable.
	Err error `json:"-"`
}

// ID returns the entry's id property, or "" when it has none.
func (e Entry) ID() string {
	if e.Properties == nil {
		return ""
	}
	v, ok := e.Properties.Get("id")
	if !ok || v == nil || v == metadata.NotAvailable {
		return ""
	}
	return transform.Text(v)
}

// Pagination is the cursor left by the last fetched page.
type Pagination struct {
	NextPageURL string
	HasNext     bool
	TotalItems  int
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDoer replaces the HTTP transport.
func WithDoer(d transport.Doer) Option { return func(o *Orchestrator) { o.doer = d } }

// WithAuthenticator replaces the authenticator built from the provider's
// auth section.
func WithAuthenticator(a auth.Authenticator) Option { return func(o *Orchestrator) { o.auth = a } }

// WithRegistry sets the converter registry used to compile mappings.
func WithRegistry(r *transform.Registry) Option { return func(o *Orchestrator) { o.registry = r } }

// WithStrategy replaces the poll delay strategy.
func WithStrategy(s backoff.Strategy) Option { return func(o *Orchestrator) { o.strategy = s } }

// Orchestrator runs searches for one provider. It holds the pagination
// cursor, so it must not be used by concurrent queries; separate instances
// share nothing.
type Orchestrator struct {
	name     string
	cfg      spec.Provider
	doer     transport.Doer
	auth     auth.Authenticator
	registry *transform.Registry
	strategy backoff.Strategy

	formatter    *query.Formatter
	extractors   map[string]*metadata.Extractor
	resultsEntry pathquery.Query
	nextPage     pathquery.Query
	totalItems   pathquery.Query

	state    State
	page     Pagination
	lastType string
}

// New compiles the provider configuration. Every mapping, template and path
// is checked here; errors are ConfigErrors.
func New(name string, cfg spec.Provider, opts ...Option) (*Orchestrator, error) {
	if d := pathquery.Dialect(cfg.Dialect); d != "" && d != pathquery.JSON {
		return nil, &errdefs.ConfigError{Kind: "provider", Input: name, Err: fmt.Errorf("data request search needs json results, got %q", cfg.Dialect)}
	}
	o := &Orchestrator{name: name, cfg: cfg, state: StateIdle}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = transform.Default()
	}
	if o.doer == nil {
		o.doer = transport.NewClient(transport.Options{
			Timeout: cfg.Timeout,
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
		})
	}
	if o.auth == nil {
		o.auth = auth.New(cfg.Auth, o.doer)
	}
	if o.strategy == nil {
		s, err := backoff.New(cfg.Poll.Strategy, cfg.Poll.Interval, cfg.Poll.MaxInterval)
		if err != nil {
			return nil, &errdefs.ConfigError{Kind: "provider", Input: name, Err: err}
		}
		o.strategy = s
	}

	var err error
	if o.formatter, err = query.New(name, cfg, o.registry); err != nil {
		return nil, err
	}
	disc := discoveryOf(cfg.DiscoverMetadata)
	o.extractors = map[string]*metadata.Extractor{}
	types := []string{""}
	for callerType := range cfg.Products {
		types = append(types, callerType)
	}
	for _, callerType := range types {
		ex, err := metadata.NewExtractor(pathquery.JSON, o.formatter.Mappings(callerType), disc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		o.extractors[callerType] = ex
	}

	entry := cfg.ResultsEntry
	if entry == "" {
		entry = DefaultResultsEntry
	}
	if o.resultsEntry, err = compileKey(entry); err != nil {
		return nil, err
	}
	if p := cfg.Pagination.NextPageURLKeyPath; p != "" {
		if o.nextPage, err = compileKey(p); err != nil {
			return nil, err
		}
	}
	if p := cfg.Pagination.TotalItemsNbKeyPath; p != "" {
		if o.totalItems, err = compileKey(p); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func discoveryOf(d spec.Discovery) metadata.Discovery {
	return metadata.Discovery{
		Enabled:   d.AutoDiscovery,
		Pattern:   d.MetadataPattern,
		Path:      d.MetadataPath,
		IDPath:    d.MetadataPathID,
		ValuePath: d.MetadataPathValue,
	}
}

// NewExtractor builds the property extractor a provider uses for results
// of callerType, in the provider's dialect. It serves providers that
// cannot be searched as well.
func NewExtractor(name string, cfg spec.Provider, callerType string, reg *transform.Registry) (*metadata.Extractor, error) {
	if reg == nil {
		reg = transform.Default()
	}
	f, err := query.New(name, cfg, reg)
	if err != nil {
		return nil, err
	}
	dialect := pathquery.Dialect(cfg.Dialect)
	if dialect == "" {
		dialect = pathquery.JSON
	}
	return metadata.NewExtractor(dialect, f.Mappings(callerType), discoveryOf(cfg.DiscoverMetadata))
}

// compileKey accepts a JSONPath or a bare top level key.
func compileKey(s string) (pathquery.Query, error) {
	if !pathquery.IsJSONPath(s) {
		s = "$." + s
	}
	return pathquery.Compile(pathquery.JSON, s)
}

// Name is the provider name.
func (o *Orchestrator) Name() string { return o.name }

// State reports the current workflow step.
func (o *Orchestrator) State() State { return o.state }

// Pagination returns the cursor left by the last fetched page.
func (o *Orchestrator) Pagination() Pagination { return o.page }

// Clear forgets the pagination cursor.
func (o *Orchestrator) Clear() { o.page = Pagination{} }

// Query runs one search: it creates the job, polls it until it completes
// and converts the first result page. It returns the entries and the total
// number of items the provider reports.
func (o *Orchestrator) Query(ctx context.Context, args map[string]any) (entries []Entry, total int, err error) {
	start := time.Now()
	log := logging.With("provider", o.name, "query_id", uuid.NewString())
	defer func() {
		telemetry.ObserveQuery(o.name, start)
		if err != nil {
			var jf *errdefs.JobFailedError
			outcome := telemetry.OutcomeError
			if errors.As(err, &jf) {
				outcome = telemetry.OutcomeFailed
			}
			telemetry.JobDone(o.name, outcome)
			log.Error("search failed", "state", o.state, "err", err)
			return
		}
		telemetry.JobDone(o.name, telemetry.OutcomeCompleted)
	}()

	callerType, _ := args[query.ProductTypeKey].(string)
	providerType, _ := o.formatter.ProductType(callerType)
	o.lastType = callerType

	o.transition(log, StateCreating)
	job, err := o.createJob(ctx, log, providerType, args)
	if err != nil {
		return nil, 0, fmt.Errorf("create job: %w", err)
	}

	o.transition(log, StatePolling, "job", job)
	if err := o.waitJob(ctx, log, job); err != nil {
		return nil, 0, fmt.Errorf("poll job %s: %w", job, err)
	}

	o.transition(log, StateFetching, "job", job)
	url, err := o.jobURL(o.cfg.ResultURL, job, false)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch result: %w", err)
	}
	entries, total, err = o.fetch(ctx, log, url, callerType)
	if err != nil {
		return nil, 0, err
	}
	o.transition(log, StateDone, "entries", len(entries), "total", total)
	return entries, total, nil
}

// Next fetches the page the last result pointed at, for the product type of
// the last Query.
func (o *Orchestrator) Next(ctx context.Context) ([]Entry, int, error) {
	if !o.page.HasNext {
		return nil, 0, ErrNoNextPage
	}
	log := logging.With("provider", o.name, "query_id", uuid.NewString())
	o.transition(log, StateFetching, "url", o.page.NextPageURL)
	entries, total, err := o.fetch(ctx, log, o.page.NextPageURL, o.lastType)
	if err != nil {
		return nil, 0, err
	}
	o.transition(log, StateDone, "entries", len(entries), "total", total)
	return entries, total, nil
}

func (o *Orchestrator) transition(log *slog.Logger, s State, args ...any) {
	o.state = s
	log.Info("search "+string(s), args...)
}

func (o *Orchestrator) createJob(ctx context.Context, log *slog.Logger, providerType string, args map[string]any) (JobHandle, error) {
	headers := o.auth.Headers()
	if o.cfg.MetadataURL != "" {
		url := o.cfg.MetadataURL + providerType
		resp, err := o.doer.Get(ctx, url, headers)
		if err != nil {
			return "", err
		}
		if err := resp.Check("metadata", url); err != nil {
			return "", err
		}
	}

	body, err := o.formatter.Format(providerType, args)
	if err != nil {
		return "", err
	}
	url := o.cfg.DataRequestURL
	resp, err := o.doer.Post(ctx, url, body, headers)
	if err != nil {
		return "", err
	}
	if err := resp.Check("data request", url); err != nil {
		return "", err
	}
	var created struct {
		JobID any `json:"jobId"`
	}
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return "", &errdefs.TransportError{Op: "data request", URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if created.JobID == nil || transform.Text(created.JobID) == "" {
		return "", &errdefs.TransportError{Op: "data request", URL: url, StatusCode: resp.StatusCode, Err: errors.New("response carries no jobId")}
	}
	job := JobHandle(transform.Text(created.JobID))
	log.Debug("search job created", "job", job, "product_type", providerType)
	return job, nil
}

type jobStatus struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// waitJob polls until the job completes. A 403 triggers one
// re-authentication and keeps polling.
func (o *Orchestrator) waitJob(ctx context.Context, log *slog.Logger, job JobHandle) error {
	if o.cfg.Poll.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Poll.Timeout)
		defer cancel()
	}
	url, err := o.jobURL(o.cfg.StatusURL, job, true)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		if limit := o.cfg.Poll.MaxAttempts; limit > 0 && attempt > limit {
			return fmt.Errorf("%w after %d attempts", errdefs.ErrPollExhausted, limit)
		}
		st, err := o.status(ctx, url)
		if err != nil {
			return err
		}
		switch {
		case st.StatusCode == 403:
			telemetry.Polled(o.name, telemetry.PollForbidden)
			telemetry.Reauthenticated(o.name)
			log.Info("status forbidden, re-authenticating", "job", job)
			if err := o.auth.Authenticate(ctx); err != nil {
				return fmt.Errorf("re-authenticate: %w", err)
			}
		case st.Status == statusFailed:
			telemetry.Polled(o.name, statusFailed)
			return &errdefs.JobFailedError{JobID: string(job), Message: st.Message}
		case st.Status == statusCompleted:
			telemetry.Polled(o.name, statusCompleted)
			return nil
		default:
			telemetry.Polled(o.name, st.Status)
			log.Debug("search job pending", "job", job, "status", st.Status, "attempt", attempt)
		}

		if err := sleep(ctx, o.strategy.Delay(attempt)); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) status(ctx context.Context, url string) (jobStatus, error) {
	var st jobStatus
	resp, err := o.doer.Get(ctx, url, o.auth.Headers())
	if err != nil {
		return st, err
	}
	if resp.StatusCode == 403 {
		st.StatusCode = 403
		return st, nil
	}
	if err := resp.Check("status", url); err != nil {
		return st, err
	}
	if err := json.Unmarshal(resp.Body, &st); err != nil {
		return st, &errdefs.TransportError{Op: "status", URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode status: %w", err)}
	}
	return st, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// jobURL fills "{jobId}" in raw. Without the placeholder the id is appended
// when appendID is set.
func (o *Orchestrator) jobURL(raw string, job JobHandle, appendID bool) (string, error) {
	if !strings.Contains(raw, "{jobId}") {
		if appendID {
			return raw + string(job), nil
		}
		return raw, nil
	}
	return template.Format(raw, map[string]any{"jobId": string(job)})
}

// fetch reads one result page, updates the cursor and converts the items.
func (o *Orchestrator) fetch(ctx context.Context, log *slog.Logger, url, callerType string) ([]Entry, int, error) {
	resp, err := o.doer.Get(ctx, url, o.auth.Headers())
	if err != nil {
		return nil, 0, fmt.Errorf("fetch result: %w", err)
	}
	if err := resp.Check("result", url); err != nil {
		return nil, 0, fmt.Errorf("fetch result: %w", err)
	}
	doc, err := pathquery.DecodeJSONBytes(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch result: %w", err)
	}
	o.updateCursor(log, doc)

	entries, err := o.convert(log, doc, callerType)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch result: %w", err)
	}
	total := len(entries)
	if o.totalItems != nil {
		v, err := o.totalItems.Resolve(doc)
		switch {
		case errors.Is(err, errdefs.ErrNotFound):
			log.Debug("total items not reported", "path", o.totalItems.String())
		case err != nil:
			return nil, 0, fmt.Errorf("fetch result: total items: %w", err)
		default:
			n, err := strconv.Atoi(transform.Text(v))
			if err != nil {
				return nil, 0, fmt.Errorf("fetch result: total items %v: %w", v, err)
			}
			total = n
		}
	}
	o.page.TotalItems = total
	telemetry.EntriesProduced(o.name, len(entries))
	return entries, total, nil
}

// updateCursor stores the next page link when a path for it is configured.
func (o *Orchestrator) updateCursor(log *slog.Logger, doc *pathquery.Document) {
	if o.nextPage == nil {
		return
	}
	v, err := o.nextPage.Resolve(doc)
	if err != nil || v == nil || transform.Text(v) == "" {
		o.page.NextPageURL, o.page.HasNext = "", false
		log.Debug("next page url could not be collected")
		return
	}
	o.page.NextPageURL, o.page.HasNext = transform.Text(v), true
	log.Debug("next page url collected")
}

func (o *Orchestrator) convert(log *slog.Logger, doc *pathquery.Document, callerType string) ([]Entry, error) {
	raw, err := o.resultsEntry.Resolve(doc)
	if err != nil {
		return nil, fmt.Errorf("results entry %s: %w", o.resultsEntry, err)
	}
	items, ok := raw.([]any)
	if !ok {
		items = []any{raw}
	}
	ex, ok := o.extractors[callerType]
	if !ok {
		ex = o.extractors[""]
	}
	defaults := o.cfg.ProductTypeConfig[callerType]

	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		sub, err := doc.Sub(item)
		if err != nil {
			return nil, err
		}
		bag, err := ex.Extract(sub, defaults)
		if err != nil {
			countConversionErrors(err)
			log.Warn("entry converted with errors", "index", i, "err", err)
		}
		entries = append(entries, Entry{Provider: o.name, ProductType: callerType, Properties: bag, Err: err})
	}
	return entries, nil
}

func countConversionErrors(err error) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			countConversionErrors(e)
		}
		return
	}
	var ce *errdefs.ConversionError
	if errors.As(err, &ce) {
		telemetry.ConversionFailed(ce.Converter)
	}
}
