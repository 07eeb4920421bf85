package content

import (
	"context"
	"time"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

const (
	DefaultPollInterval   = 30 * time.Second
	DefaultStaleThreshold = 30 * time.Minute

	maxBackoff = 5 * time.Minute
)

type pollOutcome int

const (
	pollUnchanged pollOutcome = iota
	pollSwapped
	pollSSMError        // could not read the published hash; back off
	pollLoadError       // hash read, document fetch or verify failed
	pollValidationError // document loaded but rejected
)

// errorLabel is the content_watcher_errors_total type label.
func (o pollOutcome) errorLabel() string {
	switch o {
	case pollSSMError:
		return "ssm"
	case pollLoadError:
		return "load"
	case pollValidationError:
		return "validation"
	}
	return ""
}

// DocumentFetcher is the part of Loader the watcher uses.
type DocumentFetcher interface {
	FetchCurrentHash(ctx context.Context) (string, error)
	LoadHash(ctx context.Context, hash string) (*Snapshot, error)
}

// WatcherMetrics is implemented by *metrics.ServerMetrics.
type WatcherMetrics interface {
	IncWatcherPolls()
	IncWatcherSwaps()
	IncWatcherError(errType string)
	ObserveDocumentLoadDuration(seconds float64)
	SetWatcherLastSuccess(unixSeconds float64)
	SetWatcherStale(stale bool)
}

type nopWatcherMetrics struct{}

func (nopWatcherMetrics) IncWatcherPolls()                    {}
func (nopWatcherMetrics) IncWatcherSwaps()                    {}
func (nopWatcherMetrics) IncWatcherError(string)              {}
func (nopWatcherMetrics) ObserveDocumentLoadDuration(float64) {}
func (nopWatcherMetrics) SetWatcherLastSuccess(float64)       {}
func (nopWatcherMetrics) SetWatcherStale(bool)                {}

type WatcherOptions struct {
	Logger  log.Logger
	Loader  DocumentFetcher
	Manager *Manager
	Metrics WatcherMetrics

	// PollInterval is the normal SSM polling cadence. default: 30s
	PollInterval time.Duration
	// StaleThreshold is how long SSM may fail before content is reported
	// stale. default: 30m
	StaleThreshold time.Duration

	// Validation gates swaps. nil uses DefaultValidationOptions().
	Validation *ValidationOptions

	// OnSwap runs on the poll goroutine after a new snapshot is active.
	// A panic in it is logged and swallowed.
	OnSwap func(*Snapshot)
}

// Watcher polls the published document hash and swaps new documents into
// the Manager. It is not safe for concurrent use; run one Run loop.
type Watcher struct {
	opts       WatcherOptions
	log        log.Logger
	metrics    WatcherMetrics
	validation ValidationOptions
	now        func() time.Time

	currentHash string
	errStreak   int
	lastSuccess time.Time
	stale       bool

	polls, swaps int64
}

func NewWatcher(opts WatcherOptions) *Watcher {
	w := &Watcher{
		opts:       opts,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		validation: DefaultValidationOptions(),
		now:        time.Now,
	}
	if w.log == nil {
		w.log = log.Nop()
	}
	if w.metrics == nil {
		w.metrics = nopWatcherMetrics{}
	}
	if w.opts.PollInterval <= 0 {
		w.opts.PollInterval = DefaultPollInterval
	}
	if w.opts.StaleThreshold <= 0 {
		w.opts.StaleThreshold = DefaultStaleThreshold
	}
	if opts.Validation != nil {
		w.validation = *opts.Validation
	}
	// the startup load is already active; don't fetch it again
	if snap, ok := opts.Manager.Get(); ok {
		w.currentHash = snap.Meta.Hash
	}
	w.lastSuccess = w.now()
	return w
}

// Run polls until ctx is done and returns ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info(ctx, "content watcher starting",
		"poll_interval", w.opts.PollInterval.String(),
		"current_hash", truncHash(w.currentHash),
	)

	timer := time.NewTimer(w.opts.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info(ctx, "content watcher stopping", "polls", w.polls, "swaps", w.swaps)
			return ctx.Err()
		case <-timer.C:
			outcome := w.checkOnce(ctx)
			w.trackStaleness(ctx, outcome)
			timer.Reset(w.nextDelay(ctx, outcome))
		}
	}
}

// nextDelay doubles the interval per consecutive SSM failure, capped at
// maxBackoff. Any other outcome restores the normal cadence.
func (w *Watcher) nextDelay(ctx context.Context, outcome pollOutcome) time.Duration {
	if outcome != pollSSMError {
		if w.errStreak > 0 {
			w.log.Info(ctx, "content watcher recovered", "failed_polls", w.errStreak)
			w.errStreak = 0
		}
		return w.opts.PollInterval
	}
	w.errStreak++
	d := backoff(w.opts.PollInterval, w.errStreak)
	w.log.Warn(ctx, "content watcher backing off", "failed_polls", w.errStreak, "next_poll_in", d.String())
	return d
}

func backoff(interval time.Duration, streak int) time.Duration {
	d := interval
	for i := 0; i < streak && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

// trackStaleness flags content as stale once SSM has been unreachable for
// longer than the threshold. The error is logged once per stale period.
func (w *Watcher) trackStaleness(ctx context.Context, outcome pollOutcome) {
	if outcome != pollSSMError {
		if w.stale {
			w.stale = false
			w.metrics.SetWatcherStale(false)
			w.log.Info(ctx, "content watcher no longer stale")
		}
		return
	}
	since := w.now().Sub(w.lastSuccess)
	if w.stale || since <= w.opts.StaleThreshold {
		return
	}
	w.stale = true
	w.metrics.SetWatcherStale(true)
	w.log.Error(ctx, xerrors.Newf("no successful SSM poll for %s", since.Truncate(time.Second)),
		"content is stale, serving last verified document")
}

func (w *Watcher) checkOnce(ctx context.Context) pollOutcome {
	w.polls++
	w.metrics.IncWatcherPolls()

	outcome := w.poll(ctx)
	if label := outcome.errorLabel(); label != "" {
		w.metrics.IncWatcherError(label)
	}
	return outcome
}

func (w *Watcher) poll(ctx context.Context) pollOutcome {
	hash, err := w.opts.Loader.FetchCurrentHash(ctx)
	if err != nil {
		w.log.Error(ctx, err, "content watcher: SSM poll failed")
		return pollSSMError
	}
	w.lastSuccess = w.now()
	w.metrics.SetWatcherLastSuccess(float64(w.lastSuccess.Unix()))

	if cryptoutil.HashEqual(hash, w.currentHash) {
		return pollUnchanged
	}
	w.log.Info(ctx, "content watcher: new document published",
		"current_hash", truncHash(w.currentHash), "new_hash", truncHash(hash))

	start := time.Now()
	snap, err := w.opts.Loader.LoadHash(ctx, hash)
	w.metrics.ObserveDocumentLoadDuration(time.Since(start).Seconds())
	if err != nil {
		w.log.Error(ctx, err, "content watcher: load failed", "hash", truncHash(hash))
		return pollLoadError
	}

	if err := ValidateSnapshot(snap, w.validation); err != nil {
		w.log.Error(ctx, err, "content watcher: document rejected, keeping current content",
			"rejected_hash", truncHash(hash), "current_hash", truncHash(w.currentHash))
		return pollValidationError
	}

	w.opts.Manager.Set(*snap)
	previous := w.currentHash
	w.currentHash = hash
	w.swaps++
	w.metrics.IncWatcherSwaps()

	active, _ := w.opts.Manager.Get()
	posts, members, groups := active.Counts()
	w.log.Info(ctx, "content watcher: document swapped",
		"previous_hash", truncHash(previous),
		"hash", truncHash(hash),
		"version", active.Meta.Version,
		"posts", posts, "members", members, "groups", groups,
	)
	w.notify(ctx, active)
	return pollSwapped
}

func (w *Watcher) notify(ctx context.Context, snap *Snapshot) {
	if w.opts.OnSwap == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error(ctx, xerrors.Newf("OnSwap panic: %v", r), "content watcher: swap callback panicked",
				"hash", truncHash(snap.Meta.Hash))
		}
	}()
	w.opts.OnSwap(snap)
}

// truncHash shortens a digest for log fields.
func truncHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
