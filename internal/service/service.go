// Package service runs ledger operations together with their side effects:
// the receipt journal, event publishing, supply points and metrics.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/ledger"
	"solana-token-ledger/internal/logger"
	"solana-token-ledger/internal/messaging"
	"solana-token-ledger/internal/observability"
	"solana-token-ledger/internal/replay"
	"solana-token-ledger/internal/storage"
)

// ErrJournal is returned when an operation's receipt could not be journaled.
// The operation then has no effect, and retrying it with the same nonce is safe.
var ErrJournal = errors.New("journal write failed")

const (
	defaultPoolSize     = 8
	defaultQueueSize    = 1024
	defaultJournalRetry = 5 * time.Second
	publishTimeout      = 5 * time.Second
)

// Options configures a Service.
type Options struct {
	Journal      storage.ReceiptStore          // required
	Points       storage.SupplyTimeseriesStore // optional
	Stream       *messaging.Broadcaster        // optional, fed synchronously
	Publishers   map[string]messaging.Publisher
	Metrics      *observability.Metrics // nil: observability.Default()
	PoolSize     int
	QueueSize    int
	JournalRetry time.Duration
}

// Service wraps a ledger with journaling and post-commit side effects.
type Service struct {
	ledger       *ledger.Ledger
	journal      storage.ReceiptStore
	projection   *replay.SupplyProjection
	stream       *messaging.Broadcaster
	publishers   map[string]messaging.Publisher
	metrics      *observability.Metrics
	pool         pond.Pool
	journalRetry time.Duration

	// fresh holds ids of receipts journaled by this process and not yet
	// dispatched; recalled receipts are not in it.
	fresh sync.Map

	// fenced is a receipt whose journal write could not be confirmed either
	// way. No operation commits until it is settled.
	fenced  atomic.Pointer[domain.Receipt]
	fenceMu sync.Mutex
}

// New creates a service around l.
func New(l *ledger.Ledger, opts Options) *Service {
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.JournalRetry <= 0 {
		opts.JournalRetry = defaultJournalRetry
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.Default()
	}

	s := &Service{
		ledger:       l,
		journal:      opts.Journal,
		stream:       opts.Stream,
		publishers:   opts.Publishers,
		metrics:      opts.Metrics,
		pool:         pond.NewPool(opts.PoolSize, pond.WithQueueSize(opts.QueueSize)),
		journalRetry: opts.JournalRetry,
	}
	if opts.Points != nil {
		// live points leave the checkpoint alone; Backfill owns it
		s.projection = &replay.SupplyProjection{Points: opts.Points}
	}
	l.SetCommitHook(s.journalReceipt)
	return s
}

// Ledger returns the underlying ledger.
func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

// Close waits for queued side effects and closes the publishers.
func (s *Service) Close() {
	s.pool.StopAndWait()
	for _, p := range s.publishers {
		p.Close()
	}
	logger.Info("Service side-effect pool stopped",
		zap.Uint64("submitted", s.pool.SubmittedTasks()),
		zap.Uint64("failed", s.pool.FailedTasks()))
}

// run executes op and schedules the side effects of a new receipt. The
// receipt is journaled by the commit hook before the ledger applies it.
func (s *Service) run(ctx context.Context, kind domain.OpKind, op func() (*domain.Receipt, error)) (*domain.Receipt, error) {
	start := time.Now()
	if err := s.resolveFence(ctx); err != nil {
		s.metrics.RecordOperation(string(kind), "journal_error", time.Since(start).Seconds())
		return nil, err
	}

	r, err := op()
	if err != nil {
		if errors.Is(err, ErrJournal) {
			s.metrics.RecordOperation(string(kind), "journal_error", time.Since(start).Seconds())
			logger.ErrorCtx(ctx, err, zap.String("message", "Operation aborted, receipt not journaled"), zap.String("kind", string(kind)))
			return nil, err
		}
		s.metrics.RecordOperation(string(kind), resultCode(err), time.Since(start).Seconds())
		logger.DebugCtx(ctx, "Ledger operation rejected", zap.String("kind", string(kind)), zap.Error(err))
		return nil, err
	}

	s.metrics.RecordOperation(string(kind), "ok", time.Since(start).Seconds())

	// an associated account that already existed commits nothing, and a
	// repeated nonce returns a receipt that was dispatched the first time
	if _, ok := s.fresh.LoadAndDelete(r.ID); !ok {
		return r, nil
	}
	s.dispatch(r)

	logger.DebugCtx(ctx, "Ledger operation committed",
		zap.String("kind", string(kind)),
		zap.Uint64("seq", r.Seq),
		zap.String("mint", r.Mint.String()),
		zap.Uint64("amount", r.Amount))
	return r, nil
}

// journalReceipt is the ledger commit hook. It runs with the receipt's
// records locked, so a nil return means the receipt is durable before any
// dependent operation can commit. Writes are detached from the request
// context.
func (s *Service) journalReceipt(r *domain.Receipt) error {
	if f := s.fenced.Load(); f != nil {
		return fmt.Errorf("%w: seq %d: journal state of seq %d unresolved", ErrJournal, r.Seq, f.Seq)
	}

	err := s.persist(r)
	s.metrics.RecordJournalWrite(err)
	if err != nil {
		return fmt.Errorf("%w: seq %d: %v", ErrJournal, r.Seq, err)
	}

	s.fresh.Store(r.ID, struct{}{})
	s.metrics.RecordCommit(r.Seq, r.Mint.String(), r.SupplyAfter, r.Kind.ChangesSupply())
	return nil
}

// persist writes r to the journal, retrying transient failures. When the
// outcome of the last attempt is unknown it reads r back; if that fails too,
// the service is fenced on r.
func (s *Service) persist(r *domain.Receipt) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.journalRetry)
	defer cancel()

	operation := func() error {
		err := s.journal.Insert(ctx, r)
		if errors.Is(err, storage.ErrDuplicateKey) || errors.Is(err, storage.ErrInvalidInput) {
			return backoff.Permanent(err)
		}
		return err
	}

	var attempts int
	notify := func(err error, next time.Duration) {
		attempts++
		logger.Warn("Journal write failed, retrying",
			zap.Error(err),
			zap.Uint64("seq", r.Seq),
			zap.Int("attempt", attempts),
			zap.Duration("next_retry_in", next))
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(s.journalBackOff(), ctx), notify)
	if err == nil || errors.Is(err, storage.ErrInvalidInput) {
		return err
	}

	// a failed or duplicate insert may still have stored r
	landed, lerr := s.landed(r, s.journalBackOff())
	switch {
	case lerr != nil:
		s.fenced.CompareAndSwap(nil, r)
		logger.Error(lerr,
			zap.String("message", "Journal outcome unknown, refusing new operations"),
			zap.Uint64("seq", r.Seq),
			zap.String("id", r.ID))
		return err
	case landed:
		return nil
	default:
		return err
	}
}

// landed reports whether r is in the journal.
func (s *Service) landed(r *domain.Receipt, b backoff.BackOff) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.journalRetry)
	defer cancel()

	var found bool
	err := backoff.Retry(func() error {
		_, err := s.journal.GetByID(ctx, r.ID)
		switch {
		case err == nil:
			found = true
			return nil
		case errors.Is(err, storage.ErrNotFound):
			return nil
		default:
			return err
		}
	}, backoff.WithContext(b, ctx))
	return found, err
}

// resolveFence settles the fenced receipt, if any. A receipt found in the
// journal is applied to the ledger; one that never landed is dropped.
func (s *Service) resolveFence(ctx context.Context) error {
	if s.fenced.Load() == nil {
		return nil
	}
	s.fenceMu.Lock()
	defer s.fenceMu.Unlock()

	r := s.fenced.Load()
	if r == nil {
		return nil
	}

	landed, err := s.landed(r, &backoff.StopBackOff{})
	if err != nil {
		return fmt.Errorf("%w: journal state of seq %d unresolved: %v", ErrJournal, r.Seq, err)
	}
	if landed {
		if _, err := s.ledger.Apply(r); err != nil {
			logger.ErrorCtx(ctx, err,
				zap.String("message", "Journaled receipt cannot be applied, restart to rebuild"),
				zap.Uint64("seq", r.Seq))
			return fmt.Errorf("%w: apply journaled seq %d: %v", ErrJournal, r.Seq, err)
		}
		s.metrics.RecordCommit(r.Seq, r.Mint.String(), r.SupplyAfter, r.Kind.ChangesSupply())
		s.dispatch(r)
	}

	s.fenced.Store(nil)
	logger.InfoCtx(ctx, "Journal fence lifted", zap.Uint64("seq", r.Seq), zap.Bool("applied", landed))
	return nil
}

func (s *Service) journalBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = s.journalRetry
	return b
}

// dispatch feeds the websocket stream inline and queues the slower sinks.
func (s *Service) dispatch(r *domain.Receipt) {
	if s.stream != nil {
		_ = s.stream.Publish(context.Background(), r)
		s.metrics.RecordPublished("ws")
	}

	for name, p := range s.publishers {
		s.pool.SubmitErr(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := p.Publish(ctx, r); err != nil {
				s.metrics.RecordSideEffectError(name)
				logger.Error(err, zap.String("sink", name), zap.Uint64("seq", r.Seq))
				return err
			}
			s.metrics.RecordPublished(name)
			return nil
		})
	}

	if s.projection != nil && r.Kind.ChangesSupply() {
		s.pool.SubmitErr(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := s.projection.OnReceipt(ctx, r); err != nil {
				s.metrics.SupplyPointErrors.Inc()
				logger.Error(err, zap.String("sink", "supply_timeseries"), zap.Uint64("seq", r.Seq))
				return err
			}
			return nil
		})
	}
}

func resultCode(err error) string {
	if code := ledger.Code(err); code != "" {
		return code
	}
	return "error"
}
