package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	logpkg "github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/telemetry"
)

// DefaultGatewayTimeout bounds a single remote call
const DefaultGatewayTimeout = 15 * time.Second

// Mutation describes one optimistic change. Snapshot captures the state to
// return to, Apply changes the store at once, Remote persists the change,
// and Restore puts the snapshot back if Remote fails.
type Mutation[T any] struct {
	Name     string
	Snapshot func() (T, error)
	Apply    func(T)
	Remote   func(ctx context.Context) error
	Restore  func(T)

	// OnSuccess runs after Remote succeeds; it may return a notification.
	OnSuccess func() *Notification
	// FailureMessage is shown when Remote fails. Defaults to a generic message.
	FailureMessage string
}

// Pending is the outcome of a mutation whose remote call is in flight
type Pending struct {
	done chan struct{}
	err  error
}

// Wait blocks until the remote call has finished and its outcome was applied
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}

// Done is closed once the outcome was applied
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Executor runs mutations: local change first, remote call in the
// background, rollback on failure.
type Executor struct {
	notifier Notifier
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewExecutor creates an executor reporting outcomes to notifier
func NewExecutor(notifier Notifier, logger *zap.Logger, timeout time.Duration) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultGatewayTimeout
	}
	return &Executor{notifier: notifier, logger: logger, timeout: timeout, now: time.Now}
}

// Wait blocks until every in-flight remote call has completed
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Run applies m locally and issues its remote call. The remote call is
// detached from ctx's cancellation so a finished HTTP request does not abort
// it; ctx values such as trace spans are kept. A snapshot error aborts
// before anything changes and is returned directly.
func Run[T any](ctx context.Context, e *Executor, m Mutation[T]) (*Pending, error) {
	snapshot, err := m.Snapshot()
	if err != nil {
		return nil, err
	}
	if m.Apply != nil {
		m.Apply(snapshot)
	}

	p := &Pending{done: make(chan struct{})}
	remoteCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(p.done)

		spanCtx, span := telemetry.StartMutation(remoteCtx, m.Name)
		callCtx, cancel := context.WithTimeout(spanCtx, e.timeout)
		defer cancel()

		err := m.Remote(callCtx)
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s timed out after %s: %w", m.Name, e.timeout, err)
		}
		telemetry.EndMutation(span, err)

		if err != nil {
			p.err = err
			if m.Restore != nil {
				m.Restore(snapshot)
			}
			e.logger.Warn("optimistic_mutation_rolled_back",
				zap.String("mutation", m.Name),
				zap.String("error", logpkg.SanitizeError(err)),
			)
			msg := m.FailureMessage
			if msg == "" {
				msg = "Something went wrong, the change was reverted"
			}
			e.notify(Notification{Level: LevelError, Message: msg})
			return
		}

		e.logger.Debug("optimistic_mutation_committed", zap.String("mutation", m.Name))
		if m.OnSuccess != nil {
			if n := m.OnSuccess(); n != nil {
				e.notify(*n)
			}
		}
	}()

	return p, nil
}

func (e *Executor) notify(n Notification) {
	if e.notifier == nil {
		return
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = e.now()
	}
	e.notifier.Notify(n)
}
