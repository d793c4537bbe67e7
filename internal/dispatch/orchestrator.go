package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/set-night/dispatchbot/internal/classifier"
	"github.com/set-night/dispatchbot/internal/domain"
	"github.com/set-night/dispatchbot/internal/metrics"
)

// Publisher is the UI side of one turn.
type Publisher interface {
	// ShowUserTurn is called before any network call is made.
	ShowUserTurn(text string, img *domain.ImageRef)
	// PublishAnswer receives the answer as it grows. Values never shrink
	// except when a failed answer is replaced by an error message.
	PublishAnswer(text string)
	// Done is called once the turn is back in Idle.
	Done()
}

type Submission struct {
	Text  string
	Image *domain.ImageRef
}

type Result struct {
	Intent domain.Intent
	Answer string
	// State is where the answer was produced: Streaming, Formatting or Error.
	State  State
	Failed bool
	// Cause is the fulfillment error behind a failed turn.
	Cause error
}

type Option func(*Orchestrator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithObserver registers fn to be called on every state change.
func WithObserver(fn func(conversationID uuid.UUID, s State)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// Orchestrator runs one turn at a time per conversation: classify, fulfill,
// persist.
type Orchestrator struct {
	classifier classifier.Classifier
	handlers   *Handlers
	gateway    domain.HistoryGateway
	metrics    *metrics.Metrics
	observer   func(uuid.UUID, State)
}

func New(c classifier.Classifier, h *Handlers, gw domain.HistoryGateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier: c,
		handlers:   h,
		gateway:    gw,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit runs one turn on view. It returns domain.ErrEmptyInput or
// domain.ErrTurnInFlight without side effects. Otherwise a model turn is
// always produced and persisted exactly once; a persistence failure is
// returned wrapped in domain.ErrPersistence alongside the result.
func (o *Orchestrator) Submit(ctx context.Context, view *View, sub Submission, pub Publisher) (Result, error) {
	text := strings.TrimSpace(sub.Text)
	if text == "" {
		return Result{}, domain.ErrEmptyInput
	}
	if !view.begin() {
		o.metrics.TurnRejected()
		return Result{}, domain.ErrTurnInFlight
	}

	start := time.Now()
	o.metrics.TurnStarted()
	o.observe(view.ID(), Classifying)
	defer o.move(view, Idle)

	pub.ShowUserTurn(text, sub.Image)
	history := view.Turns()

	intent := o.classifier.Classify(ctx, text, history)
	o.move(view, Dispatching)

	res := Result{Intent: intent}
	var err error
	if intent.IsChat() {
		res.State = Streaming
		o.move(view, Streaming)
		res.Answer, err = o.handlers.Chat(ctx, history, domain.ChatInput{Text: text, Image: sub.Image}, func(s string) {
			o.metrics.ChunkReceived()
			pub.PublishAnswer(s)
		})
	} else {
		res.State = Formatting
		o.move(view, Formatting)
		res.Answer, err = o.handlers.Fulfill(ctx, intent)
		if err == nil {
			pub.PublishAnswer(res.Answer)
		}
	}
	if err == nil && strings.TrimSpace(res.Answer) == "" {
		err = domain.ErrEmptyAnswer
	}
	if err != nil {
		slog.Error("turn failed", "conversation_id", view.ID(), "intent", intent.Kind, "error", err)
		o.move(view, Error)
		res.State = Error
		res.Failed = true
		res.Cause = err
		res.Answer = ChatFailureMessage
		pub.PublishAnswer(res.Answer)
	}

	o.move(view, Persisting)
	userTurn := domain.UserTurn(text, withoutInlineData(sub.Image))
	modelTurn := domain.ModelTurn(res.Answer)
	view.appendTurns(userTurn, modelTurn)

	persistErr := o.persist(context.WithoutCancel(ctx), view.ID(), userTurn, modelTurn)

	o.metrics.TurnFinished(string(intent.Kind), res.Failed, time.Since(start))
	o.move(view, Idle)
	pub.Done()

	return res, persistErr
}

// persist issues the append once and never retries it: a retry after a
// partial failure could duplicate turns.
func (o *Orchestrator) persist(ctx context.Context, id uuid.UUID, turns ...domain.Turn) error {
	if err := o.gateway.AppendTurns(ctx, id, turns...); err != nil {
		o.metrics.PersistFailed()
		slog.Error("failed to append turns", "conversation_id", id, "error", err)
		return fmt.Errorf("%w: append: %w", domain.ErrPersistence, err)
	}
	if err := o.gateway.Invalidate(ctx, id); err != nil {
		o.metrics.PersistFailed()
		slog.Error("failed to invalidate conversation view", "conversation_id", id, "error", err)
		return fmt.Errorf("%w: invalidate: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (o *Orchestrator) move(view *View, s State) {
	if view.State() == s {
		return
	}
	view.setState(s)
	o.observe(view.ID(), s)
}

func (o *Orchestrator) observe(id uuid.UUID, s State) {
	if o.observer != nil {
		o.observer(id, s)
	}
}

// The inline bytes are only needed by the chat request; stored turns keep
// the path.
func withoutInlineData(img *domain.ImageRef) *domain.ImageRef {
	if img == nil {
		return nil
	}
	out := *img
	out.InlineData = nil
	return &out
}
