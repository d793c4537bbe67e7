package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/dispatchbot/internal/classifier"
	"github.com/set-night/dispatchbot/internal/domain"
	"github.com/set-night/dispatchbot/internal/metrics"
)

type rig struct {
	weather *fakeWeather
	news    *fakeNews
	chat    *fakeChat
	gateway *fakeGateway
	view    *View
}

func newRig() *rig {
	return &rig{
		weather: &fakeWeather{report: mannheim()},
		news:    &fakeNews{},
		chat:    &fakeChat{chunks: []string{"Hello", " there"}},
		gateway: newFakeGateway(),
		view: NewView(domain.Conversation{
			ID:    uuid.New(),
			Turns: []domain.Turn{domain.UserTurn("earlier", nil), domain.ModelTurn("reply")},
		}),
	}
}

func (r *rig) orchestrator(c classifier.Classifier, opts ...Option) *Orchestrator {
	h := NewHandlers(r.weather, &fakeTrains{}, r.news, r.chat)
	return New(c, h, r.gateway, opts...)
}

func TestSubmitChatTurn(t *testing.T) {
	r := newRig()
	var states []State
	o := r.orchestrator(fixedClassifier(domain.ChatIntent()), WithObserver(func(_ uuid.UUID, s State) {
		states = append(states, s)
	}))
	pub := &recordingPublisher{}

	res, err := o.Submit(context.Background(), r.view, Submission{Text: "  how are you?  "}, pub)

	require.NoError(t, err)
	assert.Equal(t, "Hello there", res.Answer)
	assert.Equal(t, Streaming, res.State)
	assert.False(t, res.Failed)
	assert.Equal(t, []string{"how are you?"}, pub.userTurns)
	assert.Equal(t, []string{"Hello", "Hello there"}, pub.answers)
	assert.Equal(t, 1, pub.done)
	assert.Equal(t, []State{Classifying, Dispatching, Streaming, Persisting, Idle}, states)

	// The session sees the history as it was before this turn.
	assert.Len(t, r.chat.history, 2)
	assert.Equal(t, []domain.Turn{domain.UserTurn("how are you?", nil), domain.ModelTurn("Hello there")},
		r.gateway.Turns(r.view.ID()))
	assert.Len(t, r.view.Turns(), 4)
	assert.Equal(t, Idle, r.view.State())
	assert.Equal(t, 1, r.gateway.invalidated)
}

func TestSubmitDataTurn(t *testing.T) {
	r := newRig()
	o := r.orchestrator(classifier.NewKeyword())
	pub := &recordingPublisher{}

	res, err := o.Submit(context.Background(), r.view, Submission{Text: "What's the weather in Mannheim?"}, pub)

	require.NoError(t, err)
	assert.Equal(t, domain.WeatherIntent("Mannheim"), res.Intent)
	assert.Equal(t, Formatting, res.State)
	for _, want := range []string{"Mannheim", "18°C", "40%", "3 m/s"} {
		assert.Contains(t, res.Answer, want)
	}
	assert.Empty(t, r.chat.Inputs())
	require.Len(t, pub.answers, 1)
	assert.Equal(t, res.Answer, pub.answers[0])
}

func TestSubmitFailedLookupStillPersistsOneModelTurn(t *testing.T) {
	r := newRig()
	r.weather.err = domain.ErrExternalDataUnavailable
	o := r.orchestrator(fixedClassifier(domain.WeatherIntent("Mannheim")))

	res, err := o.Submit(context.Background(), r.view, Submission{Text: "weather mannheim"}, &recordingPublisher{})

	require.NoError(t, err)
	turns := r.gateway.Turns(r.view.ID())
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, domain.RoleModel, turns[1].Role)
	assert.NotEmpty(t, turns[1].Text)
	assert.Equal(t, res.Answer, turns[1].Text)
	assert.Equal(t, 1, r.gateway.AppendCalls())
}

func TestSubmitStreamFailurePersistsErrorMessage(t *testing.T) {
	r := newRig()
	r.chat.err = errors.New("stream reset")
	o := r.orchestrator(fixedClassifier(domain.ChatIntent()))
	pub := &recordingPublisher{}

	res, err := o.Submit(context.Background(), r.view, Submission{Text: "tell me a story"}, pub)

	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, Error, res.State)
	assert.ErrorIs(t, res.Cause, domain.ErrStreamTransport)
	assert.Equal(t, ChatFailureMessage, res.Answer)
	assert.Equal(t, ChatFailureMessage, pub.answers[len(pub.answers)-1])

	turns := r.gateway.Turns(r.view.ID())
	require.Len(t, turns, 2)
	assert.Equal(t, ChatFailureMessage, turns[1].Text)
	assert.Equal(t, Idle, r.view.State())
}

func TestSubmitEmptyStreamIsFailure(t *testing.T) {
	r := newRig()
	r.chat.chunks = []string{"", "  "}
	o := r.orchestrator(fixedClassifier(domain.ChatIntent()))

	res, err := o.Submit(context.Background(), r.view, Submission{Text: "hello?"}, &recordingPublisher{})

	require.NoError(t, err)
	assert.ErrorIs(t, res.Cause, domain.ErrEmptyAnswer)
	assert.Equal(t, ChatFailureMessage, r.gateway.Turns(r.view.ID())[1].Text)
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	r := newRig()
	o := r.orchestrator(fixedClassifier(domain.ChatIntent()))
	pub := &recordingPublisher{}

	_, err := o.Submit(context.Background(), r.view, Submission{Text: " \n\t "}, pub)

	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.Empty(t, pub.userTurns)
	assert.Zero(t, r.gateway.AppendCalls())
	assert.Len(t, r.view.Turns(), 2)
}

func TestSubmitRejectsWhileInFlight(t *testing.T) {
	r := newRig()
	r.chat.release = make(chan struct{})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	o := r.orchestrator(fixedClassifier(domain.ChatIntent()), WithMetrics(m))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := o.Submit(context.Background(), r.view, Submission{Text: "first"}, &recordingPublisher{})
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return r.view.State() == Streaming }, time.Second, 5*time.Millisecond)

	second := &recordingPublisher{}
	_, err := o.Submit(context.Background(), r.view, Submission{Text: "second"}, second)
	assert.ErrorIs(t, err, domain.ErrTurnInFlight)
	assert.Empty(t, second.userTurns)
	assert.Zero(t, second.done)
	assert.Len(t, r.chat.Inputs(), 1)
	assert.Zero(t, r.gateway.AppendCalls())

	close(r.chat.release)
	wg.Wait()

	turns := r.gateway.Turns(r.view.ID())
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].Text)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RejectedTotal))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveTurns))
}

func TestSubmitGateSurvivesForget(t *testing.T) {
	r := newRig()
	r.chat.release = make(chan struct{})
	o := r.orchestrator(fixedClassifier(domain.ChatIntent()))
	views := NewViews()
	id := r.view.ID()
	load := func() (*domain.Conversation, error) { return &domain.Conversation{ID: id}, nil }

	held, err := views.Get(id, load)
	require.NoError(t, err)
	require.True(t, views.Forget(id))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := o.Submit(context.Background(), held, Submission{Text: "first"}, &recordingPublisher{})
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return held.State() == Streaming }, time.Second, 5*time.Millisecond)

	fresh, err := views.Get(id, load)
	require.NoError(t, err)
	assert.Same(t, held, fresh)

	_, err = o.Submit(context.Background(), fresh, Submission{Text: "second"}, &recordingPublisher{})
	assert.ErrorIs(t, err, domain.ErrTurnInFlight)
	assert.Len(t, r.chat.Inputs(), 1)

	close(r.chat.release)
	wg.Wait()
	assert.Len(t, held.Turns(), 2)
}

func TestSubmitModelClassifierAllFalseRoutesToChat(t *testing.T) {
	r := newRig()
	classify := &fakeChat{chunks: []string{"```json\n", `{"weather_query": false, "train_query": false, "news_query": false}`, "\n```"}}
	o := r.orchestrator(classifier.NewModel(classify))

	res, err := o.Submit(context.Background(), r.view, Submission{Text: "Who wrote Faust?"}, &recordingPublisher{})

	require.NoError(t, err)
	assert.True(t, res.Intent.IsChat())
	require.Len(t, r.chat.Inputs(), 1)
	assert.Equal(t, "Who wrote Faust?", r.chat.Inputs()[0].Text)
	assert.Zero(t, r.weather.calls.Load())
}

func TestSubmitPersistenceFailure(t *testing.T) {
	r := newRig()
	r.gateway.appendErr = errors.New("connection refused")
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	o := r.orchestrator(fixedClassifier(domain.ChatIntent()), WithMetrics(m))
	pub := &recordingPublisher{}

	res, err := o.Submit(context.Background(), r.view, Submission{Text: "hi"}, pub)

	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, "Hello there", res.Answer)
	assert.Equal(t, 1, r.gateway.AppendCalls())
	assert.Zero(t, r.gateway.invalidated)
	// The local view keeps the optimistic turns until the next reload.
	assert.Len(t, r.view.Turns(), 4)
	assert.Equal(t, Idle, r.view.State())
	assert.Equal(t, 1, pub.done)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistFailuresTotal))
}

func TestSubmitCancelledRequestStillPersists(t *testing.T) {
	r := newRig()
	r.chat.release = make(chan struct{})
	o := r.orchestrator(fixedClassifier(domain.ChatIntent()))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Result, 1)
	go func() {
		res, _ := o.Submit(ctx, r.view, Submission{Text: "long question"}, &recordingPublisher{})
		done <- res
	}()
	require.Eventually(t, func() bool { return r.view.State() == Streaming }, time.Second, 5*time.Millisecond)
	cancel()

	res := <-done
	assert.True(t, res.Failed)
	assert.ErrorIs(t, res.Cause, context.Canceled)
	turns := r.gateway.Turns(r.view.ID())
	require.Len(t, turns, 2)
	assert.Equal(t, ChatFailureMessage, turns[1].Text)
}

func TestSubmitStripsInlineImageData(t *testing.T) {
	r := newRig()
	o := r.orchestrator(fixedClassifier(domain.ChatIntent()))
	img := &domain.ImageRef{Path: "photos/cat.jpg", MIMEType: "image/jpeg", InlineData: []byte{1, 2, 3}}

	_, err := o.Submit(context.Background(), r.view, Submission{Text: "what is this?", Image: img}, &recordingPublisher{})

	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, r.chat.Inputs()[0].Image.InlineData)
	stored := r.gateway.Turns(r.view.ID())[0].Attachment
	require.NotNil(t, stored)
	assert.Equal(t, "photos/cat.jpg", stored.Path)
	assert.Nil(t, stored.InlineData)
}
