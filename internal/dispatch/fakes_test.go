package dispatch

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/set-night/dispatchbot/internal/domain"
)

type fakeWeather struct {
	report *domain.WeatherReport
	err    error
	calls  atomic.Int32
	got    atomic.Value
}

func (f *fakeWeather) GetWeather(_ context.Context, location string) (*domain.WeatherReport, error) {
	f.calls.Add(1)
	f.got.Store(location)
	if f.err != nil {
		return nil, f.err
	}
	r := *f.report
	return &r, nil
}

type fakeTrains struct {
	trains []domain.Train
	err    error
}

func (f *fakeTrains) GetTrains(context.Context, string, string) ([]domain.Train, error) {
	return f.trains, f.err
}

type fakeNews struct {
	articles []domain.Article
	err      error
	calls    atomic.Int32
}

func (f *fakeNews) GetNews(context.Context, string) ([]domain.Article, error) {
	f.calls.Add(1)
	return f.articles, f.err
}

type fakeChat struct {
	chunks   []string
	err      error
	startErr error
	// release, when set, blocks the stream until closed.
	release chan struct{}

	mu      sync.Mutex
	history []domain.Turn
	inputs  []domain.ChatInput
}

func (f *fakeChat) StartSession(_ context.Context, history []domain.Turn) (domain.ChatSession, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.mu.Lock()
	f.history = history
	f.mu.Unlock()
	return f, nil
}

func (f *fakeChat) SendStreaming(ctx context.Context, input domain.ChatInput) iter.Seq2[string, error] {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()
	return func(yield func(string, error) bool) {
		if f.release != nil {
			select {
			case <-f.release:
			case <-ctx.Done():
				return
			}
		}
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

func (f *fakeChat) Inputs() []domain.ChatInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChatInput(nil), f.inputs...)
}

type fakeGateway struct {
	appendErr     error
	invalidateErr error

	mu          sync.Mutex
	appended    map[uuid.UUID][]domain.Turn
	appendCalls int
	invalidated int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{appended: make(map[uuid.UUID][]domain.Turn)}
}

func (g *fakeGateway) AppendTurns(ctx context.Context, id uuid.UUID, turns ...domain.Turn) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendCalls++
	if g.appendErr != nil {
		return g.appendErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	g.appended[id] = append(g.appended[id], turns...)
	return nil
}

func (g *fakeGateway) Invalidate(context.Context, uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invalidated++
	return g.invalidateErr
}

func (g *fakeGateway) Turns(id uuid.UUID) []domain.Turn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Turn(nil), g.appended[id]...)
}

func (g *fakeGateway) AppendCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.appendCalls
}

type recordingPublisher struct {
	mu        sync.Mutex
	userTurns []string
	answers   []string
	done      int
}

func (p *recordingPublisher) ShowUserTurn(text string, _ *domain.ImageRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userTurns = append(p.userTurns, text)
}

func (p *recordingPublisher) PublishAnswer(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answers = append(p.answers, text)
}

func (p *recordingPublisher) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
}

type fixedClassifier domain.Intent

func (c fixedClassifier) Classify(context.Context, string, []domain.Turn) domain.Intent {
	return domain.Intent(c)
}
