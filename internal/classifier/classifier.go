// Package classifier decides which fulfillment path a user turn takes.
//
// Classification never fails: every strategy degrades to a chat intent when
// it cannot produce a confident, complete answer.
package classifier

import (
	"context"

	"github.com/set-night/dispatchbot/internal/domain"
)

type Classifier interface {
	Classify(ctx context.Context, text string, history []domain.Turn) domain.Intent
}

// Chain tries each classifier in order and returns the first non-chat intent.
type Chain []Classifier

func (c Chain) Classify(ctx context.Context, text string, history []domain.Turn) domain.Intent {
	for _, cl := range c {
		if intent := cl.Classify(ctx, text, history); !intent.IsChat() {
			return intent
		}
	}
	return domain.ChatIntent()
}
