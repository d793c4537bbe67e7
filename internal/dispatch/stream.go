package dispatch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/set-night/dispatchbot/internal/domain"
)

// Aggregate drains a chat stream into one answer. After every chunk the
// whole answer so far is passed to publish, so published values only ever
// grow. The end of the sequence marks completion.
//
// On a stream error the text received so far is returned together with an
// error wrapping domain.ErrStreamTransport.
func Aggregate(ctx context.Context, chunks iter.Seq2[string, error], publish func(string)) (string, error) {
	var buf strings.Builder
	for chunk, err := range chunks {
		if err != nil {
			if !errors.Is(err, domain.ErrStreamTransport) {
				err = fmt.Errorf("%w: %w", domain.ErrStreamTransport, err)
			}
			return buf.String(), err
		}
		if chunk == "" {
			continue
		}
		buf.WriteString(chunk)
		if publish != nil {
			publish(buf.String())
		}
	}

	// Some transports end the sequence quietly on cancellation.
	if err := ctx.Err(); err != nil {
		return buf.String(), fmt.Errorf("%w: %w", domain.ErrStreamTransport, err)
	}
	return buf.String(), nil
}
