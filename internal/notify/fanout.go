package notify

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Message is one email of a batch.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Failure records a message that could not be delivered.
type Failure struct {
	To  string
	Err error
}

// SendAll delivers every message in parallel. A failed send never cancels the others;
// failures are returned for logging.
func SendAll(ctx context.Context, sender Sender, msgs []Message, limit int) []Failure {
	var (
		mu       sync.Mutex
		failures []Failure
	)

	g := errgroup.Group{}
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, msg := range msgs {
		msg := msg
		g.Go(func() error {
			if err := sender.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
				mu.Lock()
				failures = append(failures, Failure{To: msg.To, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return failures
}
