package messaging

import (
	"context"
	"log/slog"
)

// MessageHandler processes one inbound employee message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID, displayName, text string) error
}

const msgHandlerError = "⚠️ Something went wrong. Please try again."

// Dispatcher drains the service's response channel and feeds each message to
// the handler. Messages are processed strictly one at a time, in arrival
// order, so concurrent updates from the same chat cannot interleave
// mid-dialogue.
type Dispatcher struct {
	service Service
	handler MessageHandler
	done    chan struct{}
}

// NewDispatcher creates a Dispatcher over the given service and handler.
func NewDispatcher(service Service, handler MessageHandler) *Dispatcher {
	return &Dispatcher{
		service: service,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start launches the dispatch loop. It returns immediately; the loop runs
// until the context is cancelled or the response channel closes.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Done is closed when the dispatch loop has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	slog.Info("Dispatcher started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatcher stopping due to context cancellation")
			return
		case resp, ok := <-d.service.Responses():
			if !ok {
				slog.Info("Dispatcher stopping: response channel closed")
				return
			}
			d.dispatch(ctx, resp.From, resp.DisplayName, resp.Body)
		}
	}
}

// dispatch runs the handler for one message. Handler errors are reported to
// the user with a generic message; the loop itself never dies on them.
func (d *Dispatcher) dispatch(ctx context.Context, from, displayName, body string) {
	if err := d.handler.HandleMessage(ctx, from, displayName, body); err != nil {
		slog.Error("Dispatcher handler error", "error", err, "from", from)
		if sendErr := d.service.SendMessage(ctx, from, msgHandlerError); sendErr != nil {
			slog.Error("Dispatcher failed to send error notice", "error", sendErr, "from", from)
		}
	}
}
