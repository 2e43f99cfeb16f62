package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/devblac/dex-catalog/internal/config"
	"github.com/devblac/dex-catalog/internal/report"
	"github.com/devblac/dex-catalog/internal/storage"
)

// SendLedger records delivery attempts.
type SendLedger interface {
	InsertSend(ctx context.Context, s storage.Send) error
}

// Notifier sends a run summary through one sink when its trigger matches.
type Notifier struct {
	ID     string
	On     string
	Sender Sender
	Ledger SendLedger
	Now    func() time.Time
}

// NewNotifiers builds one notifier per configured sink.
func NewNotifiers(sinks []config.Sink, ledger SendLedger) ([]*Notifier, error) {
	out := make([]*Notifier, 0, len(sinks))
	for _, s := range sinks {
		sender, err := Build(s)
		if err != nil {
			return nil, err
		}
		out = append(out, &Notifier{ID: s.ID, On: s.On, Sender: sender, Ledger: ledger, Now: time.Now})
	}
	return out, nil
}

// ShouldNotify reports whether the trigger matches r. Dry runs never notify.
func (n *Notifier) ShouldNotify(r *report.Report) bool {
	if r.DryRun {
		return false
	}
	if n.On == config.NotifyAlways {
		return true
	}
	return r.Degraded()
}

// Notify sends the summary of r and records the attempt.
func (n *Notifier) Notify(ctx context.Context, r *report.Report) error {
	if !n.ShouldNotify(r) {
		return nil
	}
	code, sendErr := n.Sender.Send(ctx, NewPayload(r))

	status := "sent"
	if sendErr != nil {
		status = "failed"
	}
	if n.Ledger != nil {
		now := time.Now
		if n.Now != nil {
			now = n.Now
		}
		rec := storage.Send{RunID: r.RunID, SinkID: n.ID, Status: status, ResponseCode: code, CreatedAt: now().UTC()}
		if err := n.Ledger.InsertSend(ctx, rec); err != nil && sendErr == nil {
			return fmt.Errorf("sink %s: %w", n.ID, err)
		}
	}
	if sendErr != nil {
		return fmt.Errorf("sink %s: %w", n.ID, sendErr)
	}
	return nil
}
