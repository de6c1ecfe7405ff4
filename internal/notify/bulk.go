package notify

import (
	"context"

	"invoicedash/internal/core"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds SendBulk when no limit is given.
const DefaultConcurrency = 4

// Result is the outcome of one send in a bulk run.
type Result struct {
	Row       int
	Recipient string
	Err       error
}

// OK reports whether the send succeeded.
func (r Result) OK() bool { return r.Err == nil }

// SendBulk emails every record with at most limit sends in flight. A failed
// send does not stop the others; results follow the order of rows.
func SendBulk(ctx context.Context, m Mailer, rows []core.InvoiceRecord, limit int) []Result {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	results := make([]Result, len(rows))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, r := range rows {
		results[i] = Result{Row: r.Row, Recipient: r.CustomerEmail}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = &core.TransportError{Recipient: r.CustomerEmail, Err: err}
				return nil
			}
			results[i].Err = SendInvoice(ctx, m, r)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed counts the failed results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
