// Package engine is spec.md §6's transport adapter and the resume
// loop that drives a sans-I/O internal/algo.Algo to completion.
package engine

import (
	"context"

	gomysql "github.com/dbbouncer/gomysql"

	"github.com/dbbouncer/gomysql/internal/algo"
)

// Transport is spec.md §6's byte-stream contract consumed by the
// engine: read_some/write_all plus the optional TLS upgrade/teardown
// pair. The engine never interprets a Transport error beyond "the
// operation failed" — classifying it is the caller's job (see
// gomysql.IsFatal).
type Transport interface {
	ReadSome(ctx context.Context, buf []byte) (n int, err error)
	WriteAll(ctx context.Context, data []byte) error
	SSLHandshake(ctx context.Context) error
	SSLShutdown(ctx context.Context) error
}

// Engine drives one internal/algo.Algo at a time over a Transport,
// performing whatever Action each Resume call asks for and feeding the
// outcome back in, per spec.md §9's "dynamic dispatch over the
// transport" design note.
type Engine struct {
	Transport Transport
	Channel   *algo.Channel
}

func New(t Transport, ch *algo.Channel) *Engine {
	return &Engine{Transport: t, Channel: ch}
}

// Run drives a to completion, translating context cancellation into
// client/cancelled without calling the transport again once it fires.
func (e *Engine) Run(ctx context.Context, a algo.Algo) error {
	var (
		lastErr error
		lastN   int
	)
	for {
		if ctx.Err() != nil {
			return gomysql.New(gomysql.KindCancelled, ctx.Err())
		}

		act := a.Resume(lastErr, lastN)
		lastErr, lastN = nil, 0

		switch act.Kind {
		case algo.ActionRead:
			n, err := e.Transport.ReadSome(ctx, e.Channel.ReadBuf())
			lastErr, lastN = err, n

		case algo.ActionWrite:
			err := e.Transport.WriteAll(ctx, act.WriteData)
			lastErr = err

		case algo.ActionSSLHandshake:
			lastErr = e.Transport.SSLHandshake(ctx)

		case algo.ActionSSLShutdown:
			lastErr = e.Transport.SSLShutdown(ctx)

		case algo.ActionDone:
			return act.Err

		default:
			return gomysql.Newf(gomysql.KindClientError, "engine: unknown action kind %d", act.Kind)
		}
	}
}
