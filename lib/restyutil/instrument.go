package restyutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentOutput receives the dump of every exchange, ids are unique per instrumented client.
type InstrumentOutput interface {
	Write(id string, contents string)
}

type InstrumentOptions struct {
	// Tracer defaults to otel's global tracer named "resty".
	Tracer trace.Tracer
	// Output, if set, receives every exchange in full.
	Output InstrumentOutput
	// Prefix is prepended to the exchange ids, clients sharing an Output need distinct ones.
	Prefix string
}

type exchangeKeyType int

var exchangeKey exchangeKeyType

type exchange struct {
	id    string
	start time.Time
}

type instrumented struct {
	opts InstrumentOptions
	seq  *uint64
}

// InstrumentClient wraps every request of client in a span and dumps it to opts.Output.
func InstrumentClient(client *resty.Client, opts InstrumentOptions) {
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("resty")
	}
	i := instrumented{opts: opts, seq: new(uint64)}

	client.OnBeforeRequest(i.start)
	client.OnAfterResponse(i.finish)
	client.OnError(i.fail)
}

func (i instrumented) start(_ *resty.Client, req *resty.Request) error {
	ctx, _ := i.opts.Tracer.Start(req.Context(), "http "+req.Method, trace.WithAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.full", req.URL),
	))
	ctx = context.WithValue(ctx, exchangeKey, exchange{
		id:    fmt.Sprintf("%s%d", i.opts.Prefix, atomic.AddUint64(i.seq, 1)),
		start: time.Now(),
	})
	req.SetContext(ctx)
	return nil
}

func (i instrumented) finish(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode()))
	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
	}

	ex, ok := ctx.Value(exchangeKey).(exchange)
	if ok && i.opts.Output != nil {
		i.opts.Output.Write(ex.id, dumpExchange(res, time.Since(ex.start)))
	}
	return nil
}

func (i instrumented) fail(req *resty.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, "request failed")
}
