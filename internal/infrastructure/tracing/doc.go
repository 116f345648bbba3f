/*
Package tracing provides lightweight request tracing for uartd.

Every HTTP request gets a span. Trace context arrives in the X-Trace-ID and
X-Span-ID headers and is echoed back on the response, so a front-end can
correlate its own logs with uartd's. Finished spans are logged through zap by
a single collector goroutine.

# Usage

	tracer := tracing.New("uartd", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	err := tracer.Trace(ctx, "uart.create", func(ctx context.Context, span *tracing.Span) error {
		span.SetTag("label", label)
		return create(ctx)
	})
*/
package tracing
