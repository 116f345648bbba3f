/*
Package monitoring provides Prometheus metrics for uartd.

# Overview

A Metrics value owns a private registry, so several collectors can coexist in
one process (tests build one per case). Every recording method tolerates a
nil receiver.

# Metrics

- HTTP request count and latency
- Session lifecycle: active, created, rejections by reason
- Terminal size detection outcome and duration
- Bytes read, written and dropped by write clamping
- Device receive overruns, I/O errors and open devices
- WebSocket streams and events

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(metrics)))

	metrics.RecordWrite(n, dropped)
*/
package monitoring
