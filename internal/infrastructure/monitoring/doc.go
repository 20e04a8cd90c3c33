/*
Package monitoring provides metrics collection for the proxy.

# Overview

Prometheus metrics live on a private registry owned by Metrics, covering HTTP
traffic, endpoint instantiation, the confirmation mailbox, browser bridge
round trips, forwarded traffic and live sessions.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "Screenshot")
	// ... wait for the browser ...
	timer.Stop("ok")
*/
package monitoring
