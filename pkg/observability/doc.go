/*
Package observability provides tools for monitoring the editor.

It turns lifecycle hooks into Prometheus metrics and structured log records,
and chains several hook sets so both can be installed on one editor:

	m := observability.NewMetrics(prometheus.DefaultRegisterer)
	ed := goflow.New(goflow.WithLifecycleHooks(observability.Chain(
		m.Hooks(),
		observability.LoggingHooks(logger),
	)))
*/
package observability
