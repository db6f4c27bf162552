// Package interceptor provides ready-made chain stages for the REST client:
// credential and header injection, request correlation, response caching,
// client-side rate limiting, logging, metrics and tracing.
//
// Every stage is optional. Wire the ones you need, outermost first, when
// building a client:
//
//	svc, err := restclient.NewBuilder("https://api.example.com").
//		WithStages(
//			interceptor.NewMetrics(nil),
//			interceptor.NewLogging(log),
//			&interceptor.RequestID{TraceContext: true},
//			interceptor.NewBearerAuth(token),
//			interceptor.NewCache(store, 5*time.Minute, log),
//		).
//		Build()
//
// Stages are shared by every call of the client they are wired into and must
// therefore be safe for concurrent use; all stages in this package are.
package interceptor
