// Package resttest provides test doubles for code built on restclient.
//
// ScriptedTransport replaces the HTTP transport with a deterministic script
// of responses and failures, played back in order:
//
//	transport := resttest.NewScriptedTransport().
//		Fail(restclient.NewNoConnectivity("connection failed", nil)).
//		RespondJSON(200, user)
//
//	client := restclient.NewBuilder("https://api.example.com").
//		WithTransport(transport).
//		WithRetry(restclient.RetryPolicy{MaxAttempts: 2}).
//		MustBuild()
//
// Recorder is a chain stage that records traversal order. Fork creates
// sibling stages sharing one event log, so a test can assert how a whole
// chain interleaves:
//
//	outer := resttest.NewRecorder("outer")
//	inner := outer.Fork("inner")
//	// wire [outer, stageUnderTest, inner], run a call, then:
//	// outer.Events() == ["outer:request", "inner:request",
//	//                    "inner:response", "outer:response"]
package resttest
