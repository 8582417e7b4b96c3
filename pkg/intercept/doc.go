// Package intercept is the interception engine: it holds declared
// expectations (Scopes and their Interceptors), matches outbound HTTP
// requests against them, and answers each request with the declared
// response or an error, reproducing the event sequence a real client
// observes.
//
// # Engine
//
// An Engine is the single process-scoped state object. It owns the
// registry, the network policy, the request history and the event loop on
// which every emulated request runs:
//
//	engine := intercept.New()
//	defer engine.Close()
//	engine.Activate()
//
//	engine.Scope("http://example.test").
//	    Get("/users/1").
//	    Times(2).
//	    Reply(200, map[string]any{"id": 1})
//
//	client := &http.Client{Transport: engine.Transport()}
//
// Reset clears every scope between tests; Restore deactivates the engine
// and puts back http.DefaultTransport if InstallDefaultTransport replaced it.
//
// # Requests
//
// Engine.NewRequest returns a *Request, the handle of one emulated call.
// Callers write the body, end it, and receive Events: socket, connect,
// secureConnect, finish, response, data, end, abort, error and close.
// Transport adapts this handle to http.RoundTripper.
//
// # Concurrency
//
// All Request methods and Subscribe callbacks run on the engine's event
// loop. Registration (Scope, Interceptor builders, Reset) is safe from any
// goroutine. An engine built WithLoop never runs the loop itself; the
// caller drives it, which makes event order fully deterministic in tests.
package intercept
