// Package requestlog captures the history of intercepted requests so tests
// can inspect what was sent, which interceptor answered it, and what came
// back.
//
// It is distinct from operational logging (log/slog): every request the
// engine settles, whether replayed, passed through, rejected or aborted,
// becomes one Entry in a Store.
//
//	store := requestlog.NewMemoryStore(1000)
//	engine := intercept.New(intercept.WithRequestLog(store))
//	...
//	for _, e := range store.List(&requestlog.Filter{Method: "POST"}) {
//	    fmt.Println(e.Origin, e.Path, e.ResponseStatus)
//	}
//
// This is a leaf package; it imports nothing from the engine.
package requestlog
