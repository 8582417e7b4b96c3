package intercept

import (
	"log/slog"

	"github.com/getmockd/netmock/internal/matching"
)

// matches runs every check of i against req. User predicates that panic
// count as a non-match.
func (i *Interceptor) matches(req *RequestContext, logger *slog.Logger) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			logger.Warn("matcher panicked", "key", i.Key(), "request", req.ID, "panic", p)
			ok = false
		}
	}()

	cfg := i.scope.settings()
	if !i.matchesRoute(req, cfg) {
		return false
	}
	if !matching.MatchHeaders(cfg.reqHeaders, req.Header) || !matching.MatchHeaders(i.reqHeaders, req.Header) {
		logger.Debug("header mismatch", "key", i.Key(), "request", req.ID)
		return false
	}
	if !matching.MatchBadHeaders(cfg.badHeaders, req.Header) || !matching.MatchBadHeaders(i.badHeaders, req.Header) {
		logger.Debug("forbidden header present", "key", i.Key(), "request", req.ID)
		return false
	}

	if i.body != nil {
		body := req.Body
		if cfg.filterBody != nil {
			body = []byte(cfg.filterBody(string(body)))
		}
		if !matching.MatchBody(req.Header.Get("content-type"), i.body, body) {
			logger.Debug("body mismatch", "key", i.Key(), "request", req.ID)
			return false
		}
	}
	return true
}

// matchesRoute checks target, method, path and query: everything known
// before the body has been written.
func (i *Interceptor) matchesRoute(req *RequestContext, cfg *scopeSettings) bool {
	s := i.scope
	if !matching.MatchTarget(s.target, s.pattern, req.Target) {
		return false
	}
	if !matching.MatchMethod(i.method, req.Method) {
		return false
	}

	pathQuery := req.Path
	if cfg.filterPath != nil {
		pathQuery = cfg.filterPath(pathQuery)
	}
	path, rawQuery := matching.SplitPathQuery(pathQuery)
	if !matching.MatchPath(i.path, path, rawQuery) {
		return false
	}

	// Regex and function paths see the query themselves.
	if _, isString := i.path.(matching.StringMatch); !isString && !i.queryDeclared {
		return true
	}
	return matching.MatchQuery(i.query, matching.ParseQuery(rawQuery))
}

// routeMatches is matchesRoute guarded against panicking predicates.
func (i *Interceptor) routeMatches(req *RequestContext) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return i.matchesRoute(req, i.scope.settings())
}
