package intercept

import (
	"errors"
	"fmt"
	"sort"

	"github.com/getmockd/netmock/pkg/definition"
)

// Define registers one scope per definition. Invalid definitions are
// skipped and reported together; the valid ones stay registered.
func (e *Engine) Define(defs []definition.Definition) ([]*Scope, error) {
	scopes := make([]*Scope, 0, len(defs))
	var errs []error
	for k := range defs {
		s, err := e.define(&defs[k])
		if err != nil {
			where := defs[k].String()
			if defs[k].Source != "" {
				where = defs[k].Source + ": " + where
			}
			errs = append(errs, fmt.Errorf("definition %d (%s): %w", k, where, err))
			continue
		}
		scopes = append(scopes, s)
	}
	return scopes, errors.Join(errs...)
}

// Load parses the files matched by patterns and defines them.
func (e *Engine) Load(patterns ...string) ([]*Scope, error) {
	defs, err := definition.LoadGlob(patterns...)
	if err != nil {
		return nil, err
	}
	e.logger.Info("definitions loaded", "count", len(defs))
	return e.Define(defs)
}

func (e *Engine) define(d *definition.Definition) (*Scope, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	status, _ := d.StatusCode()
	body, _ := d.ResponseBody()

	var opts []ScopeOption
	if d.Options.AllowUnmocked {
		opts = append(opts, AllowUnmocked())
	}
	if len(d.BadHeaders) > 0 {
		opts = append(opts, BadHeaders(d.BadHeaders...))
	}
	s := e.Scope(d.Scope, opts...)

	names := make([]string, 0, len(d.ReqHeaders))
	for name := range d.ReqHeaders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.MatchHeader(name, d.ReqHeaders[name])
	}

	if f := d.FilteringPath; f != nil {
		re, _ := f.Compile()
		s.FilteringPath(re, f.Replacement)
	}
	if f := d.FilteringRequestBody; f != nil {
		re, _ := f.Compile()
		s.FilteringRequestBody(re, f.Replacement)
	}

	i := s.Intercept(d.MethodOrDefault(), d.Path, d.RequestBody())
	if d.Times > 0 {
		i.Times(d.Times)
	}
	i.Persist(d.Persist).Optional(d.Optional)
	i.Reply(status, body, d.ReplyHeaders()...)

	if err := s.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
