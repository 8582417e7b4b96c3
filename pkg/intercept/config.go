package intercept

import (
	"github.com/samber/lo"

	"github.com/getmockd/netmock/pkg/config"
	"github.com/getmockd/netmock/pkg/logging"
	"github.com/getmockd/netmock/pkg/requestlog"
)

// NewFromConfig builds an Engine from cfg: logger, net policy, request
// history and pass-through timeout, then loads cfg.Definitions. opts are
// applied after the configured ones. A disabled cfg yields a restored
// engine. A nil cfg means config.Default.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	policy := NewNetPolicy()
	if cfg.NetConnect.Enabled {
		allow := lo.Map(cfg.NetConnect.Allow, func(a string, _ int) any { return a })
		if err := policy.Enable(allow...); err != nil {
			return nil, err
		}
	} else {
		policy.Disable()
	}

	base := []Option{
		WithLogger(logging.New(cfg.Logging())),
		WithNetPolicy(policy),
		WithPassthroughTimeout(timeout),
	}
	if cfg.MaxLogEntries > 0 {
		base = append(base, WithRequestLog(requestlog.NewMemoryStore(cfg.MaxLogEntries)))
	}
	e := New(append(base, opts...)...)

	if len(cfg.Definitions) > 0 {
		if _, err := e.Load(cfg.Definitions...); err != nil {
			e.Close()
			return nil, err
		}
	}
	if cfg.Disabled {
		e.Restore()
	}
	return e, nil
}
