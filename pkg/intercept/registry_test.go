package intercept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/netmock/internal/eventloop"
	"github.com/getmockd/netmock/internal/matching"
)

func registered(s *Scope, path string, times int) *Interceptor {
	i := s.Get(path).Times(times)
	i.Reply(200, path)
	return i
}

func TestRegistryCandidatesOrder(t *testing.T) {
	e := New(WithLoop(eventloop.New()))
	exact := e.Scope("http://api.example.test")
	glob := e.Scope("http://*.example.test")
	other := e.Scope("http://other.test")

	a := registered(exact, "/a", 1)
	b := registered(glob, "/b", 1)
	registered(other, "/o", 1)
	c := registered(exact, "/c", 1)

	got := e.registry.Candidates(matching.NewTarget("http", "api.example.test", 80))
	assert.Equal(t, []*Interceptor{a, b, c}, got)

	got = e.registry.Candidates(matching.NewTarget("http", "www.example.test", 80))
	assert.Equal(t, []*Interceptor{b}, got)
}

func TestRegistryConsume(t *testing.T) {
	e := New(WithLoop(eventloop.New()))
	s := e.Scope("http://api.example.test")
	i := registered(s, "/", 2)

	key := "GET http://api.example.test:80/"
	assert.Equal(t, []string{key}, e.registry.PendingKeys())

	require.True(t, e.registry.Consume(i))
	assert.Equal(t, []string{key}, e.registry.ActiveKeys())
	require.True(t, e.registry.Consume(i))
	assert.False(t, e.registry.Consume(i), "exhausted")

	assert.Empty(t, e.registry.ActiveKeys())
	assert.Empty(t, e.registry.PendingKeys())
	assert.Equal(t, 2, i.Counter())
	assert.Empty(t, e.registry.Candidates(s.Target()))
}

func TestRegistryRemove(t *testing.T) {
	e := New(WithLoop(eventloop.New()))
	s := e.Scope("http://api.example.test")
	i := registered(s, "/", 1)

	require.True(t, e.registry.Remove(i))
	assert.False(t, e.registry.Consume(i))
	assert.False(t, e.registry.Remove(i))
	assert.Equal(t, []*Interceptor{i}, s.Interceptors(), "history is kept")
}

func TestRegistryScopesFor(t *testing.T) {
	e := New(WithLoop(eventloop.New()))
	empty := e.Scope("http://api.example.test")
	used := e.Scope("http://api.example.test")
	registered(used, "/", 1)

	got := e.registry.ScopesFor(matching.NewTarget("http", "api.example.test", 80))
	assert.Equal(t, []*Scope{used}, got)
	assert.Equal(t, []*Scope{empty, used}, e.Scopes())
}

func TestRegistryResetAll(t *testing.T) {
	e := New(WithLoop(eventloop.New()))
	s := e.Scope("http://api.example.test")
	i := registered(s, "/", 1)

	e.registry.ResetAll()
	e.registry.ResetAll()
	assert.Empty(t, e.registry.Scopes())
	assert.Empty(t, e.registry.Candidates(s.Target()))
	assert.False(t, e.registry.Consume(i))
}
