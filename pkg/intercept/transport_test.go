package intercept

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLiveEngine(t *testing.T, opts ...Option) (*Engine, *http.Client) {
	t.Helper()
	e := New(opts...)
	t.Cleanup(e.Close)
	return e, &http.Client{Transport: e.Transport()}
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func TestTransportReply(t *testing.T) {
	e, client := newLiveEngine(t)
	e.DisableNetConnect()
	e.Scope("http://api.example.test").
		Get("/users/1").
		ReplyContentLength().
		Reply(200, map[string]any{"id": 1}, "X-A", "1", "X-A", "2")

	res, err := client.Get("http://api.example.test/users/1")
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "200 OK", res.Status)
	assert.Equal(t, "1, 2", res.Header.Get("X-A"))
	assert.Equal(t, []string{"1, 2"}, res.Header.Values("X-A"))
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.Equal(t, int64(8), res.ContentLength)
	assert.JSONEq(t, `{"id":1}`, readBody(t, res))
	assert.True(t, e.IsDone())
}

func TestTransportPostBody(t *testing.T) {
	e, client := newLiveEngine(t)
	e.DisableNetConnect()
	e.Scope("http://api.example.test").
		Post("/users", map[string]any{"name": "Grace"}).
		MatchHeader("content-type", "application/json").
		Reply(201, "created")

	res, err := client.Post("http://api.example.test/users", "application/json", strings.NewReader(`{"name":"Grace"}`))
	require.NoError(t, err)
	assert.Equal(t, 201, res.StatusCode)
	assert.Equal(t, "created", readBody(t, res))
}

func TestTransportNoMatch(t *testing.T) {
	e, client := newLiveEngine(t)
	e.DisableNetConnect()
	e.Scope("http://api.example.test").Get("/a").Reply(200, "")

	_, err := client.Get("http://api.example.test/b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, CodeNoMatch, CodeOf(err))

	_, err = client.Get("http://elsewhere.test/")
	assert.Equal(t, CodeNetConnectDenied, CodeOf(err))
}

func TestTransportReplyWithError(t *testing.T) {
	e, client := newLiveEngine(t)
	boom := fmt.Errorf("dial tcp: boom")
	e.Scope("http://api.example.test").Get("/").ReplyWithError(boom)

	_, err := client.Get("http://api.example.test/")
	assert.ErrorIs(t, err, boom)
}

func TestTransportHostOverride(t *testing.T) {
	e, client := newLiveEngine(t)
	e.DisableNetConnect()
	e.Scope("http://10.0.0.1").Get("/").MatchHeader("host", "virtual.test").Reply(200, "vhost")

	req, err := http.NewRequest(http.MethodGet, "http://10.0.0.1/", nil)
	require.NoError(t, err)
	req.Host = "virtual.test"
	res, err := client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "vhost", readBody(t, res))
}

func TestTransportStreamedBody(t *testing.T) {
	e, client := newLiveEngine(t)
	payload := strings.Repeat("abcdefgh", 20000)
	e.Scope("http://api.example.test").Get("/big").Reply(200, strings.NewReader(payload))

	res, err := client.Get("http://api.example.test/big")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), res.ContentLength)
	assert.Equal(t, payload, readBody(t, res))
}

func TestTransportContextCancel(t *testing.T) {
	e, client := newLiveEngine(t)
	e.Scope("http://api.example.test").Get("/").DelayConnection(time.Hour).Reply(200, "never")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://api.example.test/", nil)
	require.NoError(t, err)

	_, err = client.Do(req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Eventually(t, func() bool { return e.Outstanding() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTransportEarlyBodyClose(t *testing.T) {
	e, client := newLiveEngine(t)
	e.Scope("http://api.example.test").Get("/").DelayBody(time.Hour).Reply(200, "late")

	res, err := client.Get("http://api.example.test/")
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())

	_, err = res.Body.Read(make([]byte, 1))
	assert.ErrorIs(t, err, errBodyClosed)
	assert.Eventually(t, func() bool { return e.Outstanding() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTransportPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Real", "1")
		fmt.Fprintf(w, "real %s %s %s", r.Method, r.URL.Path, body)
	}))
	t.Cleanup(srv.Close)

	e, client := newLiveEngine(t)
	s := e.Scope(srv.URL, AllowUnmocked())
	s.Get("/mocked").Reply(200, "mock")

	res, err := client.Get(srv.URL + "/mocked")
	require.NoError(t, err)
	assert.Equal(t, "mock", readBody(t, res))

	res, err = client.Post(srv.URL+"/other", "text/plain", strings.NewReader("hi"))
	require.NoError(t, err)
	assert.Equal(t, "1", res.Header.Get("X-Real"))
	assert.Equal(t, "real POST /other hi", readBody(t, res))

	e.Restore()
	res, err = client.Get(srv.URL + "/mocked")
	require.NoError(t, err)
	assert.Equal(t, "real GET /mocked ", readBody(t, res))
}

func TestTransportPassthroughTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	_, client := newLiveEngine(t, WithPassthroughTimeout(20*time.Millisecond))
	_, err := client.Get(srv.URL + "/slow")
	assert.Error(t, err)
}

func TestInstallDefaultTransport(t *testing.T) {
	prev := http.DefaultTransport
	e, _ := newLiveEngine(t)
	e.Scope("http://api.example.test").Get("/").Reply(200, "via default")

	e.InstallDefaultTransport()
	e.InstallDefaultTransport()
	_, ours := http.DefaultTransport.(*Transport)
	assert.True(t, ours)

	res, err := http.Get("http://api.example.test/")
	require.NoError(t, err)
	assert.Equal(t, "via default", readBody(t, res))

	e.Restore()
	assert.Equal(t, prev, http.DefaultTransport)
}
