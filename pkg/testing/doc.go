// Package testing wires an intercept.Engine into Go tests.
//
// New returns a Mock bound to the test: network access is denied, every
// declared expectation must be satisfied by the end of the test, and the
// engine is reset and closed during cleanup.
//
// # Basic Usage
//
//	func TestFetchUser(t *testing.T) {
//	    mock := nmtesting.New(t)
//
//	    mock.Scope("http://api.example.test").
//	        Get("/users/123").
//	        Reply(200, map[string]string{"id": "123", "name": "Test User"})
//
//	    user, err := api.NewClient(mock.Client()).FetchUser("123")
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//
//	    mock.AssertCalled(t, "GET", "/users/123")
//	}
//
// Code that uses http.DefaultClient is covered with WithDefaultTransport.
//
// # Request Assertions
//
// Requests returns the recorded requests, newest first:
//
//	req := mock.Requests()[0]
//	req.AssertMethod(t, "POST")
//	req.AssertHeader(t, "Content-Type", "application/json")
//	req.AssertJSONField(t, "name", "Grace")
//
// Path arguments of AssertCalled and friends accept {name} segments that
// match any value:
//
//	mock.AssertCalledTimes(t, "GET", "/users/{id}", 2)
package testing
