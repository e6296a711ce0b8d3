package testutils

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestServer wraps httptest.Server with a cookie-keeping client so a test
// behaves like one browser visitor.
type TestServer struct {
	*httptest.Server
	t      *testing.T
	client *http.Client
}

func NewTestServer(t *testing.T, handler http.Handler) *TestServer {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &TestServer{
		Server: server,
		t:      t,
		client: &http.Client{Jar: jar},
	}
}

func (ts *TestServer) GET(path string) *http.Response {
	return ts.GETWithHeaders(path, nil)
}

func (ts *TestServer) GETWithHeaders(path string, headers map[string]string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(ts.t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.client.Do(req)
	require.NoError(ts.t, err)
	return resp
}

// POST sends body as JSON, optionally with extra headers such as X-Forwarded-For.
// A string body is sent verbatim.
func (ts *TestServer) POST(path string, body interface{}, headers map[string]string) *http.Response {
	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(b)
	default:
		jsonBody, err := json.Marshal(b)
		require.NoError(ts.t, err)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bodyReader)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.client.Do(req)
	require.NoError(ts.t, err)
	return resp
}

func AssertJSONResponse(t *testing.T, resp *http.Response, expectedStatus int, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.Equal(t, expectedStatus, resp.StatusCode)

	if target != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	}
}
