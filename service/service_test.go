package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/freekieb7/webapi/filesystem"
	"github.com/freekieb7/webapi/http"
	"github.com/freekieb7/webapi/loader"
	"github.com/freekieb7/webapi/test"
	"github.com/freekieb7/webapi/worker"
)

var indexContent = []byte("<!DOCTYPE html><html><body><h1>It works</h1></body></html>\n")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newApp serves the service over a real listener the way the serve command
// assembles it.
func newApp(t *testing.T, opts Options) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), indexContent, 0644); err != nil {
		t.Fatal(err)
	}

	pool, err := worker.NewPool(worker.Options{Workers: 4, QueueSize: 64, Logger: discardLogger()})
	test.AssertNoError(t, err)
	pool.Start()
	t.Cleanup(pool.Stop)

	l, err := loader.New(filesystem.NewLocalFileSystem(dir), pool, loader.Options{Logger: discardLogger()})
	test.AssertNoError(t, err)

	router := http.NewRouter()
	router.Use(http.RecoverMiddleware(discardLogger()), http.RequestIDMiddleware())
	New(l, http.NewClient(5*time.Second), opts, discardLogger()).Routes(router)

	srv := httptest.NewServer(http.NewServer("webapi", router, discardLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body io.Reader) (*nethttp.Response, []byte) {
	t.Helper()

	req, err := nethttp.NewRequest(method, url, body)
	test.AssertNoError(t, err)

	res, err := nethttp.DefaultClient.Do(req)
	test.AssertNoError(t, err)
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	test.AssertNoError(t, err)
	return res, b
}

func TestRouteTable(t *testing.T) {
	srv := newApp(t, Options{ChunkSize: 16})

	tests := []struct {
		method, path string
		status       int
		body         []byte
	}{
		{"GET", "/", 200, indexContent},
		{"GET", "/index.html", 200, indexContent},
		{"GET", "/big_file.html", 200, indexContent},
		{"GET", "/no_file.html", 404, http.NotFound},
		{"GET", "/db_example.html", 200, http.MissingImplementation},
		{"GET", "/web_api_example.html", 200, http.MissingImplementation},
		{"POST", "/", 404, http.NotFound},
		{"GET", "/web_api", 404, http.NotFound},
		{"GET", "/unknown", 404, http.NotFound},
		{"DELETE", "/index.html", 404, http.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			res, b := do(t, tt.method, srv.URL+tt.path, nil)
			test.AssertTrue(t, tt.status, res.StatusCode)
			test.AssertBytes(t, tt.body, b)
		})
	}
}

func TestMissingFileScenario(t *testing.T) {
	srv := newApp(t, Options{})

	res, b := do(t, "GET", srv.URL+"/no_file.html", nil)

	test.AssertTrue(t, 404, res.StatusCode)
	test.AssertTrue(t, "Not Found", string(b))
	test.AssertTrue(t, "9", res.Header.Get("Content-Length"))
}

func TestWebAPIScenario(t *testing.T) {
	srv := newApp(t, Options{})

	res, b := do(t, "POST", srv.URL+"/web_api", strings.NewReader("i am a lower case string"))

	test.AssertTrue(t, 200, res.StatusCode)
	test.AssertTrue(t, "I AM A LOWER CASE STRING", string(b))
}

func TestWebAPIEmptyBody(t *testing.T) {
	srv := newApp(t, Options{})

	res, b := do(t, "POST", srv.URL+"/web_api", nil)

	test.AssertTrue(t, 200, res.StatusCode)
	test.AssertTrue(t, 0, len(b))
}

func TestBigFileIsChunked(t *testing.T) {
	srv := newApp(t, Options{ChunkSize: 16})

	res, b := do(t, "GET", srv.URL+"/big_file.html", nil)

	test.AssertTrue(t, 200, res.StatusCode)
	test.AssertTrue(t, int64(-1), res.ContentLength)
	test.AssertTrue(t, "chunked", strings.Join(res.TransferEncoding, ","))
	test.AssertBytes(t, indexContent, b)
}

func TestIndexIsBuffered(t *testing.T) {
	srv := newApp(t, Options{})

	res, _ := do(t, "GET", srv.URL+"/index.html", nil)

	test.AssertTrue(t, int64(len(indexContent)), res.ContentLength)
	if len(res.Header.Get("X-Request-Id")) != 36 {
		t.Errorf("expected a request id, got %q", res.Header.Get("X-Request-Id"))
	}
}

func TestUpstreamRoundTrip(t *testing.T) {
	upstream := newApp(t, Options{})
	srv := newApp(t, Options{UpstreamEnabled: true, UpstreamURL: upstream.URL + "/web_api"})

	for _, path := range []string{"/", "/index.html"} {
		res, b := do(t, "GET", srv.URL+path, nil)

		test.AssertTrue(t, 200, res.StatusCode)
		test.AssertTrue(t, "before: 'i am a lower case string'\nafter: 'I AM A LOWER CASE STRING'", string(b))
	}
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	upstream := newApp(t, Options{})
	srv := newApp(t, Options{UpstreamEnabled: true, UpstreamURL: upstream.URL + "/nowhere"})

	res, _ := do(t, "GET", srv.URL+"/", nil)
	test.AssertTrue(t, 502, res.StatusCode)

	closed := httptest.NewServer(nethttp.NotFoundHandler())
	closed.Close()
	srv = newApp(t, Options{UpstreamEnabled: true, UpstreamURL: closed.URL + "/web_api"})

	res, _ = do(t, "GET", srv.URL+"/", nil)
	test.AssertTrue(t, 502, res.StatusCode)
}

func TestFetch(t *testing.T) {
	upstream := newApp(t, Options{})

	out, err := Fetch(context.Background(), http.NewClient(5*time.Second), upstream.URL+"/web_api")
	test.AssertNoError(t, err)
	test.AssertTrue(t, "before: 'i am a lower case string'\nafter: 'I AM A LOWER CASE STRING'", string(out))

	_, err = Fetch(context.Background(), http.NewClient(5*time.Second), upstream.URL+"/missing")
	if err == nil {
		t.Fatal("expected a non 200 upstream to fail")
	}
}

func TestCompare(t *testing.T) {
	test.AssertBytes(t, []byte("before: 'a'\nafter: 'A'"), Compare([]byte("a"), []byte("A")))
	test.AssertBytes(t, []byte("before: ''\nafter: ''"), Compare(nil, nil))
}

func TestWebAPIStreamsLargeBodies(t *testing.T) {
	srv := newApp(t, Options{})
	payload := bytes.Repeat([]byte("abcdefghij"), 10000)

	res, b := do(t, "POST", srv.URL+"/web_api", bytes.NewReader(payload))

	test.AssertTrue(t, 200, res.StatusCode)
	test.AssertBytes(t, bytes.ToUpper(payload), b)
}
