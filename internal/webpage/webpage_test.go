package webpage

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

const samplePage = `<!doctype html>
<html>
<head><title>Careers</title><style>body { color: red; }</style></head>
<body>
  <script>var tracking = "ignored";</script>
  <h1>Senior   Go Engineer</h1>
  <p>Skills: Go, <b>Kubernetes</b> &amp; gRPC</p>
  <noscript>enable js</noscript>
</body>
</html>`

func TestFetchTextReturnsVisibleText(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	client := New(zap.NewNop(), time.Second, "test-agent")
	text, err := client.FetchText(context.Background(), srv.URL+"/jobs/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := "Senior Go Engineer Skills: Go, Kubernetes & gRPC"; text != want {
		t.Fatalf("want %q, got %q", want, text)
	}
	if gotUA != "test-agent" {
		t.Fatalf("unexpected user agent: %q", gotUA)
	}
}

func TestFetchDecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "gzip" {
			t.Errorf("expected gzip to be accepted, got %q", r.Header.Get("Accept-Encoding"))
		}
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte("<p>compressed</p>"))
		_ = zw.Close()

		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	text, err := New(nil, 0, "").FetchText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "compressed" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New(nil, 0, "").Fetch(context.Background(), srv.URL+"/about")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status code: %d", statusErr.StatusCode)
	}
}

func TestFetchRejectsUnsupportedScheme(t *testing.T) {
	if _, err := New(nil, 0, "").Fetch(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatal("expected error for file url")
	}
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "tags", input: "<div>Hello</div> <br/>world", want: "Hello world"},
		{name: "urls", input: "Apply at https://example.com/jobs?id=1 today", want: "Apply at today"},
		{name: "special characters", input: "C++/Go & Node.js", want: "C Go Node js"},
		{name: "whitespace", input: "  a\t\tb\n\nc  ", want: "a b c"},
		{name: "non ascii", input: "Café résumé", want: "Caf r sum"},
	}

	for _, tc := range cases {
		if got := CleanText(tc.input); got != tc.want {
			t.Fatalf("%s: want %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "https://jobs.example.com/careers/42?ref=x", want: "https://jobs.example.com"},
		{input: "http://example.com:8080/a", want: "http://example.com:8080"},
		{input: "example.com/jobs", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := BaseURL(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("%q: want %q, got %q", tc.input, tc.want, got)
		}
	}
}
