package crawlers

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

type staticHeaders http.Header

func (h staticHeaders) GetHeaders() (http.Header, error) {
	return http.Header(h), nil
}

func newContactServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/br", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		bw.Write([]byte(`<p>brotli@acme.com</p>`))
		bw.Close()
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzip.NewWriter(w)
		gw.Write([]byte(`<p>gzip@acme.com</p>`))
		gw.Close()
	})
	mux.HandleFunc("/headers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("Accept-Language") + "|" + r.UserAgent()))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCollyFetcher_Decoding(t *testing.T) {
	srv := newContactServer(t)
	f := NewCollyFetcher("MapsHarvestTest/1.0", nil)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"brotli响应", "/br", "brotli@acme.com"},
		{"gzip响应", "/gzip", "gzip@acme.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup, err := f.Fetch(context.Background(), srv.URL+tt.path, 5*time.Second)
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if !ExtractEmails(markup).Has(tt.want) {
				t.Errorf("Fetch() = %q, 缺少 %s", markup, tt.want)
			}
		})
	}
}

func TestCollyFetcher_Headers(t *testing.T) {
	srv := newContactServer(t)
	f := NewCollyFetcher("MapsHarvestTest/1.0", staticHeaders{
		"Accept-Language": {"de-DE"},
		"User-Agent":      {"ignored"},
	})

	body, err := f.Fetch(context.Background(), srv.URL+"/headers", 5*time.Second)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body != "de-DE|MapsHarvestTest/1.0" {
		t.Errorf("请求头部 = %q", body)
	}
}

func TestCollyFetcher_Errors(t *testing.T) {
	srv := newContactServer(t)
	f := NewCollyFetcher("", nil)

	_, err := f.Fetch(context.Background(), srv.URL+"/missing", 5*time.Second)
	if !errors.Is(err, ErrNavigation) {
		t.Errorf("404应返回 ErrNavigation, got %v", err)
	}

	start := time.Now()
	_, err = f.Fetch(context.Background(), srv.URL+"/slow", 100*time.Millisecond)
	if err == nil {
		t.Error("超时应返回错误")
	}
	if time.Since(start) > 1500*time.Millisecond {
		t.Errorf("超时未生效: %v", time.Since(start))
	}
}

func TestDecompressResponse(t *testing.T) {
	var sb strings.Builder
	bw := brotli.NewWriter(&sb)
	bw.Write([]byte("hello"))
	bw.Close()

	got, err := decompressResponse("br", []byte(sb.String()))
	if err != nil || string(got) != "hello" {
		t.Errorf("decompressResponse(br) = %q, %v", got, err)
	}
	got, err = decompressResponse("", []byte("plain"))
	if err != nil || string(got) != "plain" {
		t.Errorf("decompressResponse(\"\") = %q, %v", got, err)
	}
}
