package responseformat

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type point struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type table []point

func (t table) WriteCSV(w io.Writer) error {
	_, err := io.WriteString(w, "name,value\na,1\n")
	return err
}

func TestWriteResponse(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		data        any
		contentType string
		body        string
	}{
		{name: "default json", query: "", data: point{"a", 1}, contentType: "application/json", body: "{\"name\":\"a\",\"value\":1}\n"},
		{name: "unknown format falls back to json", query: "?format=xml", data: point{"a", 1}, contentType: "application/json", body: "{\"name\":\"a\",\"value\":1}\n"},
		{name: "csv", query: "?format=csv", data: table{{"a", 1}}, contentType: "text/csv", body: "name,value\na,1\n"},
	}

	f := NewFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/x"+tt.query, nil)
			if err := f.WriteResponse(rec, req, tt.data, map[string]string{"X-Request-ID": "id"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("content type = %q", ct)
			}
			if rec.Header().Get("X-Request-ID") != "id" || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Errorf("headers = %v", rec.Header())
			}
			if rec.Body.String() != tt.body {
				t.Errorf("body = %q", rec.Body.String())
			}
		})
	}
}

func TestWriteResponseMsgPack(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x?format=msgpack", nil)
	if err := NewFormatter().WriteResponse(rec, req, point{"a", 1.5}, nil); err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["name"] != "a" || got["value"] != 1.5 {
		t.Errorf("decoded %v", got)
	}
}

func TestWriteResponseCSVUnsupported(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x?format=csv", nil)
	if err := NewFormatter().WriteResponse(rec, req, point{}, nil); !errors.Is(err, ErrCSVUnsupported) {
		t.Errorf("expected ErrCSVUnsupported, got %v", err)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	NewFormatter().WriteError(rec, 400, "bad date")
	if rec.Code != 400 || !strings.Contains(rec.Body.String(), `"error":"bad date"`) {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestWriteResponseStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	if err := NewFormatter().WriteResponseStatus(rec, req, 503, point{"a", 1}, nil); err != nil {
		t.Fatal(err)
	}
	if rec.Code != 503 || rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("got %d with headers %v", rec.Code, rec.Header())
	}
}
