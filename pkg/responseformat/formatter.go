// Package responseformat writes API responses as JSON, MessagePack or CSV.
package responseformat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// Supported values of the format query parameter
const (
	FormatJSON    = "json"
	FormatMsgPack = "msgpack"
	FormatCSV     = "csv"
)

// ErrCSVUnsupported is returned when CSV is requested for data that has no tabular form
var ErrCSVUnsupported = errors.New("csv format is not supported for this resource")

// CSVWriter is implemented by response bodies that can be written as CSV
type CSVWriter interface {
	WriteCSV(w io.Writer) error
}

// Formatter handles encoding and writing responses
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format returns the requested format, defaulting to JSON
func Format(req *http.Request) string {
	switch f := req.URL.Query().Get("format"); f {
	case FormatMsgPack, FormatCSV:
		return f
	default:
		return FormatJSON
	}
}

// WriteResponse writes data in the format selected by the format query parameter.
// JSON is the default.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, data any, headers map[string]string) error {
	for k, v := range headers {
		w.Header().Set(k, v)
	}

	// Always set CORS header
	w.Header().Set("Access-Control-Allow-Origin", "*")

	switch Format(req) {
	case FormatMsgPack:
		return f.writeMsgPack(w, data)
	case FormatCSV:
		c, ok := data.(CSVWriter)
		if !ok {
			return ErrCSVUnsupported
		}
		w.Header().Set("Content-Type", "text/csv")
		return c.WriteCSV(w)
	default:
		return f.writeJSON(w, data)
	}
}

// WriteResponseStatus is WriteResponse with an explicit status code
func (f *Formatter) WriteResponseStatus(w http.ResponseWriter, req *http.Request, status int, data any, headers map[string]string) error {
	return f.WriteResponse(&statusWriter{ResponseWriter: w, status: status}, req, data, headers)
}

// statusWriter sends its status code with the first body write, after the
// formatter has set its headers
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if !s.wrote {
		s.wrote = true
		s.ResponseWriter.WriteHeader(s.status)
	}
	return s.ResponseWriter.Write(b)
}

// WriteError writes an error body as JSON with the given status
func (f *Formatter) WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (f *Formatter) writeJSON(w http.ResponseWriter, data any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(data)
}

func (f *Formatter) writeMsgPack(w http.ResponseWriter, data any) error {
	w.Header().Set("Content-Type", "application/x-msgpack")
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}
