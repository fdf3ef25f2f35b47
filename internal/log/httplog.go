package log

import (
	"net/http"
	"time"
)

// statusRecorder captures the status code and body size written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// LogHTTPRequest logs a completed HTTP request
func LogHTTPRequest(method, path string, status int, duration time.Duration, size int, remoteAddr, userAgent, requestID string) {
	fields := []interface{}{
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"size", size,
		"remote_addr", remoteAddr,
		"user_agent", userAgent,
	}
	if requestID != "" {
		fields = append(fields, "request_id", requestID)
	}

	if status >= http.StatusInternalServerError {
		Errorw("http request", fields...)
		return
	}
	Infow("http request", fields...)
}

// HTTPMiddleware wraps a handler and logs every request it serves.  The
// request ID is read from the X-Request-ID response header if the handler
// chain has set one.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, req)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		LogHTTPRequest(req.Method, req.URL.Path, rec.status, time.Since(start), rec.size,
			req.RemoteAddr, req.UserAgent(), w.Header().Get("X-Request-ID"))
	})
}
