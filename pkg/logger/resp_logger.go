// Package logger wraps a response writer to record what the handler
// answered, for the request log.
package logger

import "net/http"

type ResponseLogger struct {
	w      http.ResponseWriter
	status int
	bytes  int
	wrote  bool
}

func New(w http.ResponseWriter) *ResponseLogger {
	return &ResponseLogger{w: w, status: http.StatusOK}
}

// WriteHeader records the first status sent; later calls are passed on
// but not recorded, matching what the client actually receives.
func (l *ResponseLogger) WriteHeader(code int) {
	if !l.wrote {
		l.status = code
		l.wrote = true
	}
	l.w.WriteHeader(code)
}

func (l *ResponseLogger) Write(b []byte) (int, error) {
	l.wrote = true
	n, err := l.w.Write(b)
	l.bytes += n
	return n, err
}

func (l *ResponseLogger) Header() http.Header {
	return l.w.Header()
}

func (l *ResponseLogger) Status() int {
	return l.status
}

// Bytes is the number of body bytes written so far.
func (l *ResponseLogger) Bytes() int {
	return l.bytes
}
