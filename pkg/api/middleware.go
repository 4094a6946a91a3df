package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"smartcomments/pkg/client"
	"smartcomments/pkg/logger"
	"smartcomments/pkg/models"
)

const kafkaWriteTimeout = 5 * time.Second

// LogWriter is the part of *kafka.Writer the logging middleware uses.
type LogWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// requestIDMiddleware keeps an incoming X-Request-Id or generates one, and
// stores it where the backend client picks it up for outgoing calls.
func (api *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			id, err := uuid.NewV4()
			if err != nil {
				log.Errorf("[requestIDMiddleware] failed to generate request ID for %v: %v", r.RemoteAddr, err)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
				return
			}
			reqID = id.String()
			log.Debugf("[requestIDMiddleware] generated request ID:%s for %v", reqID, r.RemoteAddr)
		}

		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(client.WithRequestID(r.Context(), reqID)))
	})
}

func (api *API) headerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-Request-Id")

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware ships one LogEntry per request, written off the request
// path with its own deadline.
func (api *API) loggingMiddleware(lw LogWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rl := logger.New(w)

			next.ServeHTTP(rl, r)

			entry := models.LogEntry{
				Timestamp:  time.Now(),
				IP:         getClientIP(r),
				StatusCode: rl.Status(),
				RequestID:  client.RequestID(r.Context()),
				Method:     r.Method,
				Path:       r.URL.Path,
				Bytes:      rl.Bytes(),
				Duration:   time.Since(start).Seconds(),
				Service:    api.ServiceName,
			}

			jsonEntry, err := json.Marshal(entry)
			if err != nil {
				log.Errorf("[loggingMiddleware] failed to marshal log entry for request %s", entry.RequestID)
				return
			}

			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), kafkaWriteTimeout)
				defer cancel()

				if err := lw.WriteMessages(ctx, kafka.Message{Key: []byte(entry.RequestID), Value: jsonEntry}); err != nil {
					log.Errorf("[loggingMiddleware] failed to write log to Kafka: %v", err)
					return
				}
				log.Debugf("[loggingMiddleware] log entry sent to Kafka request_id:%s", entry.RequestID)
			}()
		})
	}
}

func getClientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}

	return ip
}
