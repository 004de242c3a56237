package insights

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

// OperationIDHeader carries the operation id of a collected request back to
// the caller.
const OperationIDHeader = "X-Operation-Id"

// PropOperationID is the property key correlating records of one operation.
const PropOperationID = "operation_id"

// Middleware records a Request for every inbound request when request
// collection is on, and an Exception for every handler panic when exception
// collection is on. Panics are re-raised after recording so the server's own
// recovery still runs.
//
// The request context carries an operation id; see
// contracts.OperationIDFromContext.
func (c *Client) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, active := c.activeAutoCollection()
		if !active || (!ac.Requests && !ac.Exceptions) {
			next.ServeHTTP(w, r)
			return
		}

		opID := uuid.NewString()
		ctx := contracts.WithOperationID(r.Context(), opID)
		r = r.WithContext(ctx)
		w.Header().Set(OperationIDHeader, opID)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if ac.Exceptions && rec != http.ErrAbortHandler {
				_ = c.TrackException(ctx, panicError(rec), contracts.Properties{
					PropOperationID: opID,
					"http.method":   r.Method,
					"http.path":     r.URL.Path,
				})
			}
			if ac.Requests {
				_ = c.TrackRequest(ctx, requestRecord(r, opID, http.StatusInternalServerError, time.Since(start)))
			}
			panic(rec)
		}()

		next.ServeHTTP(rw, r)

		if ac.Requests {
			_ = c.TrackRequest(ctx, requestRecord(r, opID, rw.status, time.Since(start)))
		}
	})
}

func requestRecord(r *http.Request, opID string, status int, d time.Duration) contracts.Request {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return contracts.Request{
		Name:         r.Method + " " + r.URL.Path,
		Method:       r.Method,
		URL:          scheme + "://" + r.Host + r.URL.RequestURI(),
		ResponseCode: status,
		Duration:     d,
		Success:      status < http.StatusBadRequest,
		Properties:   contracts.Properties{PropOperationID: opID},
	}
}

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", rec)
}

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Transport returns a RoundTripper that records a Dependency of type HTTP
// for every request when dependency collection is on. base defaults to
// http.DefaultTransport.
//
// Do not install it on the client a collector uses for ingestion; every
// upload would be recorded as a dependency.
func (c *Client) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{client: c, base: base}
}

type transport struct {
	client *Client
	base   http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ac, active := t.client.activeAutoCollection()
	if !active || !ac.Dependencies {
		return t.base.RoundTrip(req)
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	dep := contracts.Dependency{
		Name:       req.Method + " " + req.URL.Path,
		Type:       "HTTP",
		Target:     req.URL.Host,
		Data:       req.URL.Redacted(),
		Duration:   time.Since(start),
		Properties: contracts.Properties{},
	}
	if opID := contracts.OperationIDFromContext(req.Context()); opID != "" {
		dep.Properties[PropOperationID] = opID
	}
	switch {
	case err != nil:
		dep.Success = false
		dep.Properties["error"] = err.Error()
		if errors.Is(err, req.Context().Err()) && req.Context().Err() != nil {
			dep.ResultCode = "canceled"
		}
	default:
		dep.ResultCode = strconv.Itoa(resp.StatusCode)
		dep.Success = resp.StatusCode < http.StatusBadRequest
	}

	_ = t.client.TrackDependency(req.Context(), dep)
	return resp, err
}

func (c *Client) activeAutoCollection() (contracts.AutoCollection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.autoCollect, c.state == stateInitialized
}
