package mcp

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	srv "github.com/mark3labs/mcp-go/server"
)

// withHTTPLogging dumps redacted request and response bodies at debug level.
// Bodies are cut at httpLogBodyLimit bytes.
func withHTTPLogging(next http.Handler, logger logSDK.Logger) http.Handler {
	if next == nil || logger == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startAt := time.Now()
		reqBody, reqTruncated, err := peekRequestBody(r, httpLogBodyLimit)
		if err != nil {
			logger.Error("read mcp request body", zap.Error(err))
			http.Error(w, "cannot read request body", http.StatusBadRequest)
			return
		}

		capture := &captureWriter{ResponseWriter: w, limit: httpLogBodyLimit}
		next.ServeHTTP(capture, r)

		respBody, respTruncated := capture.body()
		logger.Debug("mcp http exchange",
			zap.String("method", r.Method),
			zap.String("mcp_session_id", strings.TrimSpace(r.Header.Get(srv.HeaderKeySessionID))),
			zap.String("request", redactMCPBody(reqBody)),
			zap.Bool("request_truncated", reqTruncated),
			zap.Int("status", capture.statusCode()),
			zap.String("response", redactMCPBody(respBody)),
			zap.Bool("response_truncated", respTruncated),
			zap.Duration("cost", time.Since(startAt)),
		)
	})
}

// peekRequestBody reads the body for logging and puts an identical reader back.
func peekRequestBody(r *http.Request, limit int) (string, bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", false, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", false, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))

	if len(data) > limit {
		return string(data[:limit]), true, nil
	}
	return string(data), false, nil
}

// captureWriter keeps the first limit bytes of the response. Flush is
// forwarded so SSE streams keep working.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if remaining := c.limit - c.buf.Len(); remaining > 0 {
		if len(b) > remaining {
			c.buf.Write(b[:remaining])
			c.truncated = true
		} else {
			c.buf.Write(b)
		}
	} else if len(b) > 0 {
		c.truncated = true
	}
	return c.ResponseWriter.Write(b)
}

func (c *captureWriter) Flush() {
	if flusher, ok := c.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (c *captureWriter) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *captureWriter) body() (string, bool) {
	return c.buf.String(), c.truncated
}
