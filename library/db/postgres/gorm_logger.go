package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	gormLogger "gorm.io/gorm/logger"
)

const (
	defaultMaxLoggedParamLength = 256
	defaultVectorPreviewDims    = 8
)

// truncatingParamsLogger keeps query embeddings and long chunk texts out of SQL logs.
type truncatingParamsLogger struct {
	gormLogger.Interface
	maxLoggedParamLength int
	vectorPreviewDims    int
}

// newTruncatingParamsLogger wraps base so that gorm passes every statement's params through ParamsFilter.
func newTruncatingParamsLogger(base gormLogger.Interface) gormLogger.Interface {
	return &truncatingParamsLogger{
		Interface:            base,
		maxLoggedParamLength: defaultMaxLoggedParamLength,
		vectorPreviewDims:    defaultVectorPreviewDims,
	}
}

// LogMode keeps the wrapper when gorm derives a logger with another level.
func (l *truncatingParamsLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	return &truncatingParamsLogger{
		Interface:            l.Interface.LogMode(level),
		maxLoggedParamLength: l.maxLoggedParamLength,
		vectorPreviewDims:    l.vectorPreviewDims,
	}
}

// ParamsFilter implements gorm's logger.ParamsFilter.
func (l *truncatingParamsLogger) ParamsFilter(_ context.Context, sql string, params ...any) (string, []any) {
	if len(params) == 0 {
		return sql, params
	}
	return sql, sanitizeParams(params, l.maxLoggedParamLength, l.vectorPreviewDims)
}

// sanitizeLoggedSQLParams applies the default limits to every param.
func sanitizeLoggedSQLParams(params ...any) []any {
	return sanitizeParams(params, defaultMaxLoggedParamLength, defaultVectorPreviewDims)
}

func sanitizeParams(params []any, maxLen, previewDims int) []any {
	filtered := make([]any, len(params))
	for idx, param := range params {
		filtered[idx] = sanitizeLoggedSQLParam(param, maxLen, previewDims)
	}
	return filtered
}

// sanitizeLoggedSQLParam summarizes vectors and truncates oversized text.
func sanitizeLoggedSQLParam(param any, maxLen, previewDims int) any {
	switch value := param.(type) {
	case pgvector.Vector:
		return summarizeVector(value.Slice(), previewDims)
	case *pgvector.Vector:
		if value == nil {
			return param
		}
		return summarizeVector(value.Slice(), previewDims)
	case []float32:
		return summarizeVector(value, previewDims)
	case string:
		if looksLikeVectorLiteral(value) {
			return truncateString(value, maxLen)
		}
		if len(value) > maxLen {
			return fmt.Sprintf("<string:len=%d,truncated>", len(value))
		}
		return value
	case []byte:
		if len(value) > maxLen {
			return fmt.Sprintf("<bytes:len=%d,truncated>", len(value))
		}
		return value
	default:
		return param
	}
}

func summarizeVector(vector []float32, previewDims int) string {
	if previewDims <= 0 {
		previewDims = defaultVectorPreviewDims
	}
	n := min(previewDims, len(vector))
	return fmt.Sprintf("<vector:dim=%d,preview=%v,truncated=%t>", len(vector), vector[:n], len(vector) > n)
}

func truncateString(raw string, maxLen int) string {
	if maxLen <= 0 || len(raw) <= maxLen {
		return raw
	}
	return fmt.Sprintf("%s...<truncated:len=%d>", raw[:maxLen], len(raw))
}

// looksLikeVectorLiteral matches the text form pgvector uses, e.g. "[0.1,0.2]".
func looksLikeVectorLiteral(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return len(trimmed) >= 4 &&
		strings.HasPrefix(trimmed, "[") &&
		strings.HasSuffix(trimmed, "]") &&
		strings.Contains(trimmed, ",")
}
