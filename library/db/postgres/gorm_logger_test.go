package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func TestSanitizeLoggedSQLParamVector(t *testing.T) {
	vector := make([]float32, 0, 1536)
	for idx := 0; idx < 1536; idx++ {
		vector = append(vector, float32(idx)/1000)
	}

	result, ok := sanitizeLoggedSQLParam(pgvector.NewVector(vector), 128, 4).(string)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(result, "<vector:dim=1536"))
	require.Contains(t, result, "truncated=true")
}

func TestSanitizeLoggedSQLParamShortVector(t *testing.T) {
	result, ok := sanitizeLoggedSQLParam([]float32{1, 0}, 128, 4).(string)
	require.True(t, ok)
	require.Equal(t, "<vector:dim=2,preview=[1 0],truncated=false>", result)
}

func TestSanitizeLoggedSQLParams(t *testing.T) {
	vectorLiteral := "[" + strings.Repeat("0.123456789,", 40) + "0.987654321]"
	longChunk := fmt.Sprintf("%0300d", 0)

	filtered := sanitizeLoggedSQLParams(pgvector.NewVector([]float32{1, 2, 3}), vectorLiteral, longChunk, "AB-1001", 16)
	require.Len(t, filtered, 5)
	require.Contains(t, filtered[0], "<vector:dim=3")
	require.Contains(t, filtered[1], "<truncated:len=")
	require.Equal(t, "<string:len=300,truncated>", filtered[2])
	require.Equal(t, "AB-1001", filtered[3])
	require.Equal(t, 16, filtered[4])
}

func TestTruncatingParamsLoggerKeepsWrapperOnLogMode(t *testing.T) {
	logger := newTruncatingParamsLogger(gormLogger.Default).LogMode(gormLogger.Silent)

	filter, ok := logger.(gorm.ParamsFilter)
	require.True(t, ok)

	sql, params := filter.ParamsFilter(context.Background(), "SELECT 1 WHERE v <=> ?", pgvector.NewVector([]float32{0.5}))
	require.Equal(t, "SELECT 1 WHERE v <=> ?", sql)
	require.Contains(t, params[0], "<vector:dim=1")
}
