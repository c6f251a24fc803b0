package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsPlaceholders(t *testing.T) {
	query, args := Finalize("SELECT id FROM exams WHERE course_code=? AND university=?", []interface{}{"TDDD27", "LIU"})
	require.Equal(t, "SELECT id FROM exams WHERE course_code=$1 AND university=$2", query)
	require.Equal(t, []interface{}{"TDDD27", "LIU"}, args)
}

func TestFinalizeRewritesMySQLLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM exams WHERE google_file_uri IS NOT NULL LIMIT ?,?", []interface{}{0, 20})
	require.Equal(t, "SELECT id FROM exams WHERE google_file_uri IS NOT NULL LIMIT $1 OFFSET $2", query)
	require.Equal(t, []interface{}{20, 0}, args)
}
