package expander

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSQLFenced(t *testing.T) {
	reply := "Here you go:\n```sql\nSELECT count(*) FROM analytics.orders\n```\nLet me know!"
	sqlText, err := ExtractSQL(reply)
	require.NoError(t, err)
	assert.Equal(t, "SELECT count(*) FROM analytics.orders", sqlText)
}

func TestExtractSQLPlainFence(t *testing.T) {
	reply := "```\nSELECT 1\n```"
	sqlText, err := ExtractSQL(reply)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sqlText)
}

func TestExtractSQLNoFence(t *testing.T) {
	sqlText, err := ExtractSQL("  SELECT id FROM t  ")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM t", sqlText)
}

func TestExtractSQLMultiline(t *testing.T) {
	reply := "```sql\nSELECT o.id,\n       o.amount\nFROM analytics.orders o\nWHERE o.amount > 100\n```"
	sqlText, err := ExtractSQL(reply)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "WHERE o.amount > 100")
}

func TestExtractSQLEmptyAfterStrip(t *testing.T) {
	for _, reply := range []string{"", "   ", "```sql\n\n```", "``````"} {
		_, err := ExtractSQL(reply)
		require.Error(t, err, "reply %q", reply)
		assert.Contains(t, err.Error(), "no sql")
	}
}

func TestUnapprovedReferences(t *testing.T) {
	approved := map[string]bool{"analytics.orders": true}
	known := []string{"analytics.orders", "raw.events", "staging.stg_orders"}

	offenders := UnapprovedReferences(
		"SELECT * FROM analytics.orders JOIN raw.events USING (id)",
		approved, known)
	assert.Equal(t, []string{"raw.events"}, offenders)
}

func TestUnapprovedReferencesClean(t *testing.T) {
	approved := map[string]bool{"analytics.orders": true}
	known := []string{"analytics.orders", "raw.events"}

	offenders := UnapprovedReferences("SELECT count(*) FROM analytics.orders", approved, known)
	assert.Empty(t, offenders)
}

func TestUnapprovedReferencesWordBoundary(t *testing.T) {
	// orders_v2 contains "orders" but is a different identifier; the
	// scan must not flag the shorter name.
	approved := map[string]bool{"analytics.orders_v2": true}
	known := []string{"analytics.orders_v2", "analytics.orders"}

	offenders := UnapprovedReferences("SELECT * FROM analytics.orders_v2", approved, known)
	assert.Empty(t, offenders)
}

func TestUnapprovedReferencesCaseInsensitive(t *testing.T) {
	approved := map[string]bool{}
	known := []string{"raw.events"}

	offenders := UnapprovedReferences("SELECT * FROM RAW.EVENTS", approved, known)
	assert.Equal(t, []string{"raw.events"}, offenders)
}

func TestUnapprovedReferencesQuoted(t *testing.T) {
	approved := map[string]bool{}
	known := []string{"raw.events"}

	offenders := UnapprovedReferences(`SELECT * FROM "raw.events"`, approved, known)
	assert.Equal(t, []string{"raw.events"}, offenders)
}
