package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecreateOrderTiers(t *testing.T) {
	objects := RecreateOrder()
	require.NotEmpty(t, objects)

	// Tiers never go backwards: every primary key precedes every foreign
	// key, and every foreign key precedes every secondary index.
	for i := 1; i < len(objects); i++ {
		assert.LessOrEqual(t, objects[i-1].Tier, objects[i].Tier,
			"%s must not come after %s", objects[i-1].Name, objects[i].Name)
	}
}

func TestRecreateOrderCoversAllTablePrimaryKeys(t *testing.T) {
	tables := map[string]bool{}
	for _, object := range RecreateOrder() {
		if object.Tier == TierPrimaryKey {
			tables[object.Table] = true
		}
	}
	for _, table := range []string{"nc_stop", "nc_person", "nc_search", "nc_contraband", "nc_searchbasis", "nc_agency"} {
		assert.True(t, tables[table], "missing primary key for %s", table)
	}
}

func TestDropOrderIsReverseOfRecreateOrder(t *testing.T) {
	recreate := RecreateOrder()
	drop := DropOrder()
	require.Equal(t, len(recreate), len(drop))
	for i := range recreate {
		assert.Equal(t, recreate[i].Name, drop[len(drop)-1-i].Name)
	}
	// Indexes go first on the way down.
	assert.Equal(t, TierIndex, drop[0].Tier)
	assert.Equal(t, TierPrimaryKey, drop[len(drop)-1].Tier)
}

func TestDropSQLShape(t *testing.T) {
	for _, object := range RecreateOrder() {
		sql := object.DropSQL()
		if object.Tier == TierIndex {
			assert.True(t, strings.HasPrefix(sql, "DROP INDEX IF EXISTS "), sql)
		} else {
			assert.Contains(t, sql, "DROP CONSTRAINT IF EXISTS "+object.Name)
			assert.Contains(t, sql, object.Table)
		}
	}
}

func TestFactCopySpecsMatchTruncatedTables(t *testing.T) {
	truncated := map[string]bool{}
	for _, table := range truncateOrder {
		truncated[table] = true
	}
	for _, spec := range factCopySpecs {
		assert.True(t, truncated[spec.Table], "%s is copied but never truncated", spec.Table)
		assert.Contains(t, spec.SQL, "COPY "+spec.Table+" (")
		assert.Contains(t, spec.SQL, "FROM STDIN")
	}
	assert.True(t, truncated[agencyCopySpec.Table])
}

func TestStopCopyForcesAgencyDescriptionNotNull(t *testing.T) {
	var stopSpec CopySpec
	for _, spec := range factCopySpecs {
		if spec.Table == "nc_stop" {
			stopSpec = spec
		}
	}
	require.NotEmpty(t, stopSpec.SQL)

	// A blank agency name must load as '' so the name join leaves it
	// unresolved and it gets enumerated, rather than becoming SQL NULL.
	forced := stopSpec.SQL[strings.Index(stopSpec.SQL, "FORCE NOT NULL"):]
	assert.Contains(t, forced, "agency_description")
}
