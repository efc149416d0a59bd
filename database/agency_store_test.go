package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPruneDeleteOrderIsChildBeforeParent(t *testing.T) {
	var tables []string
	for _, step := range pruneDeleteOrder {
		tables = append(tables, step.table)
	}
	// Dependents go before the tables they reference, and the stop table —
	// which everything else joins through — is deleted from last.
	assert.Equal(t,
		[]string{"nc_searchbasis", "nc_contraband", "nc_search", "nc_person", "nc_stop"},
		tables)
}

func TestPruneDeleteStepsShareCutoffAndExemption(t *testing.T) {
	require.NotEmpty(t, pruneDeleteOrder)

	for _, step := range pruneDeleteOrder {
		assert.Contains(t, step.sql, "DELETE FROM "+step.table,
			"%s step deletes from the wrong table", step.table)
		// Every step keys off the same cutoff/exempt-agency pair, so one
		// (cutoff, exemptID) argument list prunes the whole hierarchy.
		assert.Contains(t, step.sql, "nc_stop.date < $1", step.table)
		assert.Contains(t, step.sql, "nc_stop.agency_id <> $2", step.table)
		if step.table != "nc_stop" {
			assert.Contains(t, step.sql, "USING nc_stop", step.table)
			assert.Contains(t, step.sql, step.table+".stop_id = nc_stop.stop_id", step.table)
		}
	}
}
