// database/agency_store.go
package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opendatapolicing/trafficstops/models"
)

// UpdateLastReportedStops recomputes each agency's most recent stop date
// from the fact data.  Agencies with no stops get NULL.  This is the one
// mutation agencies receive after creation.
func UpdateLastReportedStops(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		UPDATE nc_agency
		SET last_reported_stop = (
			SELECT MAX(date) FROM nc_stop WHERE nc_stop.agency_id = nc_agency.id
		)`)
	if err != nil {
		return fmt.Errorf("failed to update agency last reported stops: %w", err)
	}
	return nil
}

// OutOfComplianceAgencies returns agencies whose most recent stop is older
// than the lookback window, or that have never reported.  Ordered by last
// reported date descending, never-reported agencies last.
func OutOfComplianceAgencies(ctx context.Context, pool *pgxpool.Pool, now time.Time, lookbackDays int) ([]models.Agency, error) {
	cutoff := now.AddDate(0, 0, -lookbackDays)
	rows, err := pool.Query(ctx, `
		SELECT id, name, last_reported_stop
		FROM nc_agency
		WHERE last_reported_stop < $1 OR last_reported_stop IS NULL
		ORDER BY last_reported_stop DESC NULLS LAST`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query out-of-compliance agencies: %w", err)
	}
	defer rows.Close()

	var agencies []models.Agency
	for rows.Next() {
		var agency models.Agency
		if err := rows.Scan(&agency.ID, &agency.Name, &agency.LastReportedStop); err != nil {
			return nil, fmt.Errorf("failed to scan agency: %w", err)
		}
		agencies = append(agencies, agency)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read out-of-compliance agencies: %w", err)
	}
	return agencies, nil
}

// pruneDeleteOrder removes historical fact rows strictly child-before-parent
// so no delete ever breaks a foreign key: SearchBasis and Contraband
// reference Search, Person, and Stop; Search references Person and Stop;
// Person references Stop.
var pruneDeleteOrder = []struct {
	table string
	sql   string
}{
	{"nc_searchbasis", `
		DELETE FROM nc_searchbasis USING nc_stop
		WHERE nc_searchbasis.stop_id = nc_stop.stop_id
		  AND nc_stop.date < $1 AND nc_stop.agency_id <> $2`},
	{"nc_contraband", `
		DELETE FROM nc_contraband USING nc_stop
		WHERE nc_contraband.stop_id = nc_stop.stop_id
		  AND nc_stop.date < $1 AND nc_stop.agency_id <> $2`},
	{"nc_search", `
		DELETE FROM nc_search USING nc_stop
		WHERE nc_search.stop_id = nc_stop.stop_id
		  AND nc_stop.date < $1 AND nc_stop.agency_id <> $2`},
	{"nc_person", `
		DELETE FROM nc_person USING nc_stop
		WHERE nc_person.stop_id = nc_stop.stop_id
		  AND nc_stop.date < $1 AND nc_stop.agency_id <> $2`},
	{"nc_stop", `
		DELETE FROM nc_stop
		WHERE nc_stop.date < $1 AND nc_stop.agency_id <> $2`},
}

// PruneHistoricalStops deletes stops (and their dependents) older than
// cutoff, except for the named exempt agency, which reported consistently
// before the general cutoff and keeps its early history.
func PruneHistoricalStops(ctx context.Context, pool *pgxpool.Pool, cutoff time.Time, exemptAgency string) error {
	var exemptID int
	err := pool.QueryRow(ctx, "SELECT id FROM nc_agency WHERE name = $1", exemptAgency).Scan(&exemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("prune exempt agency %q not found in agency table", exemptAgency)
	}
	if err != nil {
		return fmt.Errorf("failed to look up exempt agency %q: %w", exemptAgency, err)
	}

	for _, step := range pruneDeleteOrder {
		tag, err := pool.Exec(ctx, step.sql, cutoff, exemptID)
		if err != nil {
			return fmt.Errorf("failed to prune %s: %w", step.table, err)
		}
		log.Printf("DB: Pruned %d rows from %s before %s\n",
			tag.RowsAffected(), step.table, cutoff.Format("2006-01-02"))
	}
	return nil
}

// materializedViews are the derived aggregates consumed by the reporting
// layer.  They are rebuilt in full after every load; there is no
// change-data-capture to refresh them incrementally.
var materializedViews = []string{
	"nc_stopsummary",
	"nc_contrabandsummary",
}

// RefreshAggregates rebuilds every derived materialized aggregate.
func RefreshAggregates(ctx context.Context, pool *pgxpool.Pool) error {
	for _, view := range materializedViews {
		log.Printf("DB: Refreshing materialized view %s\n", view)
		if _, err := pool.Exec(ctx, "REFRESH MATERIALIZED VIEW "+view); err != nil {
			return fmt.Errorf("failed to refresh materialized view %s: %w", view, err)
		}
	}
	return nil
}
