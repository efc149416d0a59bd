// database/facts_store.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opendatapolicing/trafficstops/models"
)

const factsDateLayout = "Jan 02, 2006"

const topAgencyCount = 5

// ComputeStateFacts derives the landing page numbers from the loaded fact
// tables.  overrideStartDate, when non-empty, replaces the computed start
// date (full-history runs pretend the dataset begins at the prune cutoff).
func ComputeStateFacts(ctx context.Context, pool *pgxpool.Pool, stateKey, overrideStartDate string) (*models.StateFacts, error) {
	facts := &models.StateFacts{StateKey: stateKey}

	err := pool.QueryRow(ctx, "SELECT count(*) FROM nc_stop").Scan(&facts.TotalStops)
	if err != nil {
		return nil, fmt.Errorf("failed to count stops: %w", err)
	}
	facts.TotalStopsMillions = facts.TotalStops / 1_000_000

	err = pool.QueryRow(ctx, "SELECT count(*) FROM nc_search").Scan(&facts.TotalSearches)
	if err != nil {
		return nil, fmt.Errorf("failed to count searches: %w", err)
	}

	err = pool.QueryRow(ctx, "SELECT count(*) FROM nc_agency").Scan(&facts.TotalAgencies)
	if err != nil {
		return nil, fmt.Errorf("failed to count agencies: %w", err)
	}

	var startDate, endDate *time.Time
	err = pool.QueryRow(ctx, "SELECT MIN(date), MAX(date) FROM nc_stop").Scan(&startDate, &endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query stop date range: %w", err)
	}
	if startDate != nil {
		facts.StartDate = startDate.Format(factsDateLayout)
	}
	if endDate != nil {
		facts.EndDate = endDate.Format(factsDateLayout)
	}
	if overrideStartDate != "" {
		facts.StartDate = overrideStartDate
	}

	return facts, nil
}

// TopAgencies returns the agencies with the most stops, ranked from 1.
func TopAgencies(ctx context.Context, pool *pgxpool.Pool) ([]models.TopAgencyFacts, error) {
	rows, err := pool.Query(ctx, `
		SELECT nc_agency.id, nc_agency.name, count(*) AS stops
		FROM nc_stop
		JOIN nc_agency ON nc_agency.id = nc_stop.agency_id
		GROUP BY nc_agency.id, nc_agency.name
		ORDER BY stops DESC
		LIMIT $1`, topAgencyCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query top agencies: %w", err)
	}
	defer rows.Close()

	var top []models.TopAgencyFacts
	rank := 0
	for rows.Next() {
		rank++
		fact := models.TopAgencyFacts{Rank: rank}
		if err := rows.Scan(&fact.AgencyID, &fact.Name, &fact.Stops); err != nil {
			return nil, fmt.Errorf("failed to scan top agency: %w", err)
		}
		top = append(top, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read top agencies: %w", err)
	}
	return top, nil
}

// SaveStateFacts replaces the stored facts for a state, including the
// top-agency rankings.
func SaveStateFacts(ctx context.Context, pool *pgxpool.Pool, facts *models.StateFacts, top []models.TopAgencyFacts) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin facts transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM tsdata_topagencyfacts
		USING tsdata_statefacts
		WHERE tsdata_topagencyfacts.state_facts_id = tsdata_statefacts.id
		  AND tsdata_statefacts.state_key = $1`, facts.StateKey)
	if err != nil {
		return fmt.Errorf("failed to clear top agency facts: %w", err)
	}

	var stateFactsID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO tsdata_statefacts
			(state_key, total_stops, total_stops_millions, total_searches, total_agencies, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (state_key) DO UPDATE SET
			total_stops = EXCLUDED.total_stops,
			total_stops_millions = EXCLUDED.total_stops_millions,
			total_searches = EXCLUDED.total_searches,
			total_agencies = EXCLUDED.total_agencies,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date
		RETURNING id`,
		facts.StateKey, facts.TotalStops, facts.TotalStopsMillions,
		facts.TotalSearches, facts.TotalAgencies, facts.StartDate, facts.EndDate,
	).Scan(&stateFactsID)
	if err != nil {
		return fmt.Errorf("failed to save state facts: %w", err)
	}

	for _, fact := range top {
		_, err = tx.Exec(ctx, `
			INSERT INTO tsdata_topagencyfacts (state_facts_id, rank, agency_id, stops, name)
			VALUES ($1, $2, $3, $4, $5)`,
			stateFactsID, fact.Rank, fact.AgencyID, fact.Stops, fact.Name)
		if err != nil {
			return fmt.Errorf("failed to save top agency facts for %q: %w", fact.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit facts: %w", err)
	}
	return nil
}
