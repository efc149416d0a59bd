// services/facts_service.go
package services

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opendatapolicing/trafficstops/database"
)

// RecomputeStateFacts rebuilds the landing page summary (total stops,
// searches, agencies, date range) and the top-agency rankings from the
// freshly loaded fact tables.
func RecomputeStateFacts(ctx context.Context, pool *pgxpool.Pool, overrideStartDate string) error {
	facts, err := database.ComputeStateFacts(ctx, pool, StateKey, overrideStartDate)
	if err != nil {
		return err
	}
	top, err := database.TopAgencies(ctx, pool)
	if err != nil {
		return err
	}
	if err := database.SaveStateFacts(ctx, pool, facts, top); err != nil {
		return err
	}
	log.Printf("Service: Dataset facts: %+v\n", *facts)
	return nil
}
