// database/import_store.go
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opendatapolicing/trafficstops/models"
)

// DeleteDatasetByName removes a superseded dataset definition (and its
// import runs, via cascade) so a scheduler can replace it.
func DeleteDatasetByName(ctx context.Context, pool *pgxpool.Pool, name string) error {
	tag, err := pool.Exec(ctx, "DELETE FROM tsdata_dataset WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("failed to delete dataset %q: %w", name, err)
	}
	if tag.RowsAffected() > 0 {
		log.Printf("DB: Deleted superseded dataset %q\n", name)
	}
	return nil
}

// InsertDataset stores a new dataset definition and fills in its id.
func InsertDataset(ctx context.Context, pool *pgxpool.Pool, dataset *models.Dataset) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO tsdata_dataset
			(state, name, date_added, date_received, url, destination, report_email_1, report_email_2)
		VALUES ($1, $2, now(), $3, $4, $5, $6, $7)
		RETURNING id, date_added`,
		dataset.State, dataset.Name, dataset.DateReceived, dataset.URL,
		dataset.Destination, dataset.ReportEmail1, dataset.ReportEmail2,
	).Scan(&dataset.ID, &dataset.DateAdded)
	if err != nil {
		return fmt.Errorf("failed to insert dataset %q: %w", dataset.Name, err)
	}
	return nil
}

// CreateImportRun records the start of a pipeline execution.
func CreateImportRun(ctx context.Context, pool *pgxpool.Pool, datasetID int64) (models.ImportRun, error) {
	run := models.ImportRun{DatasetID: datasetID}
	err := pool.QueryRow(ctx, `
		INSERT INTO tsdata_import (dataset_id, date_started, successful)
		VALUES ($1, now(), false)
		RETURNING id, date_started`, datasetID,
	).Scan(&run.ID, &run.DateStarted)
	if err != nil {
		return models.ImportRun{}, fmt.Errorf("failed to create import run: %w", err)
	}
	return run, nil
}

// FinishImportRun stamps the run's finish time and outcome.  This is the
// one update an ImportRun ever receives.
func FinishImportRun(ctx context.Context, pool *pgxpool.Pool, run *models.ImportRun, successful bool) error {
	err := pool.QueryRow(ctx, `
		UPDATE tsdata_import
		SET date_finished = now(), successful = $2
		WHERE id = $1
		RETURNING date_finished`, run.ID, successful,
	).Scan(&run.DateFinished)
	if err != nil {
		return fmt.Errorf("failed to finish import run %d: %w", run.ID, err)
	}
	run.Successful = successful
	return nil
}

// LastSuccessfulImport returns the finish time of the most recent
// successful run, or nil when no import has ever completed.
func LastSuccessfulImport(ctx context.Context, pool *pgxpool.Pool) (*time.Time, error) {
	var finished *time.Time
	err := pool.QueryRow(ctx,
		"SELECT MAX(date_finished) FROM tsdata_import WHERE successful",
	).Scan(&finished)
	if err != nil {
		return nil, fmt.Errorf("failed to query last successful import: %w", err)
	}
	return finished, nil
}
