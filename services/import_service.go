// services/import_service.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opendatapolicing/trafficstops/config"
	"github.com/opendatapolicing/trafficstops/database"
	"github.com/opendatapolicing/trafficstops/importer"
	"github.com/opendatapolicing/trafficstops/models"
	"github.com/opendatapolicing/trafficstops/notify"
)

// StateKey identifies the one dataset this pipeline currently imports.
const StateKey = "nc"

// ImportOptions carries the trigger parameters for one run.
type ImportOptions struct {
	// URL is the source locator; models.MagicFTPURL selects the state's
	// secure FTP flow.  Empty means destination already holds the archive.
	URL string
	// Destination is the working directory; empty creates a temp directory
	// (only valid with a URL).
	Destination string
	// MinStopID/MaxStopID bound a development-scale partial run.  Provide
	// both or neither.
	MinStopID *int64
	MaxStopID *int64
	// PrimeCache asks the downstream reporting layer to warm its caches
	// after a successful run.  Cache priming itself is an external,
	// best-effort collaborator.
	PrimeCache bool
}

func (o ImportOptions) validate() error {
	if o.URL == "" && o.Destination == "" {
		return fmt.Errorf("destination must be provided when no URL is provided")
	}
	if (o.MinStopID == nil) != (o.MaxStopID == nil) {
		return fmt.Errorf("provide neither or both of min stop id and max stop id")
	}
	if o.MaxStopID != nil && *o.MinStopID > *o.MaxStopID {
		return fmt.Errorf("min stop id cannot be larger than max stop id")
	}
	return nil
}

// ExtractAlreadyImported reports whether the publisher's posted extract
// date is no newer than the last successful import, meaning a run would
// just reload the extract already in the database.
func ExtractAlreadyImported(posted time.Time, lastSuccessfulImport *time.Time) bool {
	if lastSuccessfulImport == nil {
		return false
	}
	return !posted.After(*lastSuccessfulImport)
}

// RunImport executes the pipeline stages in order: acquire, normalize,
// reconcile agencies, bulk load, then post-load consistency.  Stages 1-4
// are fail-fast; post-load failures are logged but do not fail the run,
// since the fact data is already durably committed by then.
func RunImport(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, mailer notify.Mailer, opts ImportOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}

	log.Println("Service: *** Data Import Started ***")

	destination := opts.Destination
	var err error
	if opts.URL == models.MagicFTPURL {
		destination, err = importer.FTPDownloadAndUnzip(cfg.FTP, destination)
	} else if opts.URL != "" {
		destination, err = importer.DownloadAndUnzip(opts.URL, destination)
	} else {
		destination, err = importer.EnsureDestination(destination)
	}
	if err != nil {
		return err
	}

	// Range-limited developer runs skip the facts start-date override,
	// since they do not represent the full dataset.
	overrideStartDate := cfg.Importer.OverrideStartDate
	if opts.MaxStopID != nil {
		if err := importer.TruncateInputData(destination, *opts.MinStopID, *opts.MaxStopID); err != nil {
			return err
		}
		overrideStartDate = ""
	}

	if err := importer.ConvertToCSV(destination); err != nil {
		return err
	}

	agencyCSVPath, err := UpdateAgencies(cfg.Importer.AgencyCSVPath, destination, mailer, cfg.Importer.MonitorEmails)
	if err != nil {
		return err
	}

	if err := database.BulkLoad(ctx, pool, destination, agencyCSVPath, cfg.Importer.TimeZone); err != nil {
		return err
	}
	log.Println("Service: Data Import Complete")

	// The authoritative data is committed; everything past this point is
	// logged rather than failing the run.
	runPostLoadConsistency(ctx, pool, cfg, overrideStartDate)

	if opts.PrimeCache {
		log.Println("Service: Downstream cache priming requested; delegated to the reporting layer")
	}
	return nil
}

// runPostLoadConsistency brings the dataset to its externally-visible
// steady state: prune old history, rebuild derived aggregates, recompute
// landing page facts.
func runPostLoadConsistency(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, overrideStartDate string) {
	cutoff, err := cfg.PruneCutoff()
	if err != nil {
		log.Printf("ERROR Service: %v\n", err)
		return
	}
	if err := database.PruneHistoricalStops(ctx, pool, cutoff, cfg.Importer.PruneExemptAgency); err != nil {
		log.Printf("ERROR Service: Failed to prune historical stops: %v\n", err)
	}

	if err := database.RefreshAggregates(ctx, pool); err != nil {
		log.Printf("ERROR Service: Failed to rebuild derived aggregates: %v\n", err)
	}

	if err := RecomputeStateFacts(ctx, pool, overrideStartDate); err != nil {
		log.Printf("ERROR Service: Failed to recompute dataset facts: %v\n", err)
	}
}

// ImportDataset wraps RunImport with ImportRun bookkeeping and outcome
// notification, then generates the compliance report.  This is the
// synchronous trigger interface for schedulers.
func ImportDataset(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, mailer notify.Mailer, dataset *models.Dataset, opts ImportOptions) error {
	log.Printf("Service: Starting %s import\n", dataset.State)
	run, err := database.CreateImportRun(ctx, pool, dataset.ID)
	if err != nil {
		return err
	}

	importErr := RunImport(ctx, pool, cfg, mailer, opts)
	if finishErr := database.FinishImportRun(ctx, pool, &run, importErr == nil); finishErr != nil {
		log.Printf("ERROR Service: %v\n", finishErr)
	}
	if importErr != nil {
		return importErr
	}
	log.Println("Service: Import complete")

	if emails := dataset.ReportEmails(); len(emails) > 0 {
		err := mailer.Send(notify.Message{
			Subject: "Import completed successfully",
			Body:    fmt.Sprintf("Import of %s: %s completed successfully", dataset.State, dataset.Name),
			To:      emails,
		})
		if err != nil {
			log.Printf("ERROR Service: Failed to send completion notification: %v\n", err)
		}
	}

	if err := ComplianceReport(ctx, pool, cfg, mailer); err != nil {
		log.Printf("ERROR Service: Failed to generate compliance report: %v\n", err)
	}
	return nil
}
