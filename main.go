// main.go
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/opendatapolicing/trafficstops/config"
	"github.com/opendatapolicing/trafficstops/database"
	"github.com/opendatapolicing/trafficstops/importer"
	"github.com/opendatapolicing/trafficstops/models"
	"github.com/opendatapolicing/trafficstops/notify"
	"github.com/opendatapolicing/trafficstops/services"
)

const defaultDatasetName = "Automated NC import"

func main() {
	log.Println("Starting traffic stops data import...")

	configPath := flag.String("config", "config.yaml", "path to configuration file")
	datasetName := flag.String("dataset", defaultDatasetName, "dataset name to record this run against")
	url := flag.String("url", models.MagicFTPURL, "source URL; "+models.MagicFTPURL+" selects the state FTP flow; empty uses an already-downloaded archive in the destination")
	destination := flag.String("destination", "", "working directory; overrides the configured destination")
	minStopID := flag.Int64("min-stop-id", 0, "development: only process stops with ids >= this value")
	maxStopID := flag.Int64("max-stop-id", 0, "development: only process stops with ids <= this value")
	primeCache := flag.Bool("prime-cache", true, "request downstream cache priming after a successful run")
	complianceOnly := flag.Bool("compliance-only", false, "skip the import and only generate the compliance report")
	flag.Parse()

	// .env carries PGPASSWORD / FTP_PASSWORD / SMTP_PASSWORD overrides.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer pool.Close()

	mailer := notify.NewSMTPMailer(cfg.SMTP)

	if *complianceOnly {
		if err := services.ComplianceReport(ctx, pool, cfg, mailer); err != nil {
			log.Fatalf("Error generating compliance report: %v", err)
		}
		return
	}

	// When the publication page is configured, check the posted extract date
	// first and skip the run when nothing new has been published.  Either
	// check failing is logged and the run proceeds.
	if cfg.Importer.PublicationPageURL != "" {
		posted, err := importer.GetPostedExtractDate(
			cfg.Importer.PublicationPageURL, cfg.Importer.PublicationDateSelector)
		if err != nil {
			log.Printf("ERROR Service: Failed to read posted extract date, proceeding: %v", err)
		} else if last, err := database.LastSuccessfulImport(ctx, pool); err != nil {
			log.Printf("ERROR Service: Failed to look up last successful import, proceeding: %v", err)
		} else if services.ExtractAlreadyImported(posted, last) {
			log.Printf("Extract posted %s is not newer than the last successful import; nothing to do",
				posted.Format("2006-01-02"))
			return
		}
	}

	dest := cfg.Importer.DestinationDir
	if *destination != "" {
		dest = *destination
	}

	// Each scheduled run supersedes the previous definition under the same
	// name.
	if err := database.DeleteDatasetByName(ctx, pool, *datasetName); err != nil {
		log.Fatalf("Error replacing dataset definition: %v", err)
	}
	dataset := &models.Dataset{
		State: services.StateKey,
		Name:  *datasetName,
		// The extract is regenerated nightly, so the data is as of
		// yesterday.
		DateReceived: time.Now().AddDate(0, 0, -1),
		URL:          *url,
		Destination:  dest,
	}
	if len(cfg.Importer.MonitorEmails) >= 1 {
		dataset.ReportEmail1 = cfg.Importer.MonitorEmails[0]
	}
	if len(cfg.Importer.MonitorEmails) >= 2 {
		dataset.ReportEmail2 = cfg.Importer.MonitorEmails[1]
	}
	if err := database.InsertDataset(ctx, pool, dataset); err != nil {
		log.Fatalf("Error recording dataset: %v", err)
	}

	opts := services.ImportOptions{
		URL:         *url,
		Destination: dest,
		PrimeCache:  *primeCache,
	}
	// Each bound is passed through independently; options validation rejects
	// a half-specified range.
	if *minStopID > 0 {
		opts.MinStopID = minStopID
	}
	if *maxStopID > 0 {
		opts.MaxStopID = maxStopID
	}

	if err := services.ImportDataset(ctx, pool, cfg, mailer, dataset, opts); err != nil {
		log.Fatalf("Import failed: %v", err)
	}
}
