// services/compliance_service.go
package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jszwec/csvutil"

	"github.com/opendatapolicing/trafficstops/config"
	"github.com/opendatapolicing/trafficstops/database"
	"github.com/opendatapolicing/trafficstops/models"
	"github.com/opendatapolicing/trafficstops/notify"
)

const complianceDateLayout = "2006-01-02"

// ComplianceReport flags agencies that have not reported a stop within the
// lookback window and mails the configured recipients a CSV of them.  When
// every agency is current, a plain all-clear message is sent instead.
func ComplianceReport(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, mailer notify.Mailer) error {
	return complianceReportAt(ctx, pool, cfg, mailer, time.Now())
}

func complianceReportAt(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, mailer notify.Mailer, now time.Time) error {
	log.Println("Service: Generating compliance report")
	if len(cfg.Compliance.Recipients) == 0 {
		return nil
	}

	log.Println("Service: Updating agency last reported stops")
	if err := database.UpdateLastReportedStops(ctx, pool); err != nil {
		return err
	}

	agencies, err := database.OutOfComplianceAgencies(ctx, pool, now, cfg.Compliance.LookbackDays)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s Compliance Report, %s",
		strings.ToUpper(StateKey), now.Format(complianceDateLayout))

	if len(agencies) == 0 {
		return mailer.Send(notify.Message{
			Subject: subject,
			Body: fmt.Sprintf("All agencies have reported within the last %d days.",
				cfg.Compliance.LookbackDays),
			To: cfg.Compliance.Recipients,
		})
	}

	report, err := BuildComplianceCSV(agencies)
	if err != nil {
		return err
	}
	return mailer.Send(notify.Message{
		Subject: subject,
		Body:    "Attached are the agencies out of compliance in the most recent data import.",
		To:      cfg.Compliance.Recipients,
		Attachment: &notify.Attachment{
			Filename: "report.csv",
			Content:  report,
			MIMEType: "text/csv",
		},
	})
}

// BuildComplianceCSV renders the report artifact: header
// id,name,last_reported_stop, dates as YYYY-MM-DD, agencies ordered by last
// reported date descending with never-reported agencies last.
func BuildComplianceCSV(agencies []models.Agency) ([]byte, error) {
	sorted := make([]models.Agency, len(agencies))
	copy(sorted, agencies)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].LastReportedStop, sorted[j].LastReportedStop
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	encoder := csvutil.NewEncoder(writer)
	for _, agency := range sorted {
		row := models.ComplianceRow{ID: agency.ID, Name: agency.Name}
		if agency.LastReportedStop != nil {
			row.LastReportedStop = agency.LastReportedStop.Format(complianceDateLayout)
		}
		if err := encoder.Encode(row); err != nil {
			return nil, fmt.Errorf("failed to encode compliance row for %q: %w", agency.Name, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush compliance report: %w", err)
	}
	return buf.Bytes(), nil
}
