// models/dataset.go
package models

import "time"

// MagicFTPURL is the sentinel URL that selects the state's secure FTP
// download flow instead of a plain HTTPS fetch.
const MagicFTPURL = "ftp://nc.us/"

// Dataset describes one importable source extract.  A scheduler or operator
// creates it before each run; it is not modified while the run executes.
type Dataset struct {
	ID           int64     `db:"id"`
	State        string    `db:"state"`
	Name         string    `db:"name"`
	DateAdded    time.Time `db:"date_added"`
	DateReceived time.Time `db:"date_received"`
	URL          string    `db:"url"`
	Destination  string    `db:"destination"`
	ReportEmail1 string    `db:"report_email_1"`
	ReportEmail2 string    `db:"report_email_2"`
}

// ReportEmails returns the configured notification addresses, skipping
// blanks.
func (d *Dataset) ReportEmails() []string {
	var emails []string
	for _, email := range []string{d.ReportEmail1, d.ReportEmail2} {
		if email != "" {
			emails = append(emails, email)
		}
	}
	return emails
}

// ImportRun records one execution of the pipeline against a Dataset.
type ImportRun struct {
	ID           int64      `db:"id"`
	DatasetID    int64      `db:"dataset_id"`
	DateStarted  time.Time  `db:"date_started"`
	DateFinished *time.Time `db:"date_finished"`
	Successful   bool       `db:"successful"`
}
