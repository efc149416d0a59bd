// models/agency.go
package models

import "time"

// Agency is the stable reference dimension for law-enforcement agencies.
// Ids are append-only: once assigned to a name they are never reused or
// renumbered, so agency URLs stay stable across imports.
//
// CSV tags match the columns of the agency reference artifact
// (NC_agencies.csv).  LastReportedStop is derived from the fact data and is
// not part of the artifact.
type Agency struct {
	ID              int    `csv:"id" db:"id"`
	Name            string `csv:"name" db:"name"`
	CensusProfileID string `csv:"census_profile_id" db:"census_profile_id"`

	LastReportedStop *time.Time `csv:"-" db:"last_reported_stop"`
}

// ComplianceRow is one line of the compliance report artifact.
// LastReportedStop is formatted YYYY-MM-DD, or empty for agencies that have
// never reported.
type ComplianceRow struct {
	ID               int    `csv:"id"`
	Name             string `csv:"name"`
	LastReportedStop string `csv:"last_reported_stop"`
}
