// models/facts.go
package models

// StateFacts holds the top-line landing page numbers, recomputed in full
// after each successful load.
type StateFacts struct {
	StateKey           string `db:"state_key"`
	TotalStops         int64  `db:"total_stops"`
	TotalStopsMillions int64  `db:"total_stops_millions"`
	TotalSearches      int64  `db:"total_searches"`
	TotalAgencies      int64  `db:"total_agencies"`
	StartDate          string `db:"start_date"`
	EndDate            string `db:"end_date"`
}

// TopAgencyFacts ranks the five agencies with the most stops.
type TopAgencyFacts struct {
	Rank     int    `db:"rank"`
	AgencyID int    `db:"agency_id"`
	Stops    int64  `db:"stops"`
	Name     string `db:"name"`
}
