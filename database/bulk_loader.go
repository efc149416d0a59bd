// database/bulk_loader.go
package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnresolvedAgency is returned when a stop names an agency that has no
// entry in the agency reference table.  This is an error, not a row to drop:
// it means the reconciliation stage missed a name.
var ErrUnresolvedAgency = errors.New("stop references an agency with no reference entry")

// CopySpec maps one normalized CSV file to its COPY statement.  The column
// lists translate the positional columns written by the normalizer into real
// schema columns; FORCE NOT NULL keeps empty strings as values for text
// columns where an empty string is meaningful.
type CopySpec struct {
	File  string
	Table string
	SQL   string
}

var factCopySpecs = []CopySpec{
	{"Stop.csv", "nc_stop",
		"COPY nc_stop (stop_id, agency_description, date, purpose, action, driver_arrest, passenger_arrest, encounter_force, engage_force, officer_injury, driver_injury, passenger_injury, officer_id, stop_location, stop_city) FROM STDIN WITH DELIMITER ',' NULL AS '' CSV HEADER FORCE NOT NULL agency_description, officer_id, stop_city, stop_location"},
	{"PERSON.csv", "nc_person",
		"COPY nc_person (person_id, stop_id, type, age, gender, ethnicity, race) FROM STDIN WITH DELIMITER ',' NULL AS '' CSV HEADER FORCE NOT NULL ethnicity, gender, race"},
	{"Search.csv", "nc_search",
		"COPY nc_search (search_id, stop_id, person_id, type, vehicle_search, driver_search, passenger_search, property_search, vehicle_siezed, personal_property_siezed, other_property_sized) FROM STDIN WITH DELIMITER ',' NULL AS '' CSV HEADER"},
	{"Contraband.csv", "nc_contraband",
		"COPY nc_contraband (contraband_id, search_id, person_id, stop_id, ounces, pounds, pints, gallons, dosages, grams, kilos, money, weapons, dollar_amount) FROM STDIN WITH DELIMITER ',' CSV HEADER"},
	{"SearchBasis.csv", "nc_searchbasis",
		"COPY nc_searchbasis (search_basis_id, search_id, person_id, stop_id, basis) FROM STDIN WITH DELIMITER ',' CSV HEADER"},
}

var agencyCopySpec = CopySpec{"NC_agencies.csv", "nc_agency",
	"COPY nc_agency (id, name, census_profile_id) FROM STDIN WITH DELIMITER ',' CSV HEADER FORCE NOT NULL census_profile_id"}

// truncateOrder clears every affected table before COPY.  CASCADE covers the
// dependents that still hold foreign keys at this point, and RESTART
// IDENTITY resets sequences so each generation starts clean.
var truncateOrder = []string{
	"nc_stop",
	"nc_person",
	"nc_search",
	"nc_searchbasis",
	"nc_contraband",
	"nc_agency",
}

// BulkLoad replaces the contents of the agency and fact tables with the
// normalized files in destination, inside a single transaction:
//
//	drop constraints/indexes -> truncate -> SET TIMEZONE -> COPY agency ->
//	COPY facts -> resolve agency foreign keys -> restore timezone ->
//	recreate constraints/indexes -> ANALYZE -> commit
//
// Any error rolls the whole transaction back; readers never see a partial
// generation.
func BulkLoad(ctx context.Context, pool *pgxpool.Pool, destination, agencyCSVPath, timeZone string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for bulk load: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin bulk load transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := dropConstraintsAndIndexes(ctx, tx); err != nil {
		return err
	}

	for _, table := range truncateOrder {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}

	// Stop timestamps in the extract are local times; the session zone
	// controls how COPY interprets them.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET TIMEZONE='%s'", timeZone)); err != nil {
		return fmt.Errorf("failed to set session time zone: %w", err)
	}

	if err := copyFile(ctx, tx, agencyCSVPath, agencyCopySpec); err != nil {
		return err
	}

	for _, spec := range factCopySpecs {
		csvPath := filepath.Join(destination, spec.File)
		if _, err := os.Stat(csvPath); os.IsNotExist(err) {
			log.Printf("DB: %s not present, skipping %s\n", spec.File, spec.Table)
			continue
		}
		if err := copyFile(ctx, tx, csvPath, spec); err != nil {
			return err
		}
	}

	if err := resolveAgencyForeignKeys(ctx, tx); err != nil {
		return err
	}

	// Back to a neutral zone before committing, so later statements in the
	// transaction and any session reuse see consistent timestamps.
	if _, err := tx.Exec(ctx, "SET TIMEZONE='UTC'"); err != nil {
		return fmt.Errorf("failed to restore session time zone: %w", err)
	}

	if err := recreateConstraintsAndIndexes(ctx, tx); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("failed to refresh table statistics: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bulk load: %w", err)
	}
	log.Println("DB: Bulk load committed")
	return nil
}

// copyFile streams one CSV file into its table via COPY FROM STDIN.
func copyFile(ctx context.Context, tx pgx.Tx, csvPath string, spec CopySpec) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", csvPath, err)
	}
	defer f.Close()

	log.Printf("DB: INSERTING %s into %s\n", filepath.Base(csvPath), spec.Table)
	tag, err := tx.Conn().PgConn().CopyFrom(ctx, f, spec.SQL)
	if err != nil {
		return fmt.Errorf("failed to COPY %s into %s: %w", csvPath, spec.Table, err)
	}
	log.Printf("DB: Copied %d rows into %s\n", tag.RowsAffected(), spec.Table)
	return nil
}

// resolveAgencyForeignKeys joins each stop's raw agency name against the
// freshly loaded agency table and writes the resolved id.  Stops whose name
// matches nothing are an enumerated failure, not silently dropped rows.
func resolveAgencyForeignKeys(ctx context.Context, tx pgx.Tx) error {
	tag, err := tx.Exec(ctx,
		"UPDATE nc_stop SET agency_id = nc_agency.id FROM nc_agency WHERE nc_stop.agency_description = nc_agency.name")
	if err != nil {
		return fmt.Errorf("failed to resolve agency foreign keys: %w", err)
	}
	log.Printf("DB: Resolved agency ids for %d stops\n", tag.RowsAffected())

	// COALESCE keeps a blank agency name reportable: agency_description is
	// forced non-null on COPY, but a NULL slipping in otherwise must still
	// surface as an unresolved name, not a scan failure.
	rows, err := tx.Query(ctx,
		"SELECT DISTINCT COALESCE(agency_description, '') FROM nc_stop WHERE agency_id IS NULL")
	if err != nil {
		return fmt.Errorf("failed to check for unresolved agency names: %w", err)
	}
	defer rows.Close()

	var unresolved []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan unresolved agency name: %w", err)
		}
		unresolved = append(unresolved, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read unresolved agency names: %w", err)
	}
	if len(unresolved) > 0 {
		return fmt.Errorf("%w: %s", ErrUnresolvedAgency, strings.Join(unresolved, ", "))
	}
	return nil
}
