// database/constraints.go
package database

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/jackc/pgx/v5"
)

// Tier orders schema object recreation after a bulk load.  Primary keys must
// exist for every table before any foreign key referencing them is added;
// secondary indexes come last because nothing depends on them.
type Tier int

const (
	TierPrimaryKey Tier = iota
	TierCheck
	TierForeignKey
	TierIndex
)

func (t Tier) String() string {
	switch t {
	case TierPrimaryKey:
		return "primary key"
	case TierCheck:
		return "check"
	case TierForeignKey:
		return "foreign key"
	case TierIndex:
		return "index"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// SchemaObject is one constraint or index dropped for load performance and
// recreated afterwards.  Keeping the full definition here makes the
// recreate order explicit data instead of something re-derived from catalog
// queries at run time.
type SchemaObject struct {
	Name      string
	Table     string
	Tier      Tier
	CreateSQL string
}

// DropSQL returns the statement that removes the object.
func (o SchemaObject) DropSQL() string {
	if o.Tier == TierIndex {
		return fmt.Sprintf("DROP INDEX IF EXISTS %s", o.Name)
	}
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", o.Table, o.Name)
}

// loadSchemaObjects lists every constraint and index on the fact and agency
// tables that the bulk loader drops before COPY.
var loadSchemaObjects = []SchemaObject{
	{"nc_stop_pkey", "nc_stop", TierPrimaryKey,
		"ALTER TABLE nc_stop ADD CONSTRAINT nc_stop_pkey PRIMARY KEY (stop_id)"},
	{"nc_person_pkey", "nc_person", TierPrimaryKey,
		"ALTER TABLE nc_person ADD CONSTRAINT nc_person_pkey PRIMARY KEY (person_id)"},
	{"nc_search_pkey", "nc_search", TierPrimaryKey,
		"ALTER TABLE nc_search ADD CONSTRAINT nc_search_pkey PRIMARY KEY (search_id)"},
	{"nc_contraband_pkey", "nc_contraband", TierPrimaryKey,
		"ALTER TABLE nc_contraband ADD CONSTRAINT nc_contraband_pkey PRIMARY KEY (contraband_id)"},
	{"nc_searchbasis_pkey", "nc_searchbasis", TierPrimaryKey,
		"ALTER TABLE nc_searchbasis ADD CONSTRAINT nc_searchbasis_pkey PRIMARY KEY (search_basis_id)"},
	{"nc_agency_pkey", "nc_agency", TierPrimaryKey,
		"ALTER TABLE nc_agency ADD CONSTRAINT nc_agency_pkey PRIMARY KEY (id)"},

	{"nc_stop_stop_id_check", "nc_stop", TierCheck,
		"ALTER TABLE nc_stop ADD CONSTRAINT nc_stop_stop_id_check CHECK (stop_id >= 0)"},
	{"nc_stop_purpose_check", "nc_stop", TierCheck,
		"ALTER TABLE nc_stop ADD CONSTRAINT nc_stop_purpose_check CHECK (purpose >= 0)"},
	{"nc_stop_action_check", "nc_stop", TierCheck,
		"ALTER TABLE nc_stop ADD CONSTRAINT nc_stop_action_check CHECK (action >= 0)"},
	{"nc_search_type_check", "nc_search", TierCheck,
		"ALTER TABLE nc_search ADD CONSTRAINT nc_search_type_check CHECK (type >= 0)"},
	{"nc_person_age_check", "nc_person", TierCheck,
		"ALTER TABLE nc_person ADD CONSTRAINT nc_person_age_check CHECK (age >= 0)"},

	{"nc_stop_agency_id_fk", "nc_stop", TierForeignKey,
		"ALTER TABLE nc_stop ADD CONSTRAINT nc_stop_agency_id_fk FOREIGN KEY (agency_id) REFERENCES nc_agency(id) DEFERRABLE INITIALLY DEFERRED"},
	{"nc_person_stop_id_fk", "nc_person", TierForeignKey,
		"ALTER TABLE nc_person ADD CONSTRAINT nc_person_stop_id_fk FOREIGN KEY (stop_id) REFERENCES nc_stop(stop_id) DEFERRABLE INITIALLY DEFERRED"},
	{"nc_search_stop_id_fk", "nc_search", TierForeignKey,
		"ALTER TABLE nc_search ADD CONSTRAINT nc_search_stop_id_fk FOREIGN KEY (stop_id) REFERENCES nc_stop(stop_id) DEFERRABLE INITIALLY DEFERRED"},
	{"nc_search_person_id_fk", "nc_search", TierForeignKey,
		"ALTER TABLE nc_search ADD CONSTRAINT nc_search_person_id_fk FOREIGN KEY (person_id) REFERENCES nc_person(person_id) DEFERRABLE INITIALLY DEFERRED"},
	{"nc_contraband_stop_id_fk", "nc_contraband", TierForeignKey,
		"ALTER TABLE nc_contraband ADD CONSTRAINT nc_contraband_stop_id_fk FOREIGN KEY (stop_id) REFERENCES nc_stop(stop_id) DEFERRABLE INITIALLY DEFERRED"},
	{"nc_contraband_search_id_fk", "nc_contraband", TierForeignKey,
		"ALTER TABLE nc_contraband ADD CONSTRAINT nc_contraband_search_id_fk FOREIGN KEY (search_id) REFERENCES nc_search(search_id) DEFERRABLE INITIALLY DEFERRED"},
	{"nc_contraband_person_id_fk", "nc_contraband", TierForeignKey,
		"ALTER TABLE nc_contraband ADD CONSTRAINT nc_contraband_person_id_fk FOREIGN KEY (person_id) REFERENCES nc_person(person_id) DEFERRABLE INITIALLY DEFERRED"},
	{"nc_searchbasis_stop_id_fk", "nc_searchbasis", TierForeignKey,
		"ALTER TABLE nc_searchbasis ADD CONSTRAINT nc_searchbasis_stop_id_fk FOREIGN KEY (stop_id) REFERENCES nc_stop(stop_id) DEFERRABLE INITIALLY DEFERRED"},
	{"nc_searchbasis_search_id_fk", "nc_searchbasis", TierForeignKey,
		"ALTER TABLE nc_searchbasis ADD CONSTRAINT nc_searchbasis_search_id_fk FOREIGN KEY (search_id) REFERENCES nc_search(search_id) DEFERRABLE INITIALLY DEFERRED"},
	{"nc_searchbasis_person_id_fk", "nc_searchbasis", TierForeignKey,
		"ALTER TABLE nc_searchbasis ADD CONSTRAINT nc_searchbasis_person_id_fk FOREIGN KEY (person_id) REFERENCES nc_person(person_id) DEFERRABLE INITIALLY DEFERRED"},

	{"nc_stop_agency_id_idx", "nc_stop", TierIndex,
		"CREATE INDEX nc_stop_agency_id_idx ON nc_stop USING btree (agency_id)"},
	{"nc_stop_date_idx", "nc_stop", TierIndex,
		"CREATE INDEX nc_stop_date_idx ON nc_stop USING btree (date)"},
	{"nc_person_stop_id_idx", "nc_person", TierIndex,
		"CREATE INDEX nc_person_stop_id_idx ON nc_person USING btree (stop_id)"},
	{"nc_search_stop_id_idx", "nc_search", TierIndex,
		"CREATE INDEX nc_search_stop_id_idx ON nc_search USING btree (stop_id)"},
	{"nc_search_person_id_idx", "nc_search", TierIndex,
		"CREATE INDEX nc_search_person_id_idx ON nc_search USING btree (person_id)"},
	{"nc_contraband_stop_id_idx", "nc_contraband", TierIndex,
		"CREATE INDEX nc_contraband_stop_id_idx ON nc_contraband USING btree (stop_id)"},
	{"nc_contraband_search_id_idx", "nc_contraband", TierIndex,
		"CREATE INDEX nc_contraband_search_id_idx ON nc_contraband USING btree (search_id)"},
	{"nc_contraband_person_id_idx", "nc_contraband", TierIndex,
		"CREATE INDEX nc_contraband_person_id_idx ON nc_contraband USING btree (person_id)"},
	{"nc_searchbasis_stop_id_idx", "nc_searchbasis", TierIndex,
		"CREATE INDEX nc_searchbasis_stop_id_idx ON nc_searchbasis USING btree (stop_id)"},
	{"nc_searchbasis_search_id_idx", "nc_searchbasis", TierIndex,
		"CREATE INDEX nc_searchbasis_search_id_idx ON nc_searchbasis USING btree (search_id)"},
	{"nc_searchbasis_person_id_idx", "nc_searchbasis", TierIndex,
		"CREATE INDEX nc_searchbasis_person_id_idx ON nc_searchbasis USING btree (person_id)"},
}

// RecreateOrder returns the schema objects sorted for recreation: primary
// keys first, then checks, foreign keys, and secondary indexes.  The sort is
// stable so objects within a tier keep declaration order.
func RecreateOrder() []SchemaObject {
	objects := make([]SchemaObject, len(loadSchemaObjects))
	copy(objects, loadSchemaObjects)
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].Tier < objects[j].Tier
	})
	return objects
}

// DropOrder returns the schema objects sorted for dropping, the reverse of
// the recreate order so nothing is removed while something else still
// depends on it.
func DropOrder() []SchemaObject {
	recreate := RecreateOrder()
	objects := make([]SchemaObject, len(recreate))
	for i, o := range recreate {
		objects[len(recreate)-1-i] = o
	}
	return objects
}

// dropConstraintsAndIndexes removes every catalogued constraint and index
// inside the load transaction.
func dropConstraintsAndIndexes(ctx context.Context, tx pgx.Tx) error {
	for _, object := range DropOrder() {
		if _, err := tx.Exec(ctx, object.DropSQL()); err != nil {
			return fmt.Errorf("failed to drop %s %s: %w", object.Tier, object.Name, err)
		}
	}
	log.Printf("DB: Dropped %d constraints and indexes for load\n", len(loadSchemaObjects))
	return nil
}

// recreateConstraintsAndIndexes adds everything back in dependency order.
func recreateConstraintsAndIndexes(ctx context.Context, tx pgx.Tx) error {
	for _, object := range RecreateOrder() {
		if _, err := tx.Exec(ctx, object.CreateSQL); err != nil {
			return fmt.Errorf("failed to recreate %s %s: %w", object.Tier, object.Name, err)
		}
	}
	log.Printf("DB: Recreated %d constraints and indexes\n", len(loadSchemaObjects))
	return nil
}
