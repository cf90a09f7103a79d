package dat

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// newInputDB builds a minimal input database covering sets with flag
// filters, a scalar param, and a multi-index param.
func newInputDB(t *testing.T) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE time_periods (t INTEGER, flag TEXT)`,
		`INSERT INTO time_periods VALUES (1970,'e'),(1990,'f'),(2000,'f'),(2010,'f')`,
		`CREATE TABLE regions (r TEXT)`,
		`INSERT INTO regions VALUES ('utopia')`,
		`CREATE TABLE technologies (tech TEXT, flag TEXT, sector TEXT, notes TEXT)`,
		`INSERT INTO technologies VALUES
			('imp_coal','r','supply',''),
			('coal_pp','p','electric','steam plant'),
			('hydro','pb','electric',''),
			('battery','ps','electric','')`,
		`CREATE TABLE commodities (name TEXT, flag TEXT, notes TEXT)`,
		`INSERT INTO commodities VALUES ('coal','p',''),('elc','p',''),('rh','d',''),('co2','e','')`,
		`CREATE TABLE GlobalDiscountRate (value REAL)`,
		`INSERT INTO GlobalDiscountRate VALUES (0.05)`,
		`CREATE TABLE Efficiency (region TEXT, input TEXT, tech TEXT, vintage INTEGER, output TEXT, value REAL, notes TEXT)`,
		`INSERT INTO Efficiency VALUES ('utopia','ethos','imp_coal',1990,'coal',1.0,''),
			('utopia','coal','coal_pp',1990,'elc',0.32,'eta')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	return path, db
}

func TestExport(t *testing.T) {
	_, db := newInputDB(t)

	f, err := Export(context.Background(), db)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if got := f.Set("time_exist"); len(got) != 1 || got[0] != "1970" {
		t.Errorf("time_exist = %v", got)
	}
	if got := f.Set("time_future"); len(got) != 3 {
		t.Errorf("time_future = %v", got)
	}
	// tech_production is the union of the p, pb, and ps flags.
	if got := f.Set("tech_production"); len(got) != 3 {
		t.Errorf("tech_production = %v", got)
	}
	if got := f.Set("tech_baseload"); len(got) != 1 || got[0] != "hydro" {
		t.Errorf("tech_baseload = %v", got)
	}
	if got := f.Set("commodity_demand"); len(got) != 1 || got[0] != "rh" {
		t.Errorf("commodity_demand = %v", got)
	}
	if got := f.Set("tech_sector_electric"); len(got) != 3 {
		t.Errorf("tech_sector_electric = %v", got)
	}

	if v, ok := f.Scalar("GlobalDiscountRate"); !ok || v != 0.05 {
		t.Errorf("GlobalDiscountRate = %v, %v", v, ok)
	}
	// Trailing notes columns must not leak into the param index.
	eff := f.Param("Efficiency")
	if eff == nil || eff.Arity != 5 {
		t.Fatalf("Efficiency = %+v", eff)
	}
	if v, ok := eff.Lookup("utopia", "coal", "coal_pp", "1990", "elc"); !ok || v != 0.32 {
		t.Errorf("Efficiency lookup = %v, %v", v, ok)
	}
}

func TestExportSkipsMissingTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE regions (r TEXT); INSERT INTO regions VALUES ('utopia')`); err != nil {
		t.Fatal(err)
	}

	f, err := Export(context.Background(), db)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got := f.Set("regions"); len(got) != 1 {
		t.Errorf("regions = %v", got)
	}
	if f.Param("Efficiency") != nil {
		t.Error("Efficiency should be absent")
	}
}

func TestConvertDatabaseWritesDat(t *testing.T) {
	dbPath, _ := newInputDB(t)
	datPath := filepath.Join(filepath.Dir(dbPath), "model.dat")

	if err := ConvertDatabase(context.Background(), dbPath, datPath); err != nil {
		t.Fatalf("ConvertDatabase: %v", err)
	}

	raw, err := os.ReadFile(datPath)
	if err != nil {
		t.Fatal(err)
	}
	f, err := Parse(string(raw))
	if err != nil {
		t.Fatalf("written dat does not reparse: %v", err)
	}
	if len(f.Set("time_future")) != 3 {
		t.Errorf("time_future = %v", f.Set("time_future"))
	}
}
