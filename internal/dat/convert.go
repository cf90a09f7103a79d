package dat

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	_ "modernc.org/sqlite"
)

// tableEntry maps one input-database table onto a dat set or parameter.
// cols is the number of leading data columns to keep: 1 for sets,
// arity+1 for parameters. Remaining columns (units, notes) are dropped.
// flags filters on the conventional one-letter flag column.
type tableEntry struct {
	kind   string // "set" or "param"
	table  string
	target string // dat name; empty means same as table
	flags  []string
	cols   int
}

// tableRegistry drives the SQLite to dat conversion. Tables absent from
// the database are skipped; rows are exported in table order.
var tableRegistry = []tableEntry{
	{"set", "time_periods", "time_exist", []string{"e"}, 1},
	{"set", "time_periods", "time_future", []string{"f"}, 1},
	{"set", "time_season", "", nil, 1},
	{"set", "time_of_day", "", nil, 1},
	{"set", "regions", "", nil, 1},
	{"set", "technologies", "tech_resource", []string{"r"}, 1},
	{"set", "technologies", "tech_production", []string{"p", "pb", "ps"}, 1},
	{"set", "technologies", "tech_baseload", []string{"pb"}, 1},
	{"set", "technologies", "tech_storage", []string{"ps"}, 1},
	{"set", "tech_curtailment", "", nil, 1},
	{"set", "tech_reserve", "", nil, 1},
	{"set", "tech_ramping", "", nil, 1},
	{"set", "tech_annual", "", nil, 1},
	{"set", "commodities", "commodity_physical", []string{"p"}, 1},
	{"set", "commodities", "commodity_emissions", []string{"e"}, 1},
	{"set", "commodities", "commodity_demand", []string{"d"}, 1},
	{"param", "GlobalDiscountRate", "", nil, 1},
	{"param", "SegFrac", "", nil, 3},
	{"param", "Demand", "", nil, 4},
	{"param", "DemandSpecificDistribution", "", nil, 5},
	{"param", "ResourceBound", "", nil, 4},
	{"param", "Efficiency", "", nil, 6},
	{"param", "ExistingCapacity", "", nil, 4},
	{"param", "CapacityToActivity", "", nil, 3},
	{"param", "CapacityFactorTech", "", nil, 5},
	{"param", "CapacityFactorProcess", "", nil, 6},
	{"param", "LifetimeTech", "", nil, 3},
	{"param", "LifetimeProcess", "", nil, 4},
	{"param", "LifetimeLoanTech", "", nil, 3},
	{"param", "DiscountRate", "", nil, 4},
	{"param", "CostInvest", "", nil, 4},
	{"param", "CostFixed", "", nil, 5},
	{"param", "CostVariable", "", nil, 5},
	{"param", "MinCapacity", "", nil, 4},
	{"param", "MaxCapacity", "", nil, 4},
	{"param", "MinActivity", "", nil, 4},
	{"param", "MaxActivity", "", nil, 4},
	{"param", "MaxResource", "", nil, 3},
	{"param", "GrowthRateMax", "", nil, 3},
	{"param", "GrowthRateSeed", "", nil, 3},
	{"param", "EmissionActivity", "", nil, 7},
	{"param", "EmissionLimit", "", nil, 4},
	{"param", "RampUp", "", nil, 3},
	{"param", "RampDown", "", nil, 3},
	{"param", "PlanningReserveMargin", "", nil, 2},
	{"param", "CapacityCredit", "", nil, 5},
	{"param", "StorageDuration", "", nil, 3},
	{"param", "StorageInitFrac", "", nil, 4},
	{"param", "TechInputSplit", "", nil, 5},
	{"param", "TechOutputSplit", "", nil, 5},
	{"param", "DiscreteCapacity", "", nil, 2},
}

// sectorSetPrefix names the per-sector technology sets emitted from the
// technologies table's sector column.
const sectorSetPrefix = "tech_sector_"

// ConvertDatabase exports the model tables of the SQLite database at
// dbPath into a dat file at datPath. The write is atomic.
func ConvertDatabase(ctx context.Context, dbPath, datPath string) error {
	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open input database: %w", err)
	}
	defer db.Close()

	f, err := Export(ctx, db)
	if err != nil {
		return fmt.Errorf("convert %s: %w", dbPath, err)
	}

	var b strings.Builder
	if err := f.Write(&b); err != nil {
		return err
	}
	if err := renameio.WriteFile(datPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", datPath, err)
	}
	return nil
}

// Export reads every registered table present in db into a File.
func Export(ctx context.Context, db *sql.DB) (*File, error) {
	existing, err := tableNames(ctx, db)
	if err != nil {
		return nil, err
	}

	f := NewFile()
	for _, e := range tableRegistry {
		if !existing[e.table] {
			continue
		}
		if err := exportTable(ctx, db, e, f); err != nil {
			return nil, err
		}
	}
	if existing["technologies"] {
		if err := exportSectors(ctx, db, f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func tableNames(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table'`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names[n] = true
	}
	return names, rows.Err()
}

func exportTable(ctx context.Context, db *sql.DB, e tableEntry, f *File) error {
	query := "SELECT * FROM " + e.table
	var args []any
	if len(e.flags) > 0 {
		ph := make([]string, len(e.flags))
		for i, fl := range e.flags {
			ph[i] = "?"
			args = append(args, fl)
		}
		query += " WHERE flag IN (" + strings.Join(ph, ",") + ")"
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", e.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	if len(cols) < e.cols {
		return fmt.Errorf("table %s has %d columns, need %d", e.table, len(cols), e.cols)
	}

	target := e.target
	if target == "" {
		target = e.table
	}

	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s: %w", e.table, err)
		}

		fields := make([]string, e.cols)
		for i := 0; i < e.cols; i++ {
			fields[i] = strings.TrimSpace(vals[i].String)
		}

		if e.kind == "set" {
			f.Sets[target] = mergeSet(f.Sets[target], fields[:1])
			continue
		}

		v, err := strconv.ParseFloat(fields[e.cols-1], 64)
		if err != nil {
			return fmt.Errorf("table %s: non-numeric value %q", e.table, fields[e.cols-1])
		}
		p := f.Params[target]
		if p == nil {
			p = &Param{Name: target, Arity: e.cols - 1}
			f.Params[target] = p
		}
		p.put(Row{Index: fields[:e.cols-1], Value: v})
	}
	return rows.Err()
}

// exportSectors emits one tech_sector_<name> set per distinct sector in
// the technologies table, so reports can group capacity by sector.
func exportSectors(ctx context.Context, db *sql.DB, f *File) error {
	rows, err := db.QueryContext(ctx,
		`SELECT tech, sector FROM technologies WHERE sector IS NOT NULL AND sector != ''`)
	if err != nil {
		// Older databases lack the sector column; that is not an error.
		return nil
	}
	defer rows.Close()

	for rows.Next() {
		var tech, sector string
		if err := rows.Scan(&tech, &sector); err != nil {
			return err
		}
		name := sectorSetPrefix + sector
		f.Sets[name] = mergeSet(f.Sets[name], []string{tech})
	}
	return rows.Err()
}
