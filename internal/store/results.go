package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// CapacityRow is one Output_V_Capacity record: installed capacity of a
// process, keyed by its build vintage.
type CapacityRow struct {
	Scenario string  `json:"scenario"`
	Sector   string  `json:"sector,omitempty"`
	Region   string  `json:"region"`
	Tech     string  `json:"tech"`
	Vintage  int     `json:"vintage"`
	Capacity float64 `json:"capacity"`
}

// CapacityByPeriodRow is one Output_CapacityByPeriodAndTech record:
// capacity available to a tech during an operating period, summed over
// its live vintages.
type CapacityByPeriodRow struct {
	Scenario string  `json:"scenario"`
	Sector   string  `json:"sector,omitempty"`
	Region   string  `json:"region"`
	Period   int     `json:"period"`
	Tech     string  `json:"tech"`
	Capacity float64 `json:"capacity"`
}

// FlowRow is one commodity flow record, shared by the Output_VFlow_Out,
// Output_VFlow_In, and Output_Curtailment tables.
type FlowRow struct {
	Scenario  string  `json:"scenario"`
	Sector    string  `json:"sector,omitempty"`
	Region    string  `json:"region"`
	Period    int     `json:"period"`
	Season    string  `json:"season"`
	TimeOfDay string  `json:"time_of_day"`
	Input     string  `json:"input_comm"`
	Tech      string  `json:"tech"`
	Vintage   int     `json:"vintage"`
	Output    string  `json:"output_comm"`
	Value     float64 `json:"value"`
}

// CostRow is one Output_Costs record: discounted system cost charged to
// a region and period.
type CostRow struct {
	Scenario string  `json:"scenario"`
	Region   string  `json:"region"`
	Period   int     `json:"period"`
	Cost     float64 `json:"cost"`
}

// EmissionRow is one Output_Emissions record.
type EmissionRow struct {
	Scenario  string  `json:"scenario"`
	Region    string  `json:"region"`
	Period    int     `json:"period"`
	Emissions float64 `json:"emissions"`
}

// ObjectiveRow is one Output_Objective record.
type ObjectiveRow struct {
	Scenario string  `json:"scenario"`
	Name     string  `json:"objective_name"`
	Value    float64 `json:"total_system_cost"`
}

// ResultSet holds every row produced by one scenario's solve.
type ResultSet struct {
	Scenario         string
	Capacity         []CapacityRow
	CapacityByPeriod []CapacityByPeriodRow
	FlowsOut         []FlowRow
	FlowsIn          []FlowRow
	Curtailment      []FlowRow
	Costs            []CostRow
	Emissions        []EmissionRow
	Objective        float64
	ObjectiveName    string
}

// outputTables lists every scenario-keyed result table, for purges.
var outputTables = []string{
	"Output_V_Capacity",
	"Output_CapacityByPeriodAndTech",
	"Output_VFlow_Out",
	"Output_VFlow_In",
	"Output_Curtailment",
	"Output_Costs",
	"Output_Objective",
	"Output_Emissions",
	"Output_Duals",
}

// ResultStore reads and writes the Output_* tables.
type ResultStore struct {
	db *sql.DB
}

// Save stores a scenario's results inside one transaction, replacing
// any rows the scenario wrote before.
func (rs *ResultStore) Save(ctx context.Context, set *ResultSet) error {
	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save: %w", err)
	}
	defer tx.Rollback()

	if err := purgeScenarioTx(ctx, tx, set.Scenario); err != nil {
		return err
	}

	for _, row := range set.Capacity {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO Output_V_Capacity (scenario, sector, region, tech, vintage, capacity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			set.Scenario, row.Sector, row.Region, row.Tech, row.Vintage, row.Capacity); err != nil {
			return fmt.Errorf("store: insert capacity: %w", err)
		}
	}
	for _, row := range set.CapacityByPeriod {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO Output_CapacityByPeriodAndTech (scenario, sector, region, t_periods, tech, capacity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			set.Scenario, row.Sector, row.Region, row.Period, row.Tech, row.Capacity); err != nil {
			return fmt.Errorf("store: insert capacity by period: %w", err)
		}
	}
	if err := insertFlows(ctx, tx, "Output_VFlow_Out", "vflow_out", set.Scenario, set.FlowsOut); err != nil {
		return err
	}
	if err := insertFlows(ctx, tx, "Output_VFlow_In", "vflow_in", set.Scenario, set.FlowsIn); err != nil {
		return err
	}
	if err := insertFlows(ctx, tx, "Output_Curtailment", "curtailment", set.Scenario, set.Curtailment); err != nil {
		return err
	}
	for _, row := range set.Costs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO Output_Costs (scenario, region, t_periods, cost) VALUES (?, ?, ?, ?)`,
			set.Scenario, row.Region, row.Period, row.Cost); err != nil {
			return fmt.Errorf("store: insert cost: %w", err)
		}
	}
	for _, row := range set.Emissions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO Output_Emissions (scenario, region, t_periods, emissions) VALUES (?, ?, ?, ?)`,
			set.Scenario, row.Region, row.Period, row.Emissions); err != nil {
			return fmt.Errorf("store: insert emissions: %w", err)
		}
	}

	name := set.ObjectiveName
	if name == "" {
		name = "TotalCost"
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO Output_Objective (scenario, objective_name, total_system_cost) VALUES (?, ?, ?)`,
		set.Scenario, name, set.Objective); err != nil {
		return fmt.Errorf("store: insert objective: %w", err)
	}

	return tx.Commit()
}

func insertFlows(ctx context.Context, tx *sql.Tx, table, valueCol, scenario string, rows []FlowRow) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (scenario, sector, region, t_periods, t_season, t_day, input_comm, tech, vintage, output_comm, %s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table, valueCol))
	if err != nil {
		return fmt.Errorf("store: prepare %s insert: %w", table, err)
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			scenario, row.Sector, row.Region, row.Period, row.Season, row.TimeOfDay,
			row.Input, row.Tech, row.Vintage, row.Output, row.Value); err != nil {
			return fmt.Errorf("store: insert into %s: %w", table, err)
		}
	}
	return nil
}

// PurgeScenario deletes a scenario's rows from every Output_* table in
// one transaction.
func (rs *ResultStore) PurgeScenario(ctx context.Context, scenario string) error {
	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin purge: %w", err)
	}
	defer tx.Rollback()
	if err := purgeScenarioTx(ctx, tx, scenario); err != nil {
		return err
	}
	return tx.Commit()
}

func purgeScenarioTx(ctx context.Context, tx *sql.Tx, scenario string) error {
	for _, table := range outputTables {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE scenario = ?`, table), scenario); err != nil {
			return fmt.Errorf("store: purge %s from %s: %w", scenario, table, err)
		}
	}
	return nil
}

// Scenarios lists the distinct scenario names present in the results,
// sorted.
func (rs *ResultStore) Scenarios(ctx context.Context) ([]string, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT DISTINCT scenario FROM Output_Objective`)
	if err != nil {
		return nil, fmt.Errorf("store: list scenarios: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Capacity returns a scenario's Output_V_Capacity rows.
func (rs *ResultStore) Capacity(ctx context.Context, scenario string) ([]CapacityRow, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT scenario, sector, region, tech, vintage, capacity
		FROM Output_V_Capacity WHERE scenario = ?
		ORDER BY region, tech, vintage`, scenario)
	if err != nil {
		return nil, fmt.Errorf("store: query capacity: %w", err)
	}
	defer rows.Close()

	var out []CapacityRow
	for rows.Next() {
		var r CapacityRow
		var sector sql.NullString
		if err := rows.Scan(&r.Scenario, &sector, &r.Region, &r.Tech, &r.Vintage, &r.Capacity); err != nil {
			return nil, err
		}
		r.Sector = sector.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// CapacityByPeriod returns a scenario's Output_CapacityByPeriodAndTech rows.
func (rs *ResultStore) CapacityByPeriod(ctx context.Context, scenario string) ([]CapacityByPeriodRow, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT scenario, sector, region, t_periods, tech, capacity
		FROM Output_CapacityByPeriodAndTech WHERE scenario = ?
		ORDER BY region, t_periods, tech`, scenario)
	if err != nil {
		return nil, fmt.Errorf("store: query capacity by period: %w", err)
	}
	defer rows.Close()

	var out []CapacityByPeriodRow
	for rows.Next() {
		var r CapacityByPeriodRow
		var sector sql.NullString
		if err := rows.Scan(&r.Scenario, &sector, &r.Region, &r.Period, &r.Tech, &r.Capacity); err != nil {
			return nil, err
		}
		r.Sector = sector.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// FlowsOut returns a scenario's Output_VFlow_Out rows.
func (rs *ResultStore) FlowsOut(ctx context.Context, scenario string) ([]FlowRow, error) {
	return rs.flows(ctx, "Output_VFlow_Out", "vflow_out", scenario)
}

// FlowsIn returns a scenario's Output_VFlow_In rows.
func (rs *ResultStore) FlowsIn(ctx context.Context, scenario string) ([]FlowRow, error) {
	return rs.flows(ctx, "Output_VFlow_In", "vflow_in", scenario)
}

// Curtailment returns a scenario's Output_Curtailment rows.
func (rs *ResultStore) Curtailment(ctx context.Context, scenario string) ([]FlowRow, error) {
	return rs.flows(ctx, "Output_Curtailment", "curtailment", scenario)
}

func (rs *ResultStore) flows(ctx context.Context, table, valueCol, scenario string) ([]FlowRow, error) {
	rows, err := rs.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT scenario, sector, region, t_periods, t_season, t_day, input_comm, tech, vintage, output_comm, %s
		FROM %s WHERE scenario = ?
		ORDER BY region, t_periods, t_season, t_day, tech, vintage`, valueCol, table), scenario)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", table, err)
	}
	defer rows.Close()

	var out []FlowRow
	for rows.Next() {
		var r FlowRow
		var sector sql.NullString
		if err := rows.Scan(&r.Scenario, &sector, &r.Region, &r.Period, &r.Season, &r.TimeOfDay,
			&r.Input, &r.Tech, &r.Vintage, &r.Output, &r.Value); err != nil {
			return nil, err
		}
		r.Sector = sector.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Costs returns a scenario's Output_Costs rows.
func (rs *ResultStore) Costs(ctx context.Context, scenario string) ([]CostRow, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT scenario, region, t_periods, cost
		FROM Output_Costs WHERE scenario = ?
		ORDER BY region, t_periods`, scenario)
	if err != nil {
		return nil, fmt.Errorf("store: query costs: %w", err)
	}
	defer rows.Close()

	var out []CostRow
	for rows.Next() {
		var r CostRow
		if err := rows.Scan(&r.Scenario, &r.Region, &r.Period, &r.Cost); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Emissions returns a scenario's Output_Emissions rows.
func (rs *ResultStore) Emissions(ctx context.Context, scenario string) ([]EmissionRow, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT scenario, region, t_periods, emissions
		FROM Output_Emissions WHERE scenario = ?
		ORDER BY region, t_periods`, scenario)
	if err != nil {
		return nil, fmt.Errorf("store: query emissions: %w", err)
	}
	defer rows.Close()

	var out []EmissionRow
	for rows.Next() {
		var r EmissionRow
		if err := rows.Scan(&r.Scenario, &r.Region, &r.Period, &r.Emissions); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Objective returns a scenario's objective value.
func (rs *ResultStore) Objective(ctx context.Context, scenario string) (*ObjectiveRow, error) {
	row := rs.db.QueryRowContext(ctx,
		`SELECT scenario, objective_name, total_system_cost
		FROM Output_Objective WHERE scenario = ?`, scenario)
	var r ObjectiveRow
	if err := row.Scan(&r.Scenario, &r.Name, &r.Value); err != nil {
		return nil, fmt.Errorf("store: query objective: %w", err)
	}
	return &r, nil
}

// DualStore reads and writes constraint duals, saved only when the run
// asks for them.
type DualStore struct {
	db *sql.DB
}

// Save replaces a scenario's duals inside one transaction.
func (ds *DualStore) Save(ctx context.Context, scenario string, duals map[string]float64) error {
	tx, err := ds.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin dual save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM Output_Duals WHERE scenario = ?`, scenario); err != nil {
		return fmt.Errorf("store: clear duals: %w", err)
	}

	names := make([]string, 0, len(duals))
	for name := range duals {
		names = append(names, name)
	}
	sort.Strings(names)

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO Output_Duals (scenario, constraint_name, dual) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare dual insert: %w", err)
	}
	defer stmt.Close()
	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, scenario, name, duals[name]); err != nil {
			return fmt.Errorf("store: insert dual %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Get returns a scenario's duals. An empty map means none were saved.
func (ds *DualStore) Get(ctx context.Context, scenario string) (map[string]float64, error) {
	rows, err := ds.db.QueryContext(ctx,
		`SELECT constraint_name, dual FROM Output_Duals WHERE scenario = ?`, scenario)
	if err != nil {
		return nil, fmt.Errorf("store: query duals: %w", err)
	}
	defer rows.Close()

	duals := make(map[string]float64)
	for rows.Next() {
		var name string
		var v float64
		if err := rows.Scan(&name, &v); err != nil {
			return nil, err
		}
		duals[name] = v
	}
	return duals, rows.Err()
}
