package report

import (
	"fmt"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/meridian-energy/horizon.plan/internal/store"
)

// WriteText renders a plain-text summary of one scenario's results to
// path.
func WriteText(path string, set *store.ResultSet) error {
	var b strings.Builder
	rule := strings.Repeat("=", 60) + "\n"

	b.WriteString(rule)
	fmt.Fprintf(&b, "Scenario: %s\n", set.Scenario)
	fmt.Fprintf(&b, "Objective (discounted system cost): %.6f\n", set.Objective)
	b.WriteString(rule)

	if len(set.Capacity) > 0 {
		b.WriteString("\nInstalled capacity by vintage\n")
		fmt.Fprintf(&b, "%-10s %-20s %8s %14s\n", "region", "tech", "vintage", "capacity")
		for _, row := range set.Capacity {
			fmt.Fprintf(&b, "%-10s %-20s %8d %14.4f\n", row.Region, row.Tech, row.Vintage, row.Capacity)
		}
	}
	if len(set.CapacityByPeriod) > 0 {
		b.WriteString("\nAvailable capacity by period\n")
		fmt.Fprintf(&b, "%-10s %-20s %8s %14s\n", "region", "tech", "period", "capacity")
		for _, row := range set.CapacityByPeriod {
			fmt.Fprintf(&b, "%-10s %-20s %8d %14.4f\n", row.Region, row.Tech, row.Period, row.Capacity)
		}
	}
	if len(set.Costs) > 0 {
		b.WriteString("\nDiscounted costs by period\n")
		fmt.Fprintf(&b, "%-10s %8s %14s\n", "region", "period", "cost")
		for _, row := range set.Costs {
			fmt.Fprintf(&b, "%-10s %8d %14.4f\n", row.Region, row.Period, row.Cost)
		}
	}
	if len(set.Emissions) > 0 {
		b.WriteString("\nEmissions by period\n")
		fmt.Fprintf(&b, "%-10s %8s %14s\n", "region", "period", "emissions")
		for _, row := range set.Emissions {
			fmt.Fprintf(&b, "%-10s %8d %14.4f\n", row.Region, row.Period, row.Emissions)
		}
	}
	if len(set.FlowsOut) > 0 {
		b.WriteString("\nOutput flows\n")
		fmt.Fprintf(&b, "%-10s %8s %-12s %-10s %-20s %8s %-12s %12s\n",
			"region", "period", "season", "tod", "tech", "vintage", "output", "flow")
		for _, row := range set.FlowsOut {
			fmt.Fprintf(&b, "%-10s %8d %-12s %-10s %-20s %8d %-12s %12.4f\n",
				row.Region, row.Period, row.Season, row.TimeOfDay, row.Tech, row.Vintage, row.Output, row.Value)
		}
	}

	if err := renameio.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("report: write text summary %s: %w", path, err)
	}
	return nil
}
