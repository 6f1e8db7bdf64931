package commands

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/strategy"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List prioritization strategies and their weights",
	Long: `List the prioritization strategies.

Each strategy sets the urgency, importance, effort and dependency weights
sent with every task. Any other name scores with balanced weights.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return writeStrategiesJSON(cmd.OutOrStdout())
		}
		return writeStrategiesTable(cmd.OutOrStdout(), strategy.Strategy(cfg.Strategy))
	},
}

func init() {
	strategiesCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(strategiesCmd)
}

type strategyJSON struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Weights     strategy.Weights `json:"weights"`
}

func writeStrategiesJSON(out io.Writer) error {
	list := make([]strategyJSON, 0, len(strategy.All()))
	for _, s := range strategy.All() {
		list = append(list, strategyJSON{
			Name:        s.String(),
			Description: strategy.Describe(s),
			Weights:     strategy.Resolve(s),
		})
	}
	return writeJSON(out, list)
}

func writeStrategiesTable(out io.Writer, selected strategy.Strategy) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tURGENCY\tIMPORTANCE\tEFFORT\tDEPENDENCY\tDESCRIPTION")
	for _, s := range strategy.All() {
		name := s.String()
		if s == selected {
			name += " *"
		}
		wt := strategy.Resolve(s)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			name, weight(wt.Urgency), weight(wt.Importance), weight(wt.Effort), weight(wt.Dependency),
			strategy.Describe(s))
	}
	return w.Flush()
}

func weight(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
