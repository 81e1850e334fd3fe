// Package main provides the CLI entry point for sheetcalc.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/paintbox/sheetcalc/pkg/engine"
	"github.com/paintbox/sheetcalc/pkg/engine/models"
	"github.com/paintbox/sheetcalc/pkg/extract"
)

var (
	outputPath  string
	pretty      bool
	noStatic    bool
	cellMapPath string
)

func main() {
	setupEnvironment()

	rootCmd := &cobra.Command{
		Use:   "sheetcalc",
		Short: "Spreadsheet formula evaluation engine",
		Long: `sheetcalc extracts formulas from Excel workbooks and reproduces
their calculation semantics: dependency ordering, circular-reference
convergence, and spreadsheet-exact function behavior.`,
	}

	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")

	extractCmd := &cobra.Command{
		Use:   "extract [input.xlsx]",
		Short: "Extract formulas and metadata from an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}
	extractCmd.Flags().BoolVar(&noStatic, "no-static", false, "Skip literal cell values")

	calcCmd := &cobra.Command{
		Use:   "calc [workbook.json]",
		Short: "Load an extracted workbook and run a full recalculation",
		Args:  cobra.ExactArgs(1),
		RunE:  runCalc,
	}

	estimateCmd := &cobra.Command{
		Use:   "estimate [workbook.json] [input.json]",
		Short: "Calculate an estimate's derived totals from input measurements",
		Args:  cobra.ExactArgs(2),
		RunE:  runEstimate,
	}
	estimateCmd.Flags().StringVar(&cellMapPath, "cell-map", "", "JSON file mapping estimate fields to workbook cells (required)")
	_ = estimateCmd.MarkFlagRequired("cell-map")

	graphCmd := &cobra.Command{
		Use:   "graph [workbook.json]",
		Short: "Export the dependency graph and calculation diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE:  runGraph,
	}

	statsCmd := &cobra.Command{
		Use:   "stats [workbook.json]",
		Short: "Report sheet and graph statistics for an extracted workbook",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}

	rootCmd.AddCommand(extractCmd, calcCmd, estimateCmd, graphCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	opts := extract.DefaultOptions()
	if noStatic {
		f := false
		opts.IncludeStatic = &f
	}
	wb, err := extract.Extract(args[0], opts)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	log.Info().Str("book", wb.BookName).Int("formulas", wb.FormulaCount).Msg("extraction complete")
	return writeJSON(wb)
}

func runCalc(cmd *cobra.Command, args []string) error {
	e, err := loadEngine(args[0])
	if err != nil {
		return err
	}
	report, err := e.Recalculate()
	if err != nil {
		return fmt.Errorf("recalculation failed: %w", err)
	}
	return writeJSON(report)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	e, err := loadEngine(args[0])
	if err != nil {
		return err
	}
	if _, err := e.Recalculate(); err != nil {
		return fmt.Errorf("initial recalculation failed: %w", err)
	}

	var input models.EstimateInput
	if err := readJSON(args[1], &input); err != nil {
		return fmt.Errorf("failed to read estimate input: %w", err)
	}
	var cm engine.CellMap
	if err := readJSON(cellMapPath, &cm); err != nil {
		return fmt.Errorf("failed to read cell map: %w", err)
	}

	result, err := e.CalculateEstimate(input, cm)
	if err != nil {
		return fmt.Errorf("estimate calculation failed: %w", err)
	}
	return writeJSON(result)
}

func runGraph(cmd *cobra.Command, args []string) error {
	e, err := loadEngine(args[0])
	if err != nil {
		return err
	}
	if _, err := e.Recalculate(); err != nil {
		return fmt.Errorf("recalculation failed: %w", err)
	}
	diag, err := e.Diagnostics()
	if err != nil {
		return fmt.Errorf("diagnostics export failed: %w", err)
	}
	return writeJSON(diag)
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := loadEngine(args[0])
	if err != nil {
		return err
	}
	stats, err := e.Stats()
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}
	return writeJSON(stats)
}

// loadEngine reads an extracted workbook payload and loads it into a
// fresh engine.
func loadEngine(path string) (*engine.Engine, error) {
	var wb models.WorkbookData
	if err := readJSON(path, &wb); err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	e := engine.New(engine.Options{Logger: &log.Logger})
	if err := e.LoadWorkbook(&wb); err != nil {
		return nil, fmt.Errorf("load failed: %w", err)
	}
	return e, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(v any) error {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	if outputPath != "" {
		return os.WriteFile(outputPath, data, 0644)
	}
	fmt.Println(string(data))
	return nil
}
