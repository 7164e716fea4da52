package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/planforge/planforge/internal/buildplan"
	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/render"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Work with BuildPlan documents",
}

var planRenderCmd = &cobra.Command{
	Use:   "render <plan.json>",
	Short: "Pretty-print a BuildPlan",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanRender,
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <plan.json>",
	Short: "Validate a BuildPlan against the document invariants",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanValidate,
}

var planExportCmd = &cobra.Command{
	Use:   "export <plan.json>",
	Short: "Export a BuildPlan as YAML for human review",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanExport,
}

func init() {
	planCmd.AddCommand(planRenderCmd)
	planCmd.AddCommand(planValidateCmd)
	planCmd.AddCommand(planExportCmd)
	rootCmd.AddCommand(planCmd)
}

func readPlan(path string) (*buildplan.BuildPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read plan file", err)
	}
	var plan buildplan.BuildPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileUnmarshal, "parse plan file", err)
	}
	return &plan, nil
}

func runPlanRender(cmd *cobra.Command, args []string) error {
	plan, err := readPlan(args[0])
	if err != nil {
		return err
	}
	fmt.Print(render.Plan(plan, render.DefaultStyles()))
	return nil
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	plan, err := readPlan(args[0])
	if err != nil {
		return err
	}
	if err := plan.Validate(); err != nil {
		return err
	}
	fmt.Printf("%s is valid (%d tasks)\n", args[0], len(plan.Tasks()))
	return nil
}

func runPlanExport(cmd *cobra.Command, args []string) error {
	plan, err := readPlan(args[0])
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(plan)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal plan as yaml", err)
	}
	fmt.Print(string(out))
	return nil
}
