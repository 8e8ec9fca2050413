package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/calvinalkan/neobench"
	"github.com/spf13/cobra"
)

// planOutput is the JSON form of 'neobench plan --json'.
type planOutput struct {
	Plan         neobench.PlanSpec `json:"plan"`
	Combinations []planEntry       `json:"combinations"`
	Notes        []string          `json:"notes,omitempty"`
}

type planEntry struct {
	Key   string   `json:"key"`
	Flags []string `json:"flags"`
}

func (a *app) planCommand() *cobra.Command {
	var (
		flags  neobench.PlanFlags
		asJSON bool
		goarch string
	)

	cmd := &cobra.Command{
		Use:   "plan [flags]",
		Short: "Print the combinations a run would execute",
		Args:  noPositionalArgs,
		RunE: func(*cobra.Command, []string) error {
			plan, err := flags.Plan()
			if err != nil {
				return err
			}

			exp := neobench.Generate(plan)

			if asJSON {
				return a.writePlanJSON(plan, exp, goarch)
			}

			return a.writePlanText(plan, exp, goarch)
		},
	}

	flags.Register(cmd.Flags())
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().StringVar(&goarch, "goarch", runtime.GOARCH, "architecture used to spell CPU targeting flags")

	return cmd
}

func (a *app) writePlanText(plan neobench.RunPlan, exp neobench.Expansion, goarch string) error {
	fmt.Fprintf(a.stdout, "%d combinations x %d runs\n\n", len(exp.Combinations), plan.Runs())

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "Combination\tFlags\n")
	fmt.Fprint(w, "-----------\t-----\n")

	for _, c := range exp.Combinations {
		fmt.Fprintf(w, "%s\t%s\n", c.Key(), strings.Join(planFlags(c, goarch), " "))
	}

	err := w.Flush()
	if err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	for _, note := range exp.Notes {
		fmt.Fprintf(a.stdout, "note: %s\n", note)
	}

	return nil
}

func (a *app) writePlanJSON(plan neobench.RunPlan, exp neobench.Expansion, goarch string) error {
	out := planOutput{Plan: plan.Spec(), Notes: exp.Notes}

	for _, c := range exp.Combinations {
		out.Combinations = append(out.Combinations, planEntry{Key: c.Key(), Flags: planFlags(c, goarch)})
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")

	err := enc.Encode(out)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// planFlags lists the compiler flags of c, with PGO stages spelled out.
func planFlags(c neobench.Combination, goarch string) []string {
	flags := c.CompilerFlags(goarch)
	if c.PGO {
		flags = append(flags, "-fprofile-generate|-fprofile-use")
	}

	return flags
}
