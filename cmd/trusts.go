package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/registry"
)

var trustsCmd = &cobra.Command{
	Use:   "trusts",
	Short: "Manage the trust registry",
}

var trustsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered trusts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := registry.Load(cfg.Registry.Path)
		if err != nil {
			return eris.Wrap(err, "load registry")
		}
		all, _ := cmd.Flags().GetBool("all")

		trusts := reg.Sorted()
		if !all {
			trusts = reg.Active()
		}
		if len(trusts) == 0 {
			fmt.Fprintln(os.Stderr, "No trusts registered.")
			return nil
		}
		formatTrusts(os.Stdout, trusts)
		return nil
	},
}

var trustsAddCmd = &cobra.Command{
	Use:   "add <cik> <name>",
	Short: "Register a trust by CIK",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		act, _ := cmd.Flags().GetString("act")

		reg, err := registry.Load(cfg.Registry.Path)
		if err != nil {
			return eris.Wrap(err, "load registry")
		}
		added, err := reg.Add(args[0], args[1], model.Act(act))
		if err != nil {
			return err
		}
		if !added {
			fmt.Fprintf(os.Stderr, "CIK %s is already registered.\n", args[0])
			return nil
		}
		if err := reg.Save(cfg.Registry.Path); err != nil {
			return err
		}
		zap.L().Info("trust registered", zap.String("cik", args[0]), zap.String("name", args[1]))
		return nil
	},
}

var trustsSetActiveCmd = &cobra.Command{
	Use:   "set-active <cik> <true|false>",
	Short: "Enable or disable a registered trust",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		var active bool
		switch args[1] {
		case "true":
			active = true
		case "false":
		default:
			return eris.Errorf("active must be true or false, got %q", args[1])
		}

		reg, err := registry.Load(cfg.Registry.Path)
		if err != nil {
			return eris.Wrap(err, "load registry")
		}
		if !reg.SetActive(args[0], active) {
			return eris.Errorf("cik %s is not registered", args[0])
		}
		return reg.Save(cfg.Registry.Path)
	},
}

func formatTrusts(out io.Writer, trusts []model.Registrant) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CIK\tNAME\tACT\tACTIVE")
	for _, r := range trusts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", r.CIK, r.Name, r.Act, r.Active)
	}
	_ = w.Flush()
}

func init() {
	trustsListCmd.Flags().Bool("all", false, "include inactive trusts")
	trustsAddCmd.Flags().String("act", string(model.Act40), "registration act (33 or 40)")

	trustsCmd.AddCommand(trustsListCmd)
	trustsCmd.AddCommand(trustsAddCmd)
	trustsCmd.AddCommand(trustsSetActiveCmd)
	rootCmd.AddCommand(trustsCmd)
}
