package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/availability"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the available intervals between --from and --to",
		RunE: func(cmd *cobra.Command, args []string) error {
			policyPath, _ := cmd.Flags().GetString("policy")
			busyPath, _ := cmd.Flags().GetString("busy")
			fromRaw, _ := cmd.Flags().GetString("from")
			toRaw, _ := cmd.Flags().GetString("to")
			format, _ := cmd.Flags().GetString("format")

			policy, err := loadPolicy(policyPath)
			if err != nil {
				return err
			}
			var busy []availability.ScheduleSlot
			if busyPath != "" {
				f, err := openFile(busyPath)
				if err != nil {
					return err
				}
				busy, err = readBusy(f)
				f.Close()
				if err != nil {
					return err
				}
			}

			loc := policy.Location()
			from, err := parseBound(fromRaw, loc)
			if err != nil {
				return err
			}
			to, err := parseBound(toRaw, loc)
			if err != nil {
				return err
			}

			intervals, err := availability.GenerateAvailableIntervals(policy, busy, from, to)
			if err != nil {
				return err
			}
			return writeIntervals(cmd.OutOrStdout(), format, intervals)
		},
	}
	cmd.Flags().String("policy", "", "Path to the policy YAML file (- for stdin)")
	cmd.Flags().String("busy", "", "Optional YAML list of occupied slots")
	cmd.Flags().String("from", "", "Range start, RFC3339 or YYYY-MM-DD in the policy zone")
	cmd.Flags().String("to", "", "Range end (exclusive), RFC3339 or YYYY-MM-DD")
	cmd.Flags().String("format", "table", "Output format: table, yaml or json")
	_ = cmd.MarkFlagRequired("policy")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a policy file the way the API does",
		RunE: func(cmd *cobra.Command, args []string) error {
			policyPath, _ := cmd.Flags().GetString("policy")
			policy, err := loadPolicy(policyPath)
			if err != nil {
				return err
			}
			if err := policy.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d windows, %d minute slots, zone %s\n",
				len(policy.Windows), policy.DurationMinutes, policy.Location())
			return nil
		},
	}
	cmd.Flags().String("policy", "", "Path to the policy YAML file (- for stdin)")
	_ = cmd.MarkFlagRequired("policy")
	return cmd
}

func loadPolicy(path string) (availability.SchedulePolicy, error) {
	f, err := openFile(path)
	if err != nil {
		return availability.SchedulePolicy{}, err
	}
	defer f.Close()
	return readPolicy(f)
}

func writeIntervals(w io.Writer, format string, intervals []availability.Interval) error {
	out := make([]intervalOut, 0, len(intervals))
	for _, iv := range intervals {
		out = append(out, intervalOut{StartTime: iv.Start.Format(time.RFC3339), EndTime: iv.End.Format(time.RFC3339)})
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(out)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DAY\tSTART\tEND")
		for _, iv := range intervals {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", iv.Start.Format("Mon 2006-01-02"), iv.Start.Format("15:04"), iv.End.Format("15:04"))
		}
		fmt.Fprintf(tw, "\n%d slots\n", len(intervals))
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
