package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var hitTimes int

var checkCmd = &cobra.Command{
	Use:   "check <key>",
	Short: "Evaluate the defenses for a key",
	Long: `Evaluate the configured defenses for a subject key, in declaration order,
and print the result of the first one that fires.

Example:
  defensed check 1.2.3.4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		result, fired, err := e.builder.Defense(args[0]).IsConditionReached(cmd.Context())
		if err != nil {
			return err
		}
		if !fired {
			fmt.Fprintln(cmd.OutOrStdout(), "not fired")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fired: %s\n", result)
		return nil
	},
}

var hitCmd = &cobra.Command{
	Use:   "hit <key>",
	Short: "Record an event for a key",
	Long: `Increase every counter referenced by the configured defenses for a
subject key. A counter shared by several defenses is increased once.

Example:
  defensed hit 1.2.3.4 --times 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		tracked := e.builder.Tracked(args[0])
		for i := 0; i < hitTimes; i++ {
			if err := tracked.IncreaseValue(cmd.Context()); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recorded %d event(s) for %s\n", hitTimes, args[0])
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Reset the defenses for a key",
	Long: `Remove every counter and throttle behind the configured defenses for a
subject key.

Example:
  defensed reset 1.2.3.4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.builder.Reset(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[0])
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <counter-key>",
	Short: "Print a raw counter",
	Long: `Print the current value of a counter, by its full key (after {key}
substitution, without the store key prefix).

Example:
  defensed get login_fail:ip:1.2.3.4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		value, ok, err := e.store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "absent")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

func init() {
	hitCmd.Flags().IntVar(&hitTimes, "times", 1, "number of events to record")
	rootCmd.AddCommand(checkCmd, hitCmd, resetCmd, getCmd)
}
