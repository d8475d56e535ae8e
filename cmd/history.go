package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/subloop-cli/subloop/history"
	"github.com/subloop-cli/subloop/icon"
	"github.com/subloop-cli/subloop/style"
	"github.com/subloop-cli/subloop/util"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.SetOut(os.Stdout)
}

// historyCmd groups the commands over saved playback state.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the playback state saved for resuming",
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyListCmd.Flags().BoolP("json", "j", false, "Format the output as JSON")
	historyListCmd.Flags().IntP("limit", "n", 0, "Show only the most recent entries")
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved playback state, most recent first",
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := history.Default().List()
		handleErr(err)

		if limit := lo.Must(cmd.Flags().GetInt("limit")); limit > 0 && limit < len(entries) {
			entries = entries[:limit]
		}

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			handleErr(encoder.Encode(lo.Map(entries, func(e history.Entry, _ int) any { return e.PreservedState })))
			return
		}

		if len(entries) == 0 {
			cmd.Println(style.Faint("nothing saved yet"))
			return
		}

		for _, e := range entries {
			cmd.Printf(
				"%s %s\n  %s %s\n",
				style.Fg(style.Mauve)(icon.Get(icon.History)),
				style.Bold(e.Title()),
				style.Fg(style.Yellow)(e.Position()),
				style.Faint(humanize.Time(e.PreservedAt)),
			)
		}
		cmd.Println()
		cmd.Println(style.Faint(util.Quantify(len(entries), "entry", "entries")))
	},
}

func init() {
	historyCmd.AddCommand(historyRemoveCmd)
}

var historyRemoveCmd = &cobra.Command{
	Use:     "remove <video-id>",
	Aliases: []string{"rm"},
	Short:   "Forget the state saved for one video",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(history.Default().Remove(args[0]))
		fmt.Printf("%s forgot %s\n", style.Fg(style.Green)(icon.Get(icon.Success)), args[0])
	},
}

func init() {
	historyCmd.AddCommand(historyClearCmd)
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all saved playback state",
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(history.Default().Clear())
		fmt.Printf("%s history cleared\n", style.Fg(style.Green)(icon.Get(icon.Success)))
	},
}
