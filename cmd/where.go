package cmd

import (
	"encoding/json"
	"os"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
	"github.com/subloop-cli/subloop/style"
	"github.com/subloop-cli/subloop/where"
)

// whereTarget is a directory or file subloop keeps state in.
type whereTarget struct {
	name     string
	where    func() string
	argLong  string
	argShort mo.Option[string]
}

var wherePaths = []whereTarget{
	{"Config", where.Config, "config", mo.Some("c")},
	{"Loops", where.Loops, "loops", mo.Some("L")},
	{"History", where.History, "history", mo.Some("H")},
	{"Logs", where.Logs, "logs", mo.Some("l")},
	{"Cache", where.Cache, "cache", mo.None[string]()},
	{"Temp", where.Temp, "temp", mo.None[string]()},
}

func init() {
	rootCmd.AddCommand(whereCmd)

	for _, t := range wherePaths {
		help := "Print only the " + t.name + " path"
		if short, ok := t.argShort.Get(); ok {
			whereCmd.Flags().BoolP(t.argLong, short, false, help)
		} else {
			whereCmd.Flags().Bool(t.argLong, false, help)
		}
	}
	whereCmd.Flags().BoolP("json", "j", false, "Print every path as a JSON object")

	whereCmd.MarkFlagsMutuallyExclusive(append(lo.Map(wherePaths, func(t whereTarget, _ int) string {
		return t.argLong
	}), "json")...)

	whereCmd.SetOut(os.Stdout)
}

var whereCmd = &cobra.Command{
	Use:   "where",
	Short: "Print where subloop keeps its config, loops, history and logs",
	Run: func(cmd *cobra.Command, args []string) {
		if t, ok := lo.Find(wherePaths, func(t whereTarget) bool {
			return lo.Must(cmd.Flags().GetBool(t.argLong))
		}); ok {
			cmd.Println(t.where())
			return
		}

		if lo.Must(cmd.Flags().GetBool("json")) {
			paths := lo.SliceToMap(wherePaths, func(t whereTarget) (string, string) {
				return t.argLong, t.where()
			})
			handleErr(json.NewEncoder(cmd.OutOrStdout()).Encode(paths))
			return
		}

		header := style.New().Bold(true).Foreground(style.Mauve).Render
		for i, t := range wherePaths {
			cmd.Printf("%s %s\n", header(t.name+"?"), style.Fg(style.Yellow)("--"+t.argLong))
			cmd.Println(t.where())

			if i < len(wherePaths)-1 {
				cmd.Println()
			}
		}
	},
}
