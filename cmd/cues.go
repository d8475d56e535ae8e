package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/subloop-cli/subloop/icon"
	"github.com/subloop-cli/subloop/style"
	"github.com/subloop-cli/subloop/subtitle"
	"github.com/subloop-cli/subloop/util"
)

func init() {
	rootCmd.AddCommand(cuesCmd)
	cuesCmd.Flags().BoolP("json", "j", false, "Print the parsed track as JSON")
	cuesCmd.Flags().StringP("at", "t", "", "Only print cues showing at this position (seconds or MM:SS.mmm)")
	cuesCmd.SetOut(os.Stdout)
}

// cuesCmd parses a subtitle file the way watch would load it.
var cuesCmd = &cobra.Command{
	Use:   "cues <file>",
	Short: "Parse a subtitle file and print its cues",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		track, err := subtitle.Load(args[0])
		handleErr(err)

		cues := track.Cues
		if at := lo.Must(cmd.Flags().GetString("at")); at != "" {
			t, err := parsePosition(at)
			handleErr(err)
			cues = lo.Filter(cues, func(c subtitle.Cue, _ int) bool {
				return t >= c.StartTime && t <= c.EndTime
			})
		}

		if lo.Must(cmd.Flags().GetBool("json")) {
			track.Cues = cues
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(track))
			return
		}

		start, end := track.Span()
		cmd.Printf(
			"%s %s %s\n\n",
			style.Fg(style.Green)(icon.Get(icon.Subtitle)),
			style.Bold(track.Name()),
			style.Faint(fmt.Sprintf("%s, %s to %s",
				util.Quantify(len(track.Cues), "cue", "cues"),
				util.FormatTimestamp(start),
				util.FormatTimestamp(end),
			)),
		)

		for _, c := range cues {
			cmd.Printf(
				"%s %s\n%s\n\n",
				style.Fg(style.Mauve)(util.FormatTimestamp(c.StartTime)),
				style.Faint("→ "+util.FormatTimestamp(c.EndTime)),
				c.Plain(),
			)
		}
	},
}

// parsePosition reads plain seconds or a clock timestamp.
func parsePosition(s string) (float64, error) {
	if f, err := cast.ToFloat64E(s); err == nil {
		return f, nil
	}
	return util.ParseTimestamp(s)
}
