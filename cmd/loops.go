package cmd

import (
	"fmt"
	"os"
	"text/template"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/subloop-cli/subloop/constant"
	"github.com/subloop-cli/subloop/filesystem"
	"github.com/subloop-cli/subloop/icon"
	"github.com/subloop-cli/subloop/open"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/style"
	"github.com/subloop-cli/subloop/util"
)

func init() {
	rootCmd.AddCommand(loopsCmd)
	loopsCmd.SetOut(os.Stdout)
}

// loopsCmd groups the commands over saved segment loops.
var loopsCmd = &cobra.Command{
	Use:   "loops",
	Short: "Manage the segment loops saved per media",
}

func init() {
	loopsCmd.AddCommand(loopsInitCmd)
	loopsInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing loops file")
}

var loopsInitCmd = &cobra.Command{
	Use:   "init <media>",
	Short: "Write a loops file for media, ready to edit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		media := args[0]
		path := loopsPathFor(media)

		exists, err := filesystem.API().Exists(path)
		handleErr(err)
		if exists && !lo.Must(cmd.Flags().GetBool("force")) {
			handleErr(fmt.Errorf("%s already exists, use --force to overwrite", path))
		}

		handleErr(writeLoopsTemplate(path, media))
		fmt.Printf("%s wrote %s\n", style.Fg(style.Green)(icon.Get(icon.Success)), path)
	},
}

func writeLoopsTemplate(path, media string) error {
	file, err := filesystem.API().Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	tmpl := lo.Must(template.New("loops").Parse(constant.LoopsTemplate))
	return tmpl.Execute(file, struct {
		Title string
		Media string
		Loops []segment.Bookmark
	}{
		Title: util.FileStem(media),
		Media: media,
	})
}

func init() {
	loopsCmd.AddCommand(loopsEditCmd)
}

var loopsEditCmd = &cobra.Command{
	Use:   "edit <media>",
	Short: "Open the loops file for media in $EDITOR, creating it when missing",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		media := args[0]
		path := loopsPathFor(media)

		exists, err := filesystem.API().Exists(path)
		handleErr(err)
		if !exists {
			handleErr(writeLoopsTemplate(path, media))
		}

		handleErr(open.Edit(path))

		// catch mistakes while the file is still fresh in mind
		if _, err := segment.LoadBookmarks(path); err != nil {
			fmt.Printf("%s %s\n", style.Fg(style.Yellow)(icon.Get(icon.Warning)), err)
		}
	},
}

func init() {
	loopsCmd.AddCommand(loopsListCmd)
}

var loopsListCmd = &cobra.Command{
	Use:     "list <media>",
	Aliases: []string{"ls"},
	Short:   "List the loops saved for media",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := segment.LoadBookmarks(loopsPathFor(args[0]))
		handleErr(err)

		for _, bm := range b.Loops {
			repeat := lo.Ternary(bm.Count == 0, "forever", util.Quantify(bm.Count, "time", "times"))
			cmd.Printf(
				"%s %s %s\n",
				style.Fg(style.Peach)(icon.Get(icon.Loop)),
				style.Bold(bm.Label),
				style.Faint(fmt.Sprintf("%s - %s, %s",
					util.FormatTimestamp(float64(bm.Start)),
					util.FormatTimestamp(float64(bm.End)),
					repeat,
				)),
			)
		}
	},
}
