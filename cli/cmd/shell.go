/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func runShell() {
	fmt.Println("entering interactive mode, type 'exit' to quit")
	p := prompt.New(
		executeLine,
		completeLine,
		prompt.OptionTitle("roomcast"),
		prompt.OptionLivePrefix(func() (string, bool) {
			return viper.GetString(currentRoomKey) + " ❯❯❯ ", true
		}),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			in = strings.TrimSpace(in)
			return breakline && (in == "exit" || in == "quit")
		}),
	)
	p.Run()
}

func executeLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || line == "exit" || line == "quit" {
		return
	}
	args, err := shellwords.Parse(line)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error parsing command:", err)
		return
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	resetFlags(rootCmd)
}

// resetFlags restores flag defaults so options from one shell line do not
// leak into the next.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func completeLine(d prompt.Document) []prompt.Suggest {
	words := strings.Fields(d.TextBeforeCursor())
	word := d.GetWordBeforeCursor()
	if len(words) == 0 || (len(words) == 1 && word != "") {
		var s []prompt.Suggest
		for _, c := range rootCmd.Commands() {
			if c.Hidden || !c.IsAvailableCommand() {
				continue
			}
			s = append(s, prompt.Suggest{Text: c.Name(), Description: c.Short})
		}
		return prompt.FilterHasPrefix(s, word, true)
	}

	sub, _, err := rootCmd.Find(words[:1])
	if err != nil || sub.ValidArgsFunction == nil {
		return nil
	}
	rooms, _ := sub.ValidArgsFunction(sub, words[1:], word)
	s := make([]prompt.Suggest, 0, len(rooms))
	for _, r := range rooms {
		s = append(s, prompt.Suggest{Text: r})
	}
	return prompt.FilterHasPrefix(s, word, true)
}
