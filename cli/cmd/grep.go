/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var grepLimit int

// grepCmd represents the grep command
var grepCmd = &cobra.Command{
	Use:   "grep <pattern> [room]",
	Short: "Searches the messages of a room.",
	Long: `Searches the retained messages of a room, the current room by default.
Matching is a case-insensitive substring match on the message text.`,
	Args: cobra.RangeArgs(1, 2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 1 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return RoomCompletionFunc(cmd, nil, toComplete)
	},
	Run: func(cmd *cobra.Command, args []string) {
		pattern := args[0]
		room := roomArg(args, 1)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		messages, err := fetchMessages(ctx, map[string]any{"room": room, "search": pattern, "limit": grepLimit})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error searching '%s' in %s: %v\n", pattern, room, err)
			return
		}
		for _, m := range messages {
			fmt.Println(formatMessage(m))
		}
	},
}

func init() {
	rootCmd.AddCommand(grepCmd)
	grepCmd.Flags().IntVarP(&grepLimit, "max-count", "m", 100, "Maximum number of matches")
}
