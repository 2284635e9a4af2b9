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

var (
	historyLimit  int
	historyBefore string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:     "history [room]",
	Aliases: []string{"cat"},
	Short:   "Prints the message history of a room.",
	Long: `Prints retained messages of a room in send order, oldest first.
--before takes an RFC 3339 timestamp or unix milliseconds and pages back
from there.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: RoomCompletionFunc,
	Run: func(cmd *cobra.Command, args []string) {
		room := roomArg(args, 0)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		query := map[string]any{"room": room, "limit": historyLimit}
		if historyBefore != "" {
			query["before"] = historyBefore
		}
		messages, err := fetchMessages(ctx, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing messages for %s: %v\n", room, err)
			return
		}
		if len(messages) == 0 {
			fmt.Printf("No messages in %s\n", room)
			return
		}
		for _, m := range messages {
			fmt.Println(formatMessage(m))
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of messages")
	historyCmd.Flags().StringVar(&historyBefore, "before", "", "Only messages sent before this time")
}
