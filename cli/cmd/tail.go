/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	follow    bool // Flag for -f option
	tailLines int
)

// tailCmd represents the tail command
var tailCmd = &cobra.Command{
	Use:   "tail [-f] [-n lines] [room]",
	Short: "Displays the latest messages of a room.",
	Long: `Displays the latest messages of a room, the current room by default.
With -f, joins the room and keeps printing new messages until interrupted.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: RoomCompletionFunc,
	Run: func(cmd *cobra.Command, args []string) {
		room := roomArg(args, 0)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		messages, err := fetchMessages(ctx, map[string]any{"room": room, "limit": tailLines})
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing messages for %s: %v\n", room, err)
			return
		}
		for _, m := range messages {
			fmt.Println(formatMessage(m))
		}
		if !follow {
			return
		}

		name, err := displayName()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		s, err := openSession(ctx, name, room)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error joining %s: %v\n", room, err)
			return
		}
		defer s.close()

		for {
			event, f, err := s.recv()
			if err != nil {
				if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				fmt.Fprintf(os.Stderr, "Error receiving messages for %s: %v\n", room, err)
				return
			}
			switch event {
			case "receive_message", "private_message":
				fmt.Println(formatMessage(f.Get("payload")))
			case "userNotification":
				fmt.Println("* " + f.Get("payload.message").String())
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)
	tailCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new messages")
	tailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of past messages to print")
}
