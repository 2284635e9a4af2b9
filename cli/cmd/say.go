/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	sayRoom string
	sayTo   string
)

// sayCmd represents the say command
var sayCmd = &cobra.Command{
	Use:     "say [-r room] [--to id] <text...>",
	Aliases: []string{"echo"},
	Short:   "Sends one message.",
	Long: `Joins a room, sends one message and waits for the server to store it.
With --to, the message is sent privately to the connection with that id.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name, err := displayName()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		room := sayRoom
		if room == "" {
			room = roomArg(nil, 0)
		}
		body := strings.Join(args, " ")

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		s, err := openSession(ctx, name, room)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error joining %s: %v\n", room, err)
			return
		}
		defer s.close()

		if sayTo != "" {
			ackID, err := s.whisper(sayTo, body)
			if err == nil {
				_, err = s.awaitAck(ackID, "private_message")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error sending private message: %v\n", err)
			}
			return
		}

		ackID, err := s.say(body)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error sending message: %v\n", err)
			return
		}
		ack, err := s.awaitAck(ackID, "message:ack")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error sending message: %v\n", err)
			return
		}
		fmt.Printf("sent #%d to %s\n", ack.Get("id").Int(), room)
	},
}

func init() {
	rootCmd.AddCommand(sayCmd)
	sayCmd.Flags().StringVarP(&sayRoom, "room", "r", "", "Room to send to (default is the current room)")
	sayCmd.Flags().StringVar(&sayTo, "to", "", "Connection id of a private recipient")
}
