/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cdCmd represents the cd command
var cdCmd = &cobra.Command{
	Use:   "cd [room]",
	Short: "Changes the current room.",
	Long: `Changes the room that history, tail, grep, users, say and chat use when
no room is given. Without an argument it returns to "general".
Rooms exist as soon as someone joins them, so any name is accepted.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: RoomCompletionFunc,
	Run: func(cmd *cobra.Command, args []string) {
		room := "general"
		if len(args) == 1 {
			room = strings.TrimSpace(args[0])
		}
		if room == "" {
			fmt.Fprintln(os.Stderr, "Room name must not be empty")
			return
		}

		viper.Set(currentRoomKey, room)
		if err := saveConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "Error writing config file:", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(cdCmd)
}
