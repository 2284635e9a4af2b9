/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var allRooms bool

// usersCmd represents the users command
var usersCmd = &cobra.Command{
	Use:     "users [room]",
	Aliases: []string{"ls", "who"},
	Short:   "Lists users present in a room.",
	Long: `Lists the users present in a room, the current room by default.
With -a, lists every joined user grouped by room.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: RoomCompletionFunc,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		sessions, err := listSessions(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing users: %v\n", err)
			return
		}
		if !allRooms {
			room := roomArg(args, 0)
			sessions = slices.DeleteFunc(sessions, func(s gjson.Result) bool {
				return s.Get("room").String() != room
			})
		}
		slices.SortStableFunc(sessions, func(a, b gjson.Result) int {
			return cmp.Compare(a.Get("room").String(), b.Get("room").String())
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ROOM\tNAME\tID")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Get("room").String(), s.Get("username").String(), s.Get("id").String())
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.Flags().BoolVarP(&allRooms, "all", "a", false, "List users of every room")
}
