/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/ponyo877/roomcast/pb"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"google.golang.org/protobuf/types/known/emptypb"
)

// RoomCompletionFunc completes the first argument with rooms that currently
// have members.
func RoomCompletionFunc(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || roomcastClient == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sessions, err := listSessions(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var rooms []string
	for _, s := range sessions {
		room := s.Get("room").String()
		if room != "" && strings.HasPrefix(room, toComplete) && !slices.Contains(rooms, room) {
			rooms = append(rooms, room)
		}
	}
	slices.Sort(rooms)
	return rooms, cobra.ShellCompDirectiveNoFileComp
}

func listSessions(ctx context.Context) ([]gjson.Result, error) {
	res, err := roomcastClient.ListSessions(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	data, err := pb.ListToJSON(res)
	if err != nil {
		return nil, err
	}
	return gjson.ParseBytes(data).Array(), nil
}
