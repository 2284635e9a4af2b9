/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// idCmd represents the id command
var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Prints the client identity.",
	Long: `Prints the display name, the server this client talks to and the current
room. Connection ids are assigned per connection by the server and are
shown by "users".`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		name := viper.GetString(displayNameKey)
		if name == "" {
			name = "(not set)"
		}
		fmt.Printf("DisplayName: %s\n", name)
		fmt.Printf("Server: %s\n", viper.GetString(serverAddressKey))
		fmt.Printf("Room: %s\n", viper.GetString(currentRoomKey))
	},
}

func init() {
	rootCmd.AddCommand(idCmd)
}
