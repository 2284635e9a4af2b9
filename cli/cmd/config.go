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

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [new_display_name]",
	Short: "Gets or sets the display name.",
	Long: `Manages configuration for the roomcast client.
If called without arguments, it displays the current display name.
If called with an argument, it stores the display name in the config file.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Printf("Display Name: %s\n", viper.GetString(displayNameKey))
			return
		}

		newDisplayName := strings.TrimSpace(args[0])
		if newDisplayName == "" {
			fmt.Fprintln(os.Stderr, "Display name must not be empty")
			return
		}
		viper.Set(displayNameKey, newDisplayName)
		if err := saveConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting config: %v\n", err)
			return
		}
		fmt.Printf("Display name set to: %s\n", newDisplayName)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
