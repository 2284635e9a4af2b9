/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "roomcast-server",
	Short: "Real-time room chat server",
	Long: `roomcast-server relays chat between clients connected over websocket or gRPC.

Clients join a room with a display name, then exchange room messages,
private messages, typing indicators, reactions and read receipts. Recent
history is kept per room and can be queried over HTTP or gRPC.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./roomcast.yaml)")
}
