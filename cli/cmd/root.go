/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/ponyo877/roomcast/pb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	cfgFile        string
	serverAddress  string
	roomcastClient pb.ChatServiceClient
	grpcConn       *grpc.ClientConn
)

const (
	serverAddressKey = "server"
	displayNameKey   = "name"
	currentRoomKey   = "room"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "roomcast",
	Short: "Terminal client for a roomcast chat server",
	Long: `roomcast talks to a roomcast server over gRPC.

Run a single command, e.g. "roomcast history general", or start roomcast
without arguments for an interactive shell. "cd <room>" sets the room that
later commands use by default.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if grpcConn != nil {
			return nil
		}
		opts := append(pb.DialOptions(), grpc.WithTransportCredentials(insecure.NewCredentials()))
		conn, err := grpc.NewClient(serverAddress, opts...)
		if err != nil {
			return fmt.Errorf("did not connect to gRPC server: %w", err)
		}
		grpcConn = conn
		roomcastClient = pb.NewChatServiceClient(conn)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer closeConn()

	// one‑shot
	if len(os.Args) > 1 {
		if err := rootCmd.Execute(); err != nil {
			closeConn()
			os.Exit(1)
		}
		return
	}

	runShell()
}

func closeConn() {
	if grpcConn != nil {
		grpcConn.Close()
		grpcConn = nil
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.roomcast.yaml)")
	rootCmd.PersistentFlags().String("server", "localhost:50051", "Address of the roomcast gRPC server")
	rootCmd.PersistentFlags().String("name", "", "Display name used when joining a room")

	viper.BindPFlag(serverAddressKey, rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag(displayNameKey, rootCmd.PersistentFlags().Lookup("name"))
	viper.SetDefault(serverAddressKey, "localhost:50051")
	viper.SetDefault(currentRoomKey, "general")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".roomcast")
	}

	viper.SetEnvPrefix("ROOMCAST")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}

	serverAddress = viper.GetString(serverAddressKey)
}

// saveConfig persists viper settings, creating the config file on first use.
func saveConfig() error {
	if err := viper.WriteConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		return viper.WriteConfigAs(home + string(os.PathSeparator) + ".roomcast.yaml")
	}
	return nil
}

// roomArg returns args[i] when present and the current room otherwise.
func roomArg(args []string, i int) string {
	if len(args) > i && args[i] != "" {
		return args[i]
	}
	return viper.GetString(currentRoomKey)
}

func displayName() (string, error) {
	name := viper.GetString(displayNameKey)
	if name == "" {
		return "", fmt.Errorf("display name is not set: run `roomcast config <name>` or pass --name")
	}
	return name, nil
}
