package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/docdb/cmd/document"
	"github.com/ValentinKolb/docdb/cmd/serve"
	"github.com/ValentinKolb/docdb/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "docdb",
		Short: "lightweight document store",
		Long: fmt.Sprintf(`docdb (v%s)

A lightweight document store written in Go. Collections of BSON
documents are cached in memory and persisted to one file each.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of docdb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("docdb v%s\n", Version)
		},
	}
)

func init() {
	// Load .env files, environment variables and the config file
	cobra.OnInitialize(util.InitConfig)

	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(document.DocumentCommands)
	RootCmd.AddCommand(versionCmd)

	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
