package serve

import (
	"fmt"

	cmdUtil "github.com/ValentinKolb/docdb/cmd/util"
	"github.com/ValentinKolb/docdb/rpc/common"
	"github.com/ValentinKolb/docdb/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the docdb server",
		Long:    `Start the docdb server with the specified configuration. The configuration can be set via command line flags, environment variables or a .docdb config file in the working directory. The format of the environment variables is DOCDB_<flag> (e.g. DOCDB_CACHE_TIME=2)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "data-dir"
	ServeCmd.PersistentFlags().String(key, "./docdb", cmdUtil.WrapString("Root directory of the persisted collections. Only one server may use a directory at a time"))

	key = "cache-time"
	ServeCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("Interval in minutes at which all resident collections are written to disk"))

	key = "flush-time"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("Interval in minutes after which an unused collection is written and dropped from memory"))

	key = "compression"
	ServeCmd.PersistentFlags().String(key, "none", cmdUtil.WrapString("Compression of the collection files (none, snappy, zstd, lz4)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8009", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8009, /tmp/docdb.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Read and write timeout of the transport in seconds"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Requests handled in parallel per connection (tcp and unix only, 0 uses the transport default)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address of an HTTP server exposing /metrics (e.g. localhost:9109)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	// persist the effective settings on first start
	if viper.ConfigFileUsed() == "" {
		if written, err := cmdUtil.WriteDefaultConfig(cmdUtil.DefaultConfigFile); err != nil {
			fmt.Printf("%v\n", err)
		} else if written {
			fmt.Printf("wrote default configuration to %s\n", cmdUtil.DefaultConfigFile)
		}
	}

	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.CacheTimeMinutes = viper.GetInt("cache-time")
	serveCmdConfig.FlushTimeMinutes = viper.GetInt("flush-time")
	serveCmdConfig.Compression = viper.GetString("compression")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		TCPConf:        common.TCPConf{TCPNoDelay: true},
	}

	return serveCmdConfig.Validate()
}

// run starts the docdb server
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}
