package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf configures the socket buffers of stream transports (tcp, unix)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf configures tcp connections
type TCPConf struct {
	TCPKeepAliveSec int
	TCPLingerSec    int
	TCPNoDelay      bool
}

// ServerTransportConfig configures the server side of a transport
type ServerTransportConfig struct {
	// Endpoint is the listen address (socket path for unix)
	Endpoint string
	// WorkersPerConn limits concurrent requests per connection (tcp, unix)
	WorkersPerConn int
	SocketConf     SocketConf
	TCPConf        TCPConf
}

// ClientTransportConfig configures the client side of a transport
type ClientTransportConfig struct {
	RetryCount             int
	Endpoints              []string
	ConnectionsPerEndpoint int
	SocketConf             SocketConf
	TCPConf                TCPConf
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a docdb server.
type ServerConfig struct {
	// Storage
	DataDir          string
	CacheTimeMinutes int
	FlushTimeMinutes int
	Compression      string

	// Request timeout of the transport
	TimeoutSecond int64

	// Transport settings
	Transport ServerTransportConfig

	// Optional address of the metrics endpoint
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// CacheTime returns the full sync interval
func (c *ServerConfig) CacheTime() time.Duration {
	return time.Duration(c.CacheTimeMinutes) * time.Minute
}

// FlushTime returns the eviction interval
func (c *ServerConfig) FlushTime() time.Duration {
	return time.Duration(c.FlushTimeMinutes) * time.Minute
}

// Validate checks the intervals and the endpoint of the configuration
func (c *ServerConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if c.CacheTimeMinutes <= 0 {
		return fmt.Errorf("cache time must be positive, got %d", c.CacheTimeMinutes)
	}
	if c.FlushTimeMinutes <= 0 {
		return fmt.Errorf("flush time must be positive, got %d", c.FlushTimeMinutes)
	}
	if c.Transport.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.Transport.WorkersPerConn > 0 {
		addField("Workers Per Connection", strconv.Itoa(c.Transport.WorkersPerConn))
	}

	// Storage
	addSection("Storage")
	addField("Data Directory", c.DataDir)
	addField("Cache Time", fmt.Sprintf("%d min", c.CacheTimeMinutes))
	addField("Flush Time", fmt.Sprintf("%d min", c.FlushTimeMinutes))
	addField("Compression", c.Compression)

	// Logging and metrics
	addSection("Observability")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	} else {
		addField("Metrics Endpoint", "disabled")
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
