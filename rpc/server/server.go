package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/docdb/lib/persist"
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/ValentinKolb/docdb/lib/store/cstore"
	"github.com/ValentinKolb/docdb/rpc/common"
	"github.com/ValentinKolb/docdb/rpc/serializer"
	"github.com/ValentinKolb/docdb/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sourcegraph/conc"
)

var Logger = logger.GetLogger("rpc")

// RPCServer serves a collection engine over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    NewIDocStoreServerAdapter(),
	}
}

// Serve installs the loggers and runs the server until SIGINT or SIGTERM
func (s *RPCServer) Serve() error {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if err := common.InitLoggers(s.config); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

// Run opens the engine and serves requests until ctx is cancelled.
// The engine is stopped only after the transport returned, so its final
// sync covers every acknowledged request.
func (s *RPCServer) Run(ctx context.Context) error {
	Logger.Infof("Starting docdb server")
	Logger.Infof(s.config.String())

	compression, err := persist.ParseCompression(s.config.Compression)
	if err != nil {
		return err
	}

	engine, err := cstore.NewEngine(cstore.Config{
		DataDir:     s.config.DataDir,
		CacheTime:   s.config.CacheTime(),
		FlushTime:   s.config.FlushTime(),
		Compression: compression,
	})
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			Logger.Errorf("Failed to close engine: %v", err)
		}
	}()

	s.transport.RegisterHandler(NewRequestHandler(engine, s.serializer, s.adapter))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()

	var wg conc.WaitGroup
	var engineErr, metricsErr error
	wg.Go(func() { engineErr = engine.Run(engineCtx) })
	if s.config.MetricsEndpoint != "" {
		wg.Go(func() { metricsErr = serveMetrics(runCtx, s.config.MetricsEndpoint, engine) })
	}

	listenErr := s.transport.Listen(runCtx, s.config)
	if listenErr != nil {
		Logger.Errorf("Transport failed: %v", listenErr)
	}

	// no request is in flight anymore
	cancel()
	stopEngine()
	wg.Wait()

	Logger.Infof("docdb server stopped")
	return errors.Join(listenErr, engineErr, metricsErr)
}

// NewRequestHandler creates the transport handler that decodes requests with
// ser, lets adapter run them against s and encodes the responses.
func NewRequestHandler(s store.IDocStore, ser serializer.IRPCSerializer, adapter IRPCServerAdapter) transport.ServerHandleFunc {
	return func(req []byte) []byte {
		var msg common.Message
		var resp *common.Message

		if err := ser.Deserialize(req, &msg); err != nil {
			resp = common.NewErrorResponse(store.RetCInvalidArgument, fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			resp = adapter.Handle(&msg, s)
		}

		data, err := ser.Serialize(*resp)
		if err != nil {
			Logger.Errorf("Failed to serialize %s response: %v", resp.MsgType, err)
			data, _ = ser.Serialize(*common.NewErrorResponse(store.RetCInternalError, fmt.Sprintf("failed to serialize response: %s", err)))
		}
		return data
	}
}

// serveMetrics serves the engine and process metrics in Prometheus format until ctx is cancelled
func serveMetrics(ctx context.Context, addr string, engine *cstore.Engine) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		engine.WritePrometheus(w)
		metrics.WriteProcessMetrics(w)
	})

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	})
	defer stop()

	Logger.Infof("Serving metrics on %s/metrics", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics endpoint failed: %w", err)
	}
	return nil
}
