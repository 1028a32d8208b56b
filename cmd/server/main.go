package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"avl-svr/internal/config"
	"avl-svr/internal/dispatcher"
	"avl-svr/internal/feed"
	"avl-svr/internal/grpcclient"
	"avl-svr/internal/ingest"
	"avl-svr/internal/link"
	"avl-svr/internal/observability"
	"avl-svr/internal/server"
	"avl-svr/internal/store"
	"avl-svr/internal/utilities"
)

// set by -ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("avl-svr %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	cfg, err := config.Load()
	logger := observability.NewLoggerWith(cfg.LogFormat, cfg.LogLevel, os.Stdout)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Starting avl-svr...", "tcp_port", cfg.TCPPort, "http_port", cfg.MetricsPort, "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	var wg sync.WaitGroup

	opts := []dispatcher.Option{dispatcher.WithRawLog(utilities.NewRawLog(cfg.RawLogDir))}

	if cfg.RedisAddr != "" {
		st, err := store.NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			logger.Error("Redis init failed", "error", err)
			return
		}
		defer st.Close()
		opts = append(opts, dispatcher.WithSink(st))
	}

	var proxy *link.Client
	if cfg.ProxyAddr != "" {
		proxy = link.New(cfg.ProxyAddr, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			proxy.Run(ctx)
		}()
		opts = append(opts, dispatcher.WithSink(proxy))
	}

	if cfg.GRPCServer != "" {
		fwd, err := grpcclient.NewGRPCClient(cfg.GRPCServer, logger)
		if err != nil {
			logger.Error("gRPC client init failed", "error", err)
			return
		}
		defer fwd.Close()
		opts = append(opts, dispatcher.WithSink(fwd))
	}

	hub := feed.NewHub(logger)
	opts = append(opts, dispatcher.WithSink(hub))
	disp := dispatcher.New(logger, opts...)

	mux := observability.NewMux()
	mux.Handle("/ingest", ingest.NewHandler(disp, logger))
	mux.Handle("/ws", hub)
	httpSrv := observability.StartHTTPServer(cfg.MetricsPort, mux, logger)
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	srvOpts := []server.Option{
		server.WithMaxFrameSize(cfg.MaxFrameSize),
		server.WithReadTimeout(cfg.ReadTimeout),
	}
	if proxy != nil {
		srvOpts = append(srvOpts, server.WithOnConnect(func(imei string, remote net.Addr) {
			_ = proxy.SendDevice(ctx, link.NewConnectInfo(imei, remote))
		}))
	}
	tcp := server.New(disp, logger, srvOpts...)
	if err := tcp.ListenAndServe(ctx, ":"+cfg.TCPPort); err != nil {
		logger.Error("TCP server failed", "error", err)
		cancel()
	}

	logger.Info("shutting down")
	wg.Wait()
}
