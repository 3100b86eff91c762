package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"skirace/config"
	"skirace/match"
	"skirace/server"
	"skirace/store"
)

// 入口：加载配置，启动 HTTP + WebSocket 服务与可选的 yamux TCP 接入
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address, e.g. :8080")
	flag.StringVar(&cfg.TCPAddr, "tcp", cfg.TCPAddr, "yamux tcp listen address, empty to disable")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "bolt file for match results, empty to disable")
	flag.Parse()

	if err := server.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		panic(err)
	}
	defer server.SyncLogger()
	log := server.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink match.ResultSink = match.NopSink{}
	var db *store.BoltStore
	if cfg.DBPath != "" {
		if db, err = store.Open(cfg.DBPath); err != nil {
			log.Fatalf("store: %v", err)
		}
		sink = db
	}

	reg := match.NewRegistry(ctx, cfg.Tuning, log, match.WithSink(sink))
	s := server.New(cfg, reg, nil, log)
	go s.Heartbeat(ctx)

	srv := &http.Server{Addr: cfg.Addr, Handler: s.Handler()}
	go func() {
		log.Infof("listening on %s; open http://localhost%v/", cfg.Addr, cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	if cfg.TCPAddr != "" {
		ln, err := net.Listen("tcp", cfg.TCPAddr)
		if err != nil {
			log.Fatalf("tcp listen: %v", err)
		}
		log.Infof("yamux tcp listening on %s", cfg.TCPAddr)
		go func() {
			if err := s.ServeTCP(ctx, ln); err != nil {
				log.Errorf("tcp: %v", err)
			}
		}()
	}

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = multierr.Combine(
		srv.Shutdown(shutdownCtx),
		s.Shutdown(shutdownCtx),
		reg.Close(shutdownCtx),
	)
	if db != nil {
		err = multierr.Append(err, db.Close())
	}
	if err != nil {
		log.Errorf("shutdown: %v", err)
		server.SyncLogger()
		os.Exit(1)
	}
}
