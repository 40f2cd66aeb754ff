package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderlink/client"
	"orderlink/config"
	"orderlink/store"
	"orderlink/www"
)

func main() {
	configPath := flag.String("config", "orderlink.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	role := flag.String("role", "", "client role (overrides config)")
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if *port > 0 {
		cfg.Web.Port = *port
	}
	if *role != "" {
		cfg.Role = *role
	}

	// Open database
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Assemble the connector client
	cli, err := client.New(cfg, db, nil, nil)
	if err != nil {
		log.Fatalf("build client: %v", err)
	}
	defer cli.Disconnect()

	if err := cli.Connect(
		func() { log.Printf("realtime link up (%s)", cfg.Realtime.Backend) },
		func(err error) { log.Printf("realtime link gave up: %v", err) },
	); err != nil {
		log.Printf("connect: %v (reconnect policy active)", err)
	}

	// Set up HTTP server
	router, stopWeb := www.NewRouter(cli, db, cfg)
	defer stopWeb()

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := &http.Server{Addr: addr, Handler: router}

	// Start HTTP server
	go func() {
		log.Printf("OrderLink %s listening on %s (role=%s)", client.Version, addr, cfg.Role)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	// Stop SSE event hub first so long-lived connections close
	stopWeb()

	// Graceful HTTP shutdown with 10s deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
}
