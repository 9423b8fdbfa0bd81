package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/climtools/qqmap/internal/constants"
	"github.com/climtools/qqmap/internal/log"
	"github.com/climtools/qqmap/internal/qq"
	"github.com/climtools/qqmap/internal/server"
)

func main() {
	var (
		tfFile     = flag.String("tf", "", "Saved transfer function to serve (required)")
		listenAddr = flag.String("listen-addr", "0.0.0.0", "Address to listen on")
		port       = flag.Int("port", 8080, "Port to listen on")
		certPath   = flag.String("cert", "", "TLS certificate path (serves plain HTTP when empty)")
		keyPath    = flag.String("key", "", "TLS key path")

		debug       = flag.Bool("debug", false, "Turn on debugging output")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("qqmap-serve %s\n", constants.Version)
		os.Exit(0)
	}
	if *tfFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: qqmap-serve -tf FILE [flags]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	tf, err := qq.Load(*tfFile)
	if err != nil {
		log.Fatalf("Failed to load transfer function: %v", err)
	}
	log.Infof("loaded %s transfer function covering %d day(s)", tf.Method, tf.CoveredDays())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	srv, err := server.NewServer(ctx, &wg, server.Config{
		ListenAddr:  *listenAddr,
		Port:        *port,
		TLSCertPath: *certPath,
		TLSKeyPath:  *keyPath,
	}, tf, log.GetSugaredLogger())
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	<-ctx.Done()
	log.Info("shutdown signal received, waiting for server to stop...")
	wg.Wait()
	log.Info("shutdown complete")
}
