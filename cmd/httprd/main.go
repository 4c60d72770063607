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

	"github.com/bitrate16/httprd/internal/capture"
	"github.com/bitrate16/httprd/internal/config"
	"github.com/bitrate16/httprd/internal/input"
	"github.com/bitrate16/httprd/internal/server"
)

func main() {
	cfg := config.Default()
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flag.StringVar(&cfg.ControlPassword, "password", "", "password for control sessions (required)")
	flag.StringVar(&cfg.ViewPassword, "view_password", "", "password for view-only sessions")
	flag.BoolVar(&cfg.Fullscreen, "fullscreen", false, "capture all displays instead of the primary one")
	flag.IntVar(&cfg.MaxFPS, "max_fps", cfg.MaxFPS, "frame rate cap per session")
	flag.IntVar(&cfg.MaxIPS, "max_ips", cfg.MaxIPS, "input events per second cap per session")
	flag.IntVar(&cfg.MinQuality, "min_quality", cfg.MinQuality, "lower JPEG quality bound")
	flag.IntVar(&cfg.MaxQuality, "max_quality", cfg.MaxQuality, "upper JPEG quality bound")
	flag.IntVar(&cfg.PartialRepaint, "partial_repaint", cfg.PartialRepaint, "partial frames before a forced full repaint")
	flag.IntVar(&cfg.EmptyRepaint, "empty_repaint", cfg.EmptyRepaint, "empty frames before a forced full repaint")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	grabber, err := capture.NewGrabber(cfg.Fullscreen)
	if err != nil {
		log.Fatalf("can't init capture: %v", err)
	}

	srv := server.New(cfg, grabber, input.NewSynthesizer())
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Handler(),
	}

	serverErrs := make(chan error, 1)
	go func() {
		log.Printf("listening on port %d", cfg.Port)
		serverErrs <- httpSrv.ListenAndServe()
	}()
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrs:
		log.Fatalf("server error: %v", err)
	case sig := <-interrupt:
		log.Printf("received %v signal, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Println("server shutdown error:", err)
	}
	srv.Close()
}
