// Package main runs the danmu2ass web service.
//
// Usage:
//
//	go run ./cmd/danmu2ass-web [flags]
//
// Environment (a .env file in the working directory is loaded when present):
//
//	DANMU2ASS_ADDR    listen address (default :8000)
//	DANMU2ASS_STATIC  directory with the web UI, served at / when set
//	DANMU2ASS_VERBOSE log every delayed/dropped danmaku when "true"
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gonewx/danmu2ass/internal/bilibili"
	"github.com/gonewx/danmu2ass/internal/web"
	"github.com/joho/godotenv"
)

var (
	addrFlag   = flag.String("addr", "", "Listen address (overrides DANMU2ASS_ADDR)")
	staticFlag = flag.String("static", "", "Web UI directory (overrides DANMU2ASS_STATIC)")
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("[Web] No .env file found, using system environment variables")
	} else {
		log.Println("[Web] Loaded environment variables from .env file")
	}

	addr := getenv("DANMU2ASS_ADDR", ":8000")
	if *addrFlag != "" {
		addr = *addrFlag
	}
	static := getenv("DANMU2ASS_STATIC", "")
	if *staticFlag != "" {
		static = *staticFlag
	}

	client := bilibili.NewClient()
	server := web.NewServer(client, static)
	server.Verbose = os.Getenv("DANMU2ASS_VERBOSE") == "true"
	client.Verbose = server.Verbose

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx, addr); err != nil {
		log.Fatal(err)
	}
}
