package main

import (
	"flag"
	"log"

	"github.com/omnigate/omnigate/internal/config"
	"github.com/omnigate/omnigate/pkg/gateway"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	envFiles := []string{".env.local", ".env.development", ".env"}
	config.LoadEnvFiles(envFiles)

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fiberlog.Fatalf("Failed to load config: %v", err)
	}

	gw := gateway.New(cfg)

	log.Println("Starting OmniGate server...")
	if err := gw.Run(); err != nil {
		fiberlog.Fatalf("Server failed: %v", err)
	}
}
