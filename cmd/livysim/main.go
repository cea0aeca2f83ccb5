package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/livyctl/internal/livysim"
	"github.com/danmuck/livyctl/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to livysim config.toml")
	flag.Parse()

	logger := observability.InitLogger("livysim")

	cfg := livysim.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "livysim: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.Logger = logger

	svc := livysim.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "livysim: %v\n", err)
		os.Exit(1)
	}
}
