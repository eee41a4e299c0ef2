package main

import (
	"context"
	"log"
	"os"

	"github.com/engineerhub/engineerhub/internal/server"
	"github.com/engineerhub/engineerhub/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		app.Close()
		os.Exit(1)
	}

}
