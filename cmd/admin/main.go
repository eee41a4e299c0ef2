package main

import (
	"context"
	"os"

	"github.com/engineerhub/engineerhub/internal/admin"
	"github.com/engineerhub/engineerhub/internal/server/config"
)

func main() {

	root := admin.NewRootCommand(func(ctx context.Context) (admin.Backend, error) {
		return admin.NewBackend(ctx, config.LoadFileAndEnv())
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}

}
