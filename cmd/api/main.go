package main

import (
	"context"
	"log"

	"turnstile/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config and build the claim table registry.
// 2) Connect claim stores and ensure their schemas.
// 3) Start the HTTP server with guarded routes.
func main() {
	app, err := bootstrap.BuildAPI()
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer func() {
		_ = app.Close()
	}()

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("run: %v", err)
	}
}
