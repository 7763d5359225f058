package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragmesh"
	"github.com/hupe1980/ragmesh/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the conversation API over HTTP.

Endpoints:
  POST   /v1/sessions/:id/messages         answer a message
  POST   /v1/sessions/:id/messages/stream  answer as Server-Sent Events
  GET    /v1/sessions/:id/stats            session history size
  DELETE /v1/sessions/:id                  forget a session
  GET    /v1/welcome                       greeting for new conversations
  GET    /healthz                          health check`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	mesh, err := ragmesh.New(cfg)
	if err != nil {
		return err
	}
	defer mesh.Close()

	logger := mesh.Logger()
	srv := server.New(mesh, func(o *server.Options) {
		o.Welcome = ragmesh.WelcomeMessage
		o.Logger = logger
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.Server.Addr) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		logger.Info("Shutting down", "signal", sig.String())
	}

	if err := srv.Shutdown(); err != nil {
		logger.Error("Server forced to shutdown", "error", err.Error())
		return err
	}
	logger.Info("Server exited")
	return nil
}
