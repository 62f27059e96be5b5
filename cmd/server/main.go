package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/hexdesk/desk-api/auth"
	"github.com/hexdesk/desk-api/auth/bearertoken"
	"github.com/hexdesk/desk-api/auth/oidcsession"
	"github.com/hexdesk/desk-api/internal/config"
	"github.com/hexdesk/desk-api/providers"
	"github.com/hexdesk/desk-api/server"
	"github.com/hexdesk/desk-api/users"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	_ = godotenv.Load()

	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	registry, err := providers.NewRegistryFromFile(c.GetProviderConfigFile())
	if err != nil {
		return errors.Wrap(err, "loading provider configuration")
	}

	broker, err := auth.NewBroker(auth.Repos{
		Sessions: oidcsession.NewInMemoryRepo(c.GetSessionTTL()),
		Users:    users.NewInMemoryRepo(),
		Tokens:   bearertoken.NewInMemoryRepo(),
	}, registry,
		auth.WithSessionTTL(c.GetSessionTTL()),
		auth.WithExchangeTimeout(c.GetExchangeTimeout()),
	)
	if err != nil {
		return errors.Wrap(err, "creating auth broker")
	}

	srv, err := server.New(c, broker, Version)
	if err != nil {
		return errors.Wrap(err, "creating server")
	}

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	broker.StartReaper(reaperCtx, c.GetReaperInterval())

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
