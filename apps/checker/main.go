package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	dig_container "github.com/trezcool/masomo-checker/apps/checker/di"
	echoapi "github.com/trezcool/masomo-checker/apps/checker/echo"
	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/core/reconcile"
	"github.com/trezcool/masomo-checker/storage"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		store storage.Store,
		driver *reconcile.Driver,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		logger.Info(fmt.Sprintf("Application initializing : version %q, %s store at %q", conf.Build, conf.Store.Backend, conf.Store.Root))
		defer logger.Info("Application stopped")

		defer func() {
			if err := store.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing store: %v", err), err)
			}
		}()

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		expvar.NewString("store").Set(conf.Store.Backend)

		if conf.Server.DebugHost != "" {
			go func() {
				if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
					logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
				}
			}()
		}

		// =========================================================================
		// Start Checker & API Service

		if err := driver.Start(context.Background()); err != nil {
			logger.Fatal(fmt.Sprintf("starting checker: %v", err), err)
		}

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			logger.Error(fmt.Sprintf("server error: %v", err), err)
			if err = driver.Stop(); err != nil {
				logger.Error(fmt.Sprintf("stopping checker: %v", err), err)
			}

		case sig := <-server.ShutdownSignal():
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// no pass starts from now on; the one in flight completes
			if err := driver.Stop(); err != nil {
				logger.Error(fmt.Sprintf("stopping checker: %v", err), err)
			}

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
