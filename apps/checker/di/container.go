package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-checker/apps/checker/echo"
	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/core/reconcile"
	emailsvc "github.com/trezcool/masomo-checker/services/email"
	logsvc "github.com/trezcool/masomo-checker/services/logger"
	metricsvc "github.com/trezcool/masomo-checker/services/metrics"
	reportsvc "github.com/trezcool/masomo-checker/services/report"
	"github.com/trezcool/masomo-checker/storage"
)

type (
	StoreLoggerParam struct {
		dig.In
		Logger core.Logger `name:"storeLogger"`
	}

	ObserversParam struct {
		dig.In
		Metrics *metricsvc.Collector
		Report  *reportsvc.Reporter
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "CHECKER : ", log.LstdFlags|log.Lmicroseconds)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newStoreLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "STORE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newStore(conf *core.Config, loggerParam StoreLoggerParam) storage.Store {
	s, err := storage.Open(context.Background(), conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up %s store: %v", conf.Store.Backend, err), err)
	}
	return s
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.Email.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newMetrics(reg *prometheus.Registry) *metricsvc.Collector {
	return metricsvc.NewCollector(reg)
}

func newDriver(conf *core.Config, store storage.Store, logger core.Logger, observers ObserversParam) *reconcile.Driver {
	return reconcile.NewDriver(store, reconcile.Options{
		Root:      conf.Store.Root,
		Location:  conf.Checker.Location,
		Logger:    logger,
		Observers: []reconcile.Observer{observers.Metrics, observers.Report},
	})
}

func newServer(conf *core.Config, logger core.Logger, driver *reconcile.Driver, reg *prometheus.Registry) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:     conf,
		Logger:   logger,
		Checker:  driver,
		Gatherer: reg,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStoreLogger, dig.Name("storeLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newEmailService))
	must(c.Provide(newRegistry))
	must(c.Provide(newMetrics))
	must(c.Provide(reportsvc.NewReporter))
	must(c.Provide(newDriver))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
