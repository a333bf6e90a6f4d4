package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/m-lab/counters/config"
	"github.com/m-lab/counters/handler"
	"github.com/m-lab/counters/history"
	"github.com/m-lab/counters/static"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
)

var (
	listenPort    string
	configFile    string
	backend       string
	redisAddress  string
	remoteURL     string
	logLevel      string
	historyPeriod time.Duration
)

func init() {
	// PORT is part of the default App Engine environment.
	flag.StringVar(&listenPort, "port", "8080", "AppEngine port environment variable")
	flag.StringVar(&configFile, "config", "", "YAML configuration file; the in-memory backend is used when empty")
	flag.StringVar(&backend, "backend", "", "Overrides the counters backend of the configuration (memory, redis, remote, hll)")
	flag.StringVar(&redisAddress, "redis-address", "", "Overrides the address of the Redis server")
	flag.StringVar(&remoteURL, "remote-url", "", "Overrides the URL of the remote counters server")
	flag.StringVar(&logLevel, "log-level", "info", "Logging level")
	flag.DurationVar(&historyPeriod, "history-period", static.HistoryExportExpected, "Mean period between exports of counter values as metrics; 0 disables them")
}

var mainCtx, mainCancel = context.WithCancel(context.Background())

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Parse(configFile); err != nil {
			return nil, err
		}
	}
	if backend != "" {
		cfg.Counters.Cls = backend
	}
	if redisAddress != "" {
		cfg.Counters.Host = redisAddress
	}
	if remoteURL != "" {
		cfg.Counters.URL = remoteURL
	}
	return cfg, nil
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")

	log.SetFormatter(&log.JSONFormatter{})
	lvl, err := log.ParseLevel(logLevel)
	rtx.Must(err, "Invalid log level %q", logLevel)
	log.SetLevel(lvl)

	prom := prometheusx.MustServeMetrics()
	defer prom.Close()

	cfg, err := loadConfig()
	rtx.Must(err, "Failed to load configuration")
	c, err := cfg.NewCounters()
	rtx.Must(err, "Failed to create counters backend")

	if historyPeriod > 0 {
		exp := history.NewExporter(c, history.PeriodConfig(historyPeriod))
		go func() {
			if err := exp.Run(mainCtx); err != nil {
				log.Errorf("History exporter stopped: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	handler.NewServer(c).Register(mux)

	srv := &http.Server{
		Addr:    ":" + listenPort,
		Handler: mux,
	}
	log.Infof("Listening for counters requests on %s using the %s backend", listenPort, cfg.Counters.Cls)
	rtx.Must(httpx.ListenAndServeAsync(srv), "Could not start server")
	defer srv.Close()
	<-mainCtx.Done()
}
