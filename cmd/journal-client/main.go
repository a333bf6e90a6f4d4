package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/m-lab/counters/config"
	"github.com/m-lab/counters/journal"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
)

var (
	configFile          string
	brokers             = flagx.StringArray{}
	logLevel            string
	mainCtx, mainCancel = context.WithCancel(context.Background())
)

func init() {
	flag.StringVar(&configFile, "config", "", "YAML configuration file")
	flag.Var(&brokers, "brokers", "Kafka brokers, overriding the configuration (may be repeated)")
	flag.StringVar(&logLevel, "log-level", "info", "Logging level")
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnvWithLog(flag.CommandLine, false), "failed to read args from env")

	log.SetFormatter(&log.JSONFormatter{})
	lvl, err := log.ParseLevel(logLevel)
	rtx.Must(err, "invalid log level %q", logLevel)
	log.SetLevel(lvl)

	prom := prometheusx.MustServeMetrics()
	defer prom.Close()

	cfg := config.Default()
	if configFile != "" {
		cfg, err = config.Parse(configFile)
		rtx.Must(err, "could not load configuration")
	}
	if len(brokers) > 0 {
		cfg.Journal.Brokers = brokers
	}

	c, err := cfg.NewCounters()
	rtx.Must(err, "could not create counters backend")
	p := journal.NewProcessor(c, cfg.Processor())

	client, err := journal.NewClient(cfg.Client())
	rtx.Must(err, "could not create journal client")
	defer client.Close()

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGTERM, os.Interrupt)
	go func() {
		select {
		case <-sigterm:
			log.Info("received SIGTERM")
			mainCancel()
		case <-mainCtx.Done():
		}
	}()

	log.Infof("consuming %v from %v", client.Topics(), cfg.Journal.Brokers)
	rtx.Must(client.Process(mainCtx, newWorker(p, defaultRetry)), "journal client failed")
}
