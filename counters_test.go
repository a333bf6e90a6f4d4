package main

import (
	"context"
	"flag"
	"testing"
	"time"

	"github.com/m-lab/counters/counters"
)

func Test_loadConfig(t *testing.T) {
	configFile = "config/testdata/config.yaml"
	backend = counters.BackendMemory
	redisAddress = "redis.example:6379"
	defer func() {
		configFile, backend, redisAddress = "", "", ""
	}()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Counters.Cls != counters.BackendMemory {
		t.Errorf("loadConfig() cls = %q, want %q", cfg.Counters.Cls, counters.BackendMemory)
	}
	if cfg.Counters.Host != "redis.example:6379" {
		t.Errorf("loadConfig() host = %q, want override", cfg.Counters.Host)
	}
}

func Test_loadConfigMissingFile(t *testing.T) {
	configFile = "config/testdata/does-not-exist.yaml"
	defer func() { configFile = "" }()
	if _, err := loadConfig(); err == nil {
		t.Error("loadConfig() error = nil, want error")
	}
}

func Test_main(t *testing.T) {
	mainCtx, mainCancel = context.WithCancel(context.Background())
	flag.Set("prometheusx.listen-address", "127.0.0.1:0")
	flag.Set("port", "0")
	flag.Set("backend", counters.BackendMemory)

	timer := time.AfterFunc(100*time.Millisecond, mainCancel)
	defer timer.Stop()
	main()
}
