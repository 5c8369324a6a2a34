package main

import (
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"

	"github.com/sumimakito/oncegate"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var logLevels = map[string]zapcore.Level{
	"debug":  zap.DebugLevel,
	"info":   zap.InfoLevel,
	"warn":   zap.WarnLevel,
	"error":  zap.ErrorLevel,
	"dpanic": zap.DPanicLevel,
	"panic":  zap.PanicLevel,
	"fatal":  zap.FatalLevel,
}

type parsedConfig struct {
	Listen   string `yaml:"listen"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
}

func loadConfig(path string) (*parsedConfig, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c parsedConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func main() {
	workDir := oncegate.Must2(os.Getwd())

	var configPath string
	var listenAddr string
	var dbPath string
	var logLevelName string
	flag.StringVar(&configPath, "config", "",
		"Path to the config file.")
	flag.StringVar(&listenAddr, "listen", ":8080",
		"Address for the KV server to listen on.")
	flag.StringVar(&dbPath, "db", "lazykv.db",
		"Path to the store file. The file is not created until the first data request.")
	flag.StringVar(&logLevelName, "log", "info",
		"Logging level (available: debug, info, warn, error, dpanic, panic, fatal).")
	flag.Parse()

	if configPath != "" {
		config := oncegate.Must2(loadConfig(oncegate.PathJoin(workDir, configPath)))
		if config.Listen != "" {
			listenAddr = config.Listen
		}
		if config.DBPath != "" {
			dbPath = config.DBPath
		}
		if config.LogLevel != "" {
			logLevelName = config.LogLevel
		}
	}

	logLevel, ok := logLevels[logLevelName]
	if !ok {
		log.Panicf("unknown log level: %s", logLevelName)
	}

	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(logLevel)
	logger := oncegate.Must2(zapConfig.Build()).Sugar()
	defer logger.Sync()

	s := newServer(logger, oncegate.PathJoin(workDir, dbPath))

	hooks := oncegate.NewHooks(oncegate.LoggerOption(logger))
	oncegate.RegisterLazy(hooks, s.store, func(store *kvStore) {
		if err := store.Close(); err != nil {
			logger.Warnw("failed to close the store", "error", err)
			return
		}
		logger.Infow("store closed")
	})
	shutdownCh := hooks.HandleSignals()

	httpServer := &http.Server{Addr: listenAddr, Handler: s.router()}
	go func() {
		logger.Infow("KV server started",
			"address", listenAddr,
			"endpoint", fmt.Sprintf("http://%s", listenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server error", "error", err)
		}
	}()

	<-shutdownCh
	httpServer.Close()
}
