package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	once   sync.Once
)

// envEnvironment is read directly because package loggers are built at init,
// before the configuration is loaded.
const envEnvironment = "CARAUCTION_APP__ENVIRONMENT"

// GetLogger returns zap.Logger instance, but using singleton pattern creates only one reusable instace
// development config by default, JSON production config when the environment is "production"
func GetLogger() *zap.Logger {
	once.Do(func() {
		var err error
		logger, err = newConfig(os.Getenv(envEnvironment)).Build()
		if err != nil {
			panic("failed logger setup : " + err.Error())
		}
	})
	return logger
}

func newConfig(environment string) zap.Config {
	cfg := zap.NewDevelopmentConfig()
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = level
	return cfg
}

// SetLevel changes the level of the shared logger. Package loggers obtained
// earlier through GetLogger see the change too since they share the atomic level.
func SetLevel(lvl string) error {
	parsed, err := zapcore.ParseLevel(lvl)
	if err != nil {
		return err
	}
	level.SetLevel(parsed)
	return nil
}
