package app

import (
	"github.com/gvprof/gvprof/config"
	"github.com/gvprof/gvprof/internal/emitter"
)

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// Runner turns one profile log into its output directory.
type Runner interface {
	ConfigProvider
	Run(logPath string) (*emitter.Report, error)
}

var _ Runner = (*Application)(nil)
