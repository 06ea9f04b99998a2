package app

import (
	"os"
	"time"
	_ "time/tzdata"

	"github.com/gvprof/gvprof/config"
	"github.com/gvprof/gvprof/internal/profile"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Application struct {
	appConfig *config.AppConfig
	logger    *zap.Logger
	location  *time.Location
	formats   map[string]*profile.Shapes
}

var _ ConfigProvider = (*Application)(nil)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig, logger: zap.L()}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

// OverrideLogger replaces the application's logger (used in tests).
func (a *Application) OverrideLogger(logger *zap.Logger) {
	a.logger = logger
}

// Init builds the global logger and compiles the configured line shapes.
func (a *Application) Init() error {
	cfg := a.appConfig
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	// stdout carries the result line, logs go to stderr
	zapConfig.OutputPaths = []string{"stderr"}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stderr),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			return errors.Wrap(err, "build logger")
		}
	}

	zap.ReplaceGlobals(logger)
	a.logger = logger
	return a.prepare()
}

// prepare loads the timezone and compiles the configured line shapes.
func (a *Application) prepare() error {
	if a.formats != nil {
		return nil
	}
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		a.logger.Error("timezone config error, using local time",
			zap.String("namespace", "app"), zap.String("location", a.appConfig.System.Location), zap.Error(err))
		loc = time.Local
	}
	a.location = loc

	formats, err := profile.CompileAll(a.appConfig.Formats)
	if err != nil {
		return errors.Wrap(err, "compile line shapes")
	}
	a.formats = formats
	return nil
}

// Release flushes buffered log entries.
func (a *Application) Release() {
	_ = a.logger.Sync()
}
