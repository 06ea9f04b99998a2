package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gvprof/gvprof/config"
	"github.com/gvprof/gvprof/internal/aggregate"
	"github.com/gvprof/gvprof/internal/emitter"
	"github.com/gvprof/gvprof/internal/profile"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Run parses logPath, aggregates it and writes the output directory next
// to it. Nothing is written unless parsing succeeds.
func (a *Application) Run(logPath string) (*emitter.Report, error) {
	if err := a.prepare(); err != nil {
		return nil, err
	}
	cfg := a.appConfig
	log := a.logger.With(zap.String("namespace", "app"), zap.String("log", logPath))

	format, err := a.resolveFormat(logPath)
	if err != nil {
		return nil, err
	}
	log.Debug("format selected", zap.String("format", format))

	f, err := os.Open(logPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", logPath)
	}
	defer f.Close()

	diag := profile.NewDiagnostics()
	parsed, err := profile.Parse(f, a.formats[format], profile.ParseOptions{
		Split:      profile.SplitOptions{KeepPartial: cfg.Profile.KeepPartial, Location: a.location},
		ClientName: clientName(logPath),
	}, diag)
	if err != nil {
		diag.Log(a.logger)
		return nil, errors.Wrapf(err, "parse %s", logPath)
	}

	interval, source, err := resolveInterval(cfg.Profile.Interval, parsed)
	if err != nil {
		diag.Log(a.logger)
		return nil, errors.Wrapf(err, "parse %s", logPath)
	}
	profile.CheckDurations(parsed.Samples, interval, diag)
	diag.Log(a.logger)

	log.Info("profile parsed",
		zap.String("format", format),
		zap.Int("blocks", parsed.Blocks),
		zap.Int("samples", len(parsed.Samples)),
		zap.Int("skipped", len(parsed.Skipped)),
		zap.Duration("interval", interval),
		zap.String("interval_source", source),
	)
	if want := parsed.Preamble.SampleCount; want > 0 && want != parsed.Blocks {
		log.Info("sample count differs from the requested count",
			zap.Int("requested", want), zap.Int("found", parsed.Blocks))
	}

	res, err := aggregate.Aggregate(parsed.Samples, aggregate.Options{
		Interval:      interval,
		Start:         parsed.Preamble.Start,
		TimestampMode: cfg.Profile.TimestampMode,
		FillGaps:      cfg.Profile.FillGaps,
	})
	if err != nil {
		return nil, err
	}
	if res.Clamped > 0 {
		log.Warn("sample timestamps went backwards and were held at the previous value",
			zap.Int("samples", res.Clamped))
	}

	meta := emitter.Meta{
		Log:           filepath.Base(logPath),
		TimestampMode: cfg.Profile.TimestampMode,
		Blocks:        parsed.Blocks,
		Skipped:       len(parsed.Skipped),
		Diagnostics:   diag.Entries(),
	}
	if !parsed.Preamble.Start.IsZero() {
		meta.StartMs = parsed.Preamble.Start.UnixMilli()
	}
	report, err := emitter.Write(logPath, res, meta, emitter.Options{
		Format:          format,
		TimestampColumn: cfg.TimestampColumnEnabled(),
		StaticDir:       cfg.Profile.StaticDir,
		Outputs:         cfg.Profile.Outputs,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "emit %s", logPath)
	}
	log.Info("output written",
		zap.String("dir", report.Dir),
		zap.Int("files", len(report.Files)),
		zap.Strings("ops", res.Ops()),
	)
	return report, nil
}

func (a *Application) resolveFormat(logPath string) (string, error) {
	name := a.appConfig.Profile.Format
	if name != config.FormatAuto {
		if _, ok := a.formats[name]; !ok {
			return "", errors.Wrapf(profile.ErrUnknownFormat, "format %q", name)
		}
		return name, nil
	}
	f, err := os.Open(logPath)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", logPath)
	}
	defer f.Close()
	name, err = profile.Detect(f, a.formats, 0)
	if err != nil {
		return "", errors.Wrapf(err, "detect format of %s", logPath)
	}
	return name, nil
}

// resolveInterval prefers the configured interval, then the preamble,
// then the median gap between report timestamps.
func resolveInterval(configured int, parsed *profile.Parsed) (time.Duration, string, error) {
	if configured > 0 {
		return time.Duration(configured) * time.Second, "config", nil
	}
	if parsed.Preamble.Interval > 0 {
		return time.Duration(parsed.Preamble.Interval) * time.Second, "preamble", nil
	}
	iv, err := aggregate.InferInterval(parsed.Samples)
	if err != nil {
		return 0, "", errors.Wrap(err, "no --interval given, no preamble and no usable timestamps")
	}
	return iv, "timestamps", nil
}

// clientName names the client entity after the log file.
func clientName(logPath string) string {
	base := filepath.Base(logPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
