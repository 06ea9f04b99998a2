package config

import (
	"regexp"

	"github.com/pkg/errors"
)

// LineShapes holds the regular expressions describing one version of the
// profile report layout. Named groups carry the values:
//
//	preamble       count, interval
//	sample_marker  time (optional)
//	entity_marker  name
//	rollup_marker  name
//	op_line        op, calls, avg, min, max
//	duration       value
//	bytes_read     value
//	bytes_written  value
type LineShapes struct {
	Preamble     string   `yaml:"preamble"`
	SampleMarker string   `yaml:"sample_marker"`
	BlockEnd     string   `yaml:"block_end"`
	EntityMarker string   `yaml:"entity_marker"`
	RollupMarker string   `yaml:"rollup_marker"`
	StatsStart   string   `yaml:"stats_start"`
	StatsEnd     string   `yaml:"stats_end"`
	OpLine       string   `yaml:"op_line"`
	Duration     string   `yaml:"duration"`
	BytesRead    string   `yaml:"bytes_read"`
	BytesWritten string   `yaml:"bytes_written"`
	Ignore       []string `yaml:"ignore"`
}

const (
	preambleShape = `^\s*(?P<count>\d+)\s+(?P<interval>\d+)\s*$`
	dateLineShape = `^(?P<time>(?:Mon|Tue|Wed|Thu|Fri|Sat|Sun)\s+[A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s+\S+\s+\d{4})\s*$`
	blankShape    = `^\s*$`
	dashesShape   = `^[\s-]+$`
)

// BuiltinFormats returns the layouts of `gluster volume profile info`
// (server) and the client io-stats dump (client).
func BuiltinFormats() map[string]LineShapes {
	return map[string]LineShapes{
		FormatServer: {
			Preamble:     preambleShape,
			SampleMarker: dateLineShape,
			BlockEnd:     `^\s*Data Written\s*:`,
			EntityMarker: `^\s*Brick:\s*(?P<name>\S+)\s*$`,
			RollupMarker: `^\s*Volume(?: Name)?:\s*(?P<name>\S+)\s*$`,
			StatsStart:   `^\s*Interval\s+\d+\s+Stats:?\s*$`,
			StatsEnd:     `^\s*Cumulative\s+Stats:?\s*$`,
			OpLine:       `^\s*(?P<pct>\S+)\s+(?P<avg>\S+)\s*us\s+(?P<min>\S+)\s*us\s+(?P<max>\S+)\s*us\s+(?P<calls>\S+)\s+(?P<op>[A-Za-z_]+)\s*$`,
			Duration:     `^\s*Duration\s*:\s*(?P<value>\S+)\s*(?:seconds|secs?)?\s*$`,
			BytesRead:    `^\s*Data Read\s*:\s*(?P<value>\S+)\s*(?:bytes)?\s*$`,
			BytesWritten: `^\s*Data Written\s*:\s*(?P<value>\S+)\s*(?:bytes)?\s*$`,
			Ignore: []string{
				blankShape,
				dashesShape,
				`(?i)^\s*%-latency\b`,
				`(?i)^\s*(?:block size|no\. of reads|no\. of writes)\s*:`,
			},
		},
		FormatClient: {
			Preamble:     preambleShape,
			SampleMarker: `(?i)^\s*=+\s*Interval\s+(?P<index>\d+)\s+stats\s*=+\s*$`,
			BlockEnd:     `(?i)^\s*Current open fd`,
			StatsEnd:     `(?i)^\s*=+\s*Cumulative\s+stats\s*=+\s*$`,
			OpLine:       `^\s*(?P<op>[A-Za-z_]+)\s+(?P<calls>\S+)\s+(?P<avg>\S+)\s*us\s+(?P<min>\S+)\s*us\s+(?P<max>\S+)\s*us\s*$`,
			Duration:     `(?i)^\s*Duration\s*:\s*(?P<value>\S+)\s*(?:seconds|secs?)?\s*$`,
			BytesRead:    `(?i)^\s*BytesRead\s*:\s*(?P<value>\S+)\s*$`,
			BytesWritten: `(?i)^\s*BytesWritten\s*:\s*(?P<value>\S+)\s*$`,
			Ignore: []string{
				blankShape,
				dashesShape,
				`(?i)^\s*fop\s+call\s+count`,
				`(?i)^\s*(?:block size|read count|write count)\s*:`,
			},
		},
	}
}

// Merge returns s with every non-empty field of override applied on top.
func (s LineShapes) Merge(override LineShapes) LineShapes {
	pick := func(base, o string) string {
		if o != "" {
			return o
		}
		return base
	}
	s.Preamble = pick(s.Preamble, override.Preamble)
	s.SampleMarker = pick(s.SampleMarker, override.SampleMarker)
	s.BlockEnd = pick(s.BlockEnd, override.BlockEnd)
	s.EntityMarker = pick(s.EntityMarker, override.EntityMarker)
	s.RollupMarker = pick(s.RollupMarker, override.RollupMarker)
	s.StatsStart = pick(s.StatsStart, override.StatsStart)
	s.StatsEnd = pick(s.StatsEnd, override.StatsEnd)
	s.OpLine = pick(s.OpLine, override.OpLine)
	s.Duration = pick(s.Duration, override.Duration)
	s.BytesRead = pick(s.BytesRead, override.BytesRead)
	s.BytesWritten = pick(s.BytesWritten, override.BytesWritten)
	if len(override.Ignore) > 0 {
		s.Ignore = append([]string(nil), override.Ignore...)
	}
	return s
}

// Validate checks that every pattern compiles and that the op line
// exposes the groups the parser reads.
func (s LineShapes) Validate() error {
	if s.SampleMarker == "" {
		return errors.New("sample_marker is required")
	}
	if s.OpLine == "" {
		return errors.New("op_line is required")
	}
	patterns := map[string]string{
		"preamble":      s.Preamble,
		"sample_marker": s.SampleMarker,
		"block_end":     s.BlockEnd,
		"entity_marker": s.EntityMarker,
		"rollup_marker": s.RollupMarker,
		"stats_start":   s.StatsStart,
		"stats_end":     s.StatsEnd,
		"op_line":       s.OpLine,
		"duration":      s.Duration,
		"bytes_read":    s.BytesRead,
		"bytes_written": s.BytesWritten,
	}
	for name, p := range patterns {
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return errors.Wrapf(err, "%s", name)
		}
	}
	for i, p := range s.Ignore {
		if _, err := regexp.Compile(p); err != nil {
			return errors.Wrapf(err, "ignore[%d]", i)
		}
	}

	op := regexp.MustCompile(s.OpLine)
	for _, group := range []string{"op", "calls", "avg", "min", "max"} {
		if op.SubexpIndex(group) < 0 {
			return errors.Errorf("op_line lacks named group %q", group)
		}
	}
	return nil
}
