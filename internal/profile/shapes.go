package profile

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gvprof/gvprof/config"
	"github.com/gvprof/gvprof/internal/domain"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Shapes is the compiled form of config.LineShapes. Every recognised line
// goes through exactly one of its match/parse methods.
type Shapes struct {
	Name string

	preamble     *regexp.Regexp
	marker       *regexp.Regexp
	blockEnd     *regexp.Regexp
	entity       *regexp.Regexp
	rollup       *regexp.Regexp
	statsStart   *regexp.Regexp
	statsEnd     *regexp.Regexp
	opLine       *regexp.Regexp
	duration     *regexp.Regexp
	bytesRead    *regexp.Regexp
	bytesWritten *regexp.Regexp
	ignore       []*regexp.Regexp
}

func Compile(name string, ls config.LineShapes) (*Shapes, error) {
	if err := ls.Validate(); err != nil {
		return nil, errors.Wrapf(err, "format %s", name)
	}
	s := &Shapes{Name: name}
	s.preamble = compileOpt(ls.Preamble)
	s.marker = compileOpt(ls.SampleMarker)
	s.blockEnd = compileOpt(ls.BlockEnd)
	s.entity = compileOpt(ls.EntityMarker)
	s.rollup = compileOpt(ls.RollupMarker)
	s.statsStart = compileOpt(ls.StatsStart)
	s.statsEnd = compileOpt(ls.StatsEnd)
	s.opLine = compileOpt(ls.OpLine)
	s.duration = compileOpt(ls.Duration)
	s.bytesRead = compileOpt(ls.BytesRead)
	s.bytesWritten = compileOpt(ls.BytesWritten)
	for _, p := range ls.Ignore {
		s.ignore = append(s.ignore, regexp.MustCompile(p))
	}
	return s, nil
}

// CompileAll compiles every configured format.
func CompileAll(formats map[string]config.LineShapes) (map[string]*Shapes, error) {
	out := make(map[string]*Shapes, len(formats))
	for name, ls := range formats {
		s, err := Compile(name, ls)
		if err != nil {
			return nil, err
		}
		out[name] = s
	}
	return out, nil
}

// compileOpt compiles a pattern already checked by Validate; "" yields nil.
func compileOpt(p string) *regexp.Regexp {
	if p == "" {
		return nil
	}
	return regexp.MustCompile(p)
}

// HasSections reports whether blocks are split into per-entity sections.
func (s *Shapes) HasSections() bool {
	return s.entity != nil || s.rollup != nil
}

func groups(re *regexp.Regexp, line string) map[string]interface{} {
	if re == nil {
		return nil
	}
	m := re.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = m[i]
	}
	return out
}

func matches(re *regexp.Regexp, line string) bool {
	return re != nil && re.MatchString(line)
}

// parsePreamble reads the "<sample count> <interval>" record.
func (s *Shapes) parsePreamble(line string) (count, interval int, ok bool) {
	g := groups(s.preamble, line)
	if g == nil {
		return 0, 0, false
	}
	c, okCount := toNumber(cast.ToString(g["count"]))
	i, okInterval := toNumber(cast.ToString(g["interval"]))
	count, interval = int(c), int(i)
	return count, interval, okCount && okInterval && interval > 0
}

// matchMarker reports whether line opens a new sample, and the timestamp
// text it carries, if any.
func (s *Shapes) matchMarker(line string) (bool, string) {
	if s.marker == nil {
		return false, ""
	}
	g := groups(s.marker, line)
	if g == nil {
		return false, ""
	}
	return true, strings.TrimSpace(cast.ToString(g["time"]))
}

// matchEntity reports whether line opens a brick or volume section.
func (s *Shapes) matchEntity(line string) (domain.Entity, bool) {
	if g := groups(s.rollup, line); g != nil {
		return domain.Entity{Name: cast.ToString(g["name"]), Kind: domain.KindVolume}, true
	}
	if g := groups(s.entity, line); g != nil {
		return domain.Entity{Name: cast.ToString(g["name"]), Kind: domain.KindBrick}, true
	}
	return domain.Entity{}, false
}

// opFields are the raw captures of an op line.
type opFields struct {
	Op    string `mapstructure:"op"`
	Calls string `mapstructure:"calls"`
	Avg   string `mapstructure:"avg"`
	Min   string `mapstructure:"min"`
	Max   string `mapstructure:"max"`
	Pct   string `mapstructure:"pct"`
}

// parseOpLine decodes one per-FOP statistics line. Fields that are not
// numbers, or are negative, come back as zero and are listed in bad.
func (s *Shapes) parseOpLine(line string) (rec domain.OperationRecord, bad []string, ok bool) {
	g := groups(s.opLine, line)
	if g == nil {
		return rec, nil, false
	}
	var f opFields
	if err := mapstructure.Decode(g, &f); err != nil {
		return rec, nil, false
	}

	op, known := domain.ParseOpType(f.Op)
	rec.Op = op
	if !known {
		rec.RawNames = []string{f.Op}
	}

	calls, okCalls := toCount(f.Calls)
	if !okCalls {
		bad = append(bad, "calls")
	}
	rec.Calls = int64(math.Round(calls))

	latencies := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"avg", f.Avg, &rec.AvgLat},
		{"min", f.Min, &rec.MinLat},
		{"max", f.Max, &rec.MaxLat},
	}
	for _, l := range latencies {
		v, good := toCount(l.raw)
		if !good {
			bad = append(bad, l.name)
		}
		*l.dst = v
	}
	rec.Flagged = len(bad) > 0
	return rec, bad, true
}

// parseValue extracts the "value" group of a single-value line such as a
// duration or byte count.
func parseValue(re *regexp.Regexp, line string) (int64, bool, bool) {
	g := groups(re, line)
	if g == nil {
		return 0, false, false
	}
	v, good := toNumber(cast.ToString(g["value"]))
	return int64(math.Round(v)), good, true
}

func (s *Shapes) isIgnorable(line string) bool {
	for _, re := range s.ignore {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// toNumber converts a captured field, yielding 0 and false on garbage.
func toNumber(raw string) (float64, bool) {
	v, err := cast.ToFloat64E(strings.TrimSpace(raw))
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// toCount is toNumber for fields that cannot go below zero.
func toCount(raw string) (float64, bool) {
	v, ok := toNumber(raw)
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseTimestamp reads the timestamp formats `date` prints.
func ParseTimestamp(text string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := dateparse.ParseIn(text, loc)
	if err == nil {
		return t, nil
	}
	if t2, err2 := time.ParseInLocation(time.UnixDate, text, loc); err2 == nil {
		return t2, nil
	}
	return time.Time{}, errors.Wrapf(err, "timestamp %q", text)
}
