package profile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/gvprof/gvprof/internal/domain"
	"github.com/pkg/errors"
)

var (
	// ErrNoData means the log held no sample that could be parsed.
	ErrNoData = errors.New("no parsable profile samples")
	// ErrUnknownFormat means the requested format is not configured.
	ErrUnknownFormat = errors.New("unknown profile format")
)

// LineError points at the line that broke the expected report layout.
type LineError struct {
	Block  int
	Line   int
	Text   string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("block %d, line %d: %s: %q", e.Block, e.Line, e.Reason, e.Text)
}

// ParseOptions configures one parse run.
type ParseOptions struct {
	Split SplitOptions
	// ClientName names the single entity of formats without sections.
	ClientName string
}

// Parsed is the outcome of a parse run.
type Parsed struct {
	Format   string
	Preamble Preamble
	Samples  []*domain.Sample
	// Blocks counts every block found, including skipped and dropped ones.
	Blocks  int
	Skipped []*LineError
}

// Parse splits r into blocks and parses every block. Blocks that do not
// match the layout are skipped and listed in Skipped; the run fails only
// when nothing could be parsed.
func Parse(r io.Reader, shapes *Shapes, opts ParseOptions, diag *Diagnostics) (*Parsed, error) {
	sp := NewSplitter(r, shapes, opts.Split, diag)
	out := &Parsed{Format: shapes.Name}
	for sp.Scan() {
		blk := sp.Block()
		sample, err := ParseBlock(blk, shapes, opts, diag)
		if err != nil {
			var le *LineError
			if !errors.As(err, &le) {
				return nil, err
			}
			out.Skipped = append(out.Skipped, le)
			diag.Add(DiagSkippedBlock, fmt.Sprintf("block %d", le.Block), le.Error())
			continue
		}
		out.Samples = append(out.Samples, sample)
	}
	if err := sp.Err(); err != nil {
		return nil, errors.Wrap(err, "read profile log")
	}
	out.Preamble = sp.Preamble()
	out.Blocks = sp.Count()

	if out.Blocks == 0 {
		return nil, errors.Wrapf(ErrNoData, "no line matched the %s sample_marker", shapes.Name)
	}
	if len(out.Samples) == 0 {
		if len(out.Skipped) > 0 {
			return nil, errors.Wrapf(ErrNoData, "all %d samples failed to parse, first: %s", len(out.Skipped), out.Skipped[0])
		}
		return nil, errors.Wrap(ErrNoData, "only an incomplete sample was found")
	}
	return out, nil
}

// ParseBlock turns one block into a Sample. A line inside a statistics
// section that matches none of the shapes yields a *LineError.
func ParseBlock(blk Block, shapes *Shapes, opts ParseOptions, diag *Diagnostics) (*domain.Sample, error) {
	sample := &domain.Sample{Index: blk.Index(), Partial: blk.Partial}
	if blk.TimeText != "" {
		t, err := ParseTimestamp(blk.TimeText, opts.Split.Location)
		if err != nil {
			diag.Add(DiagBadTimestamp, blk.TimeText, fmt.Sprintf("line %d", blk.StartLine))
		} else {
			sample.Time = t
		}
	}

	var cur *domain.EntityStats
	inStats := false
	if !shapes.HasSections() {
		name := opts.ClientName
		if name == "" {
			name = "client"
		}
		cur = domain.NewEntityStats(domain.Entity{Name: name, Kind: domain.KindClient})
		sample.Entities = append(sample.Entities, cur)
		inStats = shapes.statsStart == nil
	}

	records := 0
	for _, line := range blk.Lines {
		text := line.Text
		where := fmt.Sprintf("line %d", line.No)
		fail := func(reason string) error {
			return &LineError{Block: blk.Number, Line: line.No, Text: strings.TrimSpace(text), Reason: reason}
		}

		if e, ok := shapes.matchEntity(text); ok {
			cur = sample.Find(e)
			if cur == nil {
				cur = domain.NewEntityStats(e)
				sample.Entities = append(sample.Entities, cur)
			}
			inStats = shapes.statsStart == nil
			continue
		}
		if matches(shapes.statsStart, text) {
			if cur == nil {
				return nil, fail("statistics before any entity section")
			}
			inStats = true
			continue
		}
		if matches(shapes.statsEnd, text) {
			inStats = false
			continue
		}
		if !inStats {
			continue
		}

		if v, good, ok := parseValue(shapes.duration, text); ok {
			if !good {
				diag.Add(DiagBadNumber, "duration", where)
			}
			cur.Duration = int(v)
			continue
		}
		if v, good, ok := parseValue(shapes.bytesRead, text); ok {
			if !good {
				diag.Add(DiagBadNumber, "bytes_read", where)
			}
			cur.BytesRead, cur.HasBytes = v, true
			continue
		}
		if v, good, ok := parseValue(shapes.bytesWritten, text); ok {
			if !good {
				diag.Add(DiagBadNumber, "bytes_written", where)
			}
			cur.BytesWritten, cur.HasBytes = v, true
			continue
		}
		if rec, bad, ok := shapes.parseOpLine(text); ok {
			for _, field := range bad {
				diag.Add(DiagBadNumber, field, where)
			}
			if rec.Op == domain.OpUnknown {
				diag.Add(DiagUnknownOp, strings.Join(rec.RawNames, ","), where)
			}
			for _, p := range rec.Check() {
				diag.Add(DiagInvariant, p, fmt.Sprintf("%s %s %s", cur.Entity, rec.Op, where))
			}
			if cur.Add(rec) && rec.Op != domain.OpUnknown {
				diag.Add(DiagDuplicateOp, cur.Entity.String()+"/"+rec.Op.String(), where)
			}
			records++
			continue
		}
		if shapes.isIgnorable(text) || matches(shapes.blockEnd, text) {
			continue
		}
		return nil, fail("unrecognised line in statistics section")
	}

	if records == 0 && !anyBytes(sample) {
		return nil, &LineError{Block: blk.Number, Line: blk.StartLine, Text: strings.TrimSpace(blk.Header), Reason: "sample holds no statistics"}
	}
	return sample, nil
}

func anyBytes(s *domain.Sample) bool {
	for _, es := range s.Entities {
		if es.HasBytes {
			return true
		}
	}
	return false
}

// CheckDurations warns about samples whose reported duration is more than
// a second away from the sampling interval.
func CheckDurations(samples []*domain.Sample, interval time.Duration, diag *Diagnostics) {
	want := interval.Seconds()
	for _, s := range samples {
		for _, es := range s.Entities {
			if es.Duration == 0 {
				continue
			}
			if math.Abs(float64(es.Duration)-want) > 1 {
				diag.Add(DiagDuration, es.Entity.String(),
					fmt.Sprintf("sample %d reported %ds, expected %.0fs", s.Index, es.Duration, want))
			}
		}
	}
}

// Detect picks the format whose entity marker appears in r, falling back
// to a format without sections whose sample marker matches. It reads at
// most limit lines; limit <= 0 reads everything.
func Detect(r io.Reader, formats map[string]*Shapes, limit int) (string, error) {
	var sectioned, flat []*Shapes
	for _, name := range sortedNames(formats) {
		if formats[name].HasSections() {
			sectioned = append(sectioned, formats[name])
		} else {
			flat = append(flat, formats[name])
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	fallback := ""
	content := false
	for n := 0; (limit <= 0 || n < limit) && sc.Scan(); n++ {
		text := sc.Text()
		if strings.TrimSpace(text) != "" {
			content = true
		}
		for _, s := range sectioned {
			if _, ok := s.matchEntity(text); ok {
				return s.Name, nil
			}
		}
		if fallback == "" {
			for _, s := range flat {
				if ok, _ := s.matchMarker(text); ok {
					fallback = s.Name
					break
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", errors.Wrap(err, "read profile log")
	}
	if fallback != "" {
		return fallback, nil
	}
	if !content {
		return "", errors.Wrap(ErrNoData, "log is empty")
	}
	return "", errors.Wrap(ErrUnknownFormat, "no known section or sample marker found")
}

func sortedNames(formats map[string]*Shapes) []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
