package profile

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

const maxLineSize = 1 << 20

// Preamble is what the sampler writes ahead of the first sample: the
// requested sample count and interval, then the collection start time.
type Preamble struct {
	SampleCount int
	Interval    int
	Start       time.Time
	// Lines is how many leading lines the preamble consumed.
	Lines int
}

// Line is one input line with its 1-based line number.
type Line struct {
	No   int
	Text string
}

// Block is the raw text of one sample.
type Block struct {
	// Number is the 1-based position of the block in the log.
	Number int
	// StartLine is the line number of the sample marker.
	StartLine int
	Header    string
	TimeText  string
	Lines     []Line
	Partial   bool
}

// Index is the 0-based sample position used for timestamps.
func (b Block) Index() int {
	return b.Number - 1
}

type SplitOptions struct {
	KeepPartial bool
	Location    *time.Location
}

// Splitter cuts a profile log into per-sample blocks, one block at a time.
// Reading the same input again yields the same blocks.
type Splitter struct {
	scanner *bufio.Scanner
	shapes  *Shapes
	opts    SplitOptions
	diag    *Diagnostics

	lineNo   int
	pending  *Line
	started  bool
	preamble Preamble

	cur    *Block
	block  Block
	blocks int
	stray  int
	err    error
}

func NewSplitter(r io.Reader, shapes *Shapes, opts SplitOptions, diag *Diagnostics) *Splitter {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Splitter{scanner: sc, shapes: shapes, opts: opts, diag: diag}
}

// Preamble is valid once Scan has been called.
func (s *Splitter) Preamble() Preamble {
	return s.preamble
}

// Block returns the block found by the last successful Scan.
func (s *Splitter) Block() Block {
	return s.block
}

// Count returns how many blocks were produced, partial ones included.
func (s *Splitter) Count() int {
	return s.blocks
}

func (s *Splitter) Err() error {
	return s.err
}

func (s *Splitter) next() (Line, bool) {
	if s.pending != nil {
		l := *s.pending
		s.pending = nil
		return l, true
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			s.err = err
		}
		return Line{}, false
	}
	s.lineNo++
	return Line{No: s.lineNo, Text: strings.TrimRight(s.scanner.Text(), "\r")}, true
}

func (s *Splitter) readPreamble() {
	s.started = true
	first, ok := s.next()
	if !ok {
		return
	}
	count, interval, ok := s.shapes.parsePreamble(first.Text)
	if !ok {
		s.pending = &first
		return
	}
	s.preamble = Preamble{SampleCount: count, Interval: interval, Lines: 1}

	second, ok := s.next()
	if !ok {
		return
	}
	start, err := ParseTimestamp(strings.TrimSpace(second.Text), s.opts.Location)
	if err != nil {
		s.pending = &second
		return
	}
	s.preamble.Start = start
	s.preamble.Lines = 2
}

// Scan advances to the next block. It returns false at the end of input or
// on a read error, which Err reports.
func (s *Splitter) Scan() bool {
	if !s.started {
		s.readPreamble()
	}
	for {
		line, ok := s.next()
		if !ok {
			if s.stray > 0 {
				s.diag.Add(DiagStrayLines, "before first sample", fmt.Sprintf("%d lines", s.stray))
				s.stray = 0
			}
			if s.cur == nil || s.err != nil {
				return false
			}
			blk := *s.cur
			s.cur = nil
			blk.Partial = s.isPartial(blk)
			if blk.Partial && !s.opts.KeepPartial {
				s.diag.Add(DiagPartialBlock, "dropped", fmt.Sprintf("block %d at line %d", blk.Number, blk.StartLine))
				return false
			}
			if blk.Partial {
				s.diag.Add(DiagPartialBlock, "kept", fmt.Sprintf("block %d at line %d", blk.Number, blk.StartLine))
			}
			s.block = blk
			return true
		}

		if isMarker, ts := s.shapes.matchMarker(line.Text); isMarker {
			s.blocks++
			nb := &Block{Number: s.blocks, StartLine: line.No, Header: line.Text, TimeText: ts}
			if s.cur != nil {
				s.block = *s.cur
				s.cur = nb
				return true
			}
			s.cur = nb
			continue
		}

		if s.cur == nil {
			if strings.TrimSpace(line.Text) != "" {
				s.stray++
			}
			continue
		}
		s.cur.Lines = append(s.cur.Lines, line)
	}
}

// isPartial reports whether the trailing block stops before its last
// expected line.
func (s *Splitter) isPartial(b Block) bool {
	if s.shapes.blockEnd == nil {
		return false
	}
	for i := len(b.Lines) - 1; i >= 0; i-- {
		text := b.Lines[i].Text
		if strings.TrimSpace(text) == "" {
			continue
		}
		return !s.shapes.blockEnd.MatchString(text)
	}
	return true
}
