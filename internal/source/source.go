// Package source reads digitizer reports from a serial port, a file or
// stdin.
//
// Reports are newline-delimited text:
//
//	# comment
//	1024.5 768 1     position, in range
//	1024.5 768 0     position, pen lifted out of range
//	1024.5 768       position, in range implied
//	aux buttons 01ff auxiliary report with hex payload
package source

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/thesyncim/arf/internal/config"
	"github.com/thesyncim/arf/pkg/arf"
)

// ErrMalformed wraps every line-level decoding error.
var ErrMalformed = errors.New("malformed report")

// Decoder reads reports from a text stream.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{scanner: bufio.NewScanner(r)}
}

// Next returns the next report. It returns io.EOF at the end of input.
// A malformed line returns an error wrapping ErrMalformed; decoding can
// continue with the following line.
func (d *Decoder) Next() (arf.Report, error) {
	for d.scanner.Scan() {
		d.line++
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		r, err := ParseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", d.line, err)
		}
		return r, nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// ParseLine decodes a single report line.
func ParseLine(text string) (arf.Report, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	if fields[0] == "aux" {
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("%w: aux needs a kind and an optional payload", ErrMalformed)
		}
		r := arf.AuxReport{Kind: fields[1]}
		if len(fields) == 3 {
			payload, err := hex.DecodeString(fields[2])
			if err != nil {
				return nil, fmt.Errorf("%w: aux payload: %v", ErrMalformed, err)
			}
			r.Payload = payload
		}
		return r, nil
	}

	if len(fields) < 2 || len(fields) > 3 {
		return nil, fmt.Errorf("%w: expected \"x y [inrange]\", got %d fields", ErrMalformed, len(fields))
	}
	x, err := parseCoordinate(fields[0])
	if err != nil {
		return nil, err
	}
	y, err := parseCoordinate(fields[1])
	if err != nil {
		return nil, err
	}
	inRange := true
	if len(fields) == 3 {
		switch fields[2] {
		case "1":
		case "0":
			inRange = false
		default:
			return nil, fmt.Errorf("%w: in-range flag must be 0 or 1, got %q", ErrMalformed, fields[2])
		}
	}
	return arf.PositionReport{Position: arf.Vec2{X: x, Y: y}, InRange: inRange}, nil
}

func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite coordinate %q", ErrMalformed, s)
	}
	return v, nil
}

// Open opens the input named by cfg.
func Open(cfg config.SourceConfig) (io.ReadCloser, error) {
	switch cfg.Kind {
	case "stdin", "":
		return io.NopCloser(os.Stdin), nil
	case "file":
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open source file: %w", err)
		}
		return f, nil
	case "serial":
		return OpenSerial(cfg.Port, PortOptions{
			BaudRate: cfg.BaudRate,
			DataBits: cfg.DataBits,
			StopBits: cfg.StopBits,
			Parity:   cfg.Parity,
		})
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// SubmitFunc delivers one report, blocking until it is accepted.
type SubmitFunc func(ctx context.Context, r arf.Report) error

// Pump decodes reports from r and submits them until EOF, a read error, a
// submit error or ctx is done. Malformed lines are logged and skipped.
// It returns the number of reports submitted.
func Pump(ctx context.Context, r io.Reader, submit SubmitFunc, logger *zap.Logger) (int, error) {
	dec := NewDecoder(r)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		report, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if errors.Is(err, ErrMalformed) {
			logger.Warn("skipping report", zap.Error(err))
			continue
		}
		if err != nil {
			return n, fmt.Errorf("read reports: %w", err)
		}
		if err := submit(ctx, report); err != nil {
			return n, err
		}
		n++
	}
}
