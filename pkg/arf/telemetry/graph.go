// Package telemetry streams filter kinematics in the line-oriented graph
// protocol understood by external plotting tools.
//
// Each filtered report produces one frame:
//
//	v12.5
//	a-0.75
//	j0.25
//	s1
//	x
//
// The numbers after v, a, j and s are appended to their series and x marks
// the end of the frame. Output ticks write d when they emit a position and
// i otherwise, and t asks the plotter to redraw without new data.
package telemetry

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/thesyncim/arf/pkg/arf"
)

var bufferPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(b *bytes.Buffer) {
	b.Reset()
	bufferPool.Put(b)
}

// GraphWriter writes graph protocol frames to an io.Writer. It is safe for
// concurrent use; each frame is written with a single Write call.
type GraphWriter struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

// NewGraphWriter creates a GraphWriter writing to w.
func NewGraphWriter(w io.Writer) *GraphWriter {
	return &GraphWriter{w: w}
}

// Observe writes the kinematics of one filter cycle. Its signature matches
// arf.DiagnosticsFunc.
func (g *GraphWriter) Observe(d *arf.Diagnostics) {
	g.WriteKinematics(d.Kinematics)
}

// WriteKinematics writes one v/a/j/s frame.
func (g *GraphWriter) WriteKinematics(k arf.KinematicState) {
	buf := getBuffer()
	defer putBuffer(buf)

	writeSeries(buf, 'v', k.Velocity)
	writeSeries(buf, 'a', k.Acceleration)
	writeSeries(buf, 'j', k.Jerk)
	writeSeries(buf, 's', k.Snap)
	buf.WriteString("x\n")
	g.write(buf.Bytes())
}

// Render writes the marker for one output tick: d when the tick emitted a
// position, i when the pen was out of range or idle.
func (g *GraphWriter) Render(emitted bool) {
	if emitted {
		g.write([]byte("d\n"))
	} else {
		g.write([]byte("i\n"))
	}
}

// Stress writes a redraw request without data.
func (g *GraphWriter) Stress() {
	g.write([]byte("t\n"))
}

// Err returns the first write error. Later writes are skipped once an
// error has occurred.
func (g *GraphWriter) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

func (g *GraphWriter) write(p []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return
	}
	if _, err := g.w.Write(p); err != nil {
		g.err = err
	}
}

func writeSeries(buf *bytes.Buffer, tag byte, v float64) {
	buf.WriteByte(tag)
	buf.Write(strconv.AppendFloat(buf.AvailableBuffer(), v, 'g', -1, 64))
	buf.WriteByte('\n')
}

// Frame is one parsed kinematics frame.
type Frame struct {
	Velocity, Acceleration, Jerk, Snap float64
}

// Series is the parsed content of a graph stream.
type Series struct {
	Frames []Frame
	// Draws counts d markers, Idles counts i markers, Stress counts t.
	Draws, Idles, Stress int
}

// ReadGraph parses a graph stream. Values outside a completed frame are
// discarded.
func ReadGraph(r io.Reader) (*Series, error) {
	s := &Series{}
	var cur Frame
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		switch text[0] {
		case 'x':
			s.Frames = append(s.Frames, cur)
			cur = Frame{}
			continue
		case 'd':
			s.Draws++
			continue
		case 'i':
			s.Idles++
			continue
		case 't':
			s.Stress++
			continue
		}

		v, err := strconv.ParseFloat(text[1:], 64)
		if err != nil {
			return s, fmt.Errorf("line %d: %w", line, err)
		}
		switch text[0] {
		case 'v':
			cur.Velocity = v
		case 'a':
			cur.Acceleration = v
		case 'j':
			cur.Jerk = v
		case 's':
			cur.Snap = v
		default:
			return s, fmt.Errorf("line %d: unknown tag %q", line, text[0])
		}
	}
	return s, scanner.Err()
}
