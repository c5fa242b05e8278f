package recorder

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/fdm/wgs84"
)

// csvHeader names the columns of the telemetry stream. Angles are in degrees.
var csvHeader = []string{
	"time", "jd", "lat", "lon", "alt",
	"roll", "pitch", "heading",
	"u", "v", "w", "p", "q", "r",
	"rotor_azimuth", "ctrl_roll", "ctrl_pitch", "ctrl_yaw", "collective", "throttle",
}

// Stream writes the frames sent to it as CSV rows, from its own goroutine.
type Stream struct {
	frames chan Frame
	wg     sync.WaitGroup
	err    error
}

// StreamCSV starts streaming frames to w. The buffer is the number of frames which may be
// queued before Send blocks.
func StreamCSV(w io.Writer, buffer int) *Stream {
	s := &Stream{frames: make(chan Frame, buffer)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.err = writeCSV(w, s.frames)
	}()
	return s
}

// Send queues a frame.
func (s *Stream) Send(f Frame) { s.frames <- f }

// Close ends the stream and waits for every queued frame to be written.
func (s *Stream) Close() error {
	close(s.frames)
	s.wg.Wait()
	return s.err
}

func writeCSV(w io.Writer, frames <-chan Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	var err error
	for f := range frames {
		if err != nil {
			// Drain the channel so that the senders never block.
			continue
		}
		var row []string
		if row, err = csvRow(f); err == nil {
			err = cw.Write(row)
		}
	}
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}

func csvRow(f Frame) ([]string, error) {
	if len(f.State) != dynamics.StateSize {
		return nil, fmt.Errorf("%w: state of length %d", ErrFrame, len(f.State))
	}
	x := f.State
	pos := wgs84.NewPositionWGS(x[0:3])
	geo := pos.Geo()
	att := numeric.NewQuaternion(x[3:7])
	φ, θ, ψ := numeric.DCMToEuler(numeric.Mul(numeric.Transpose(att.DCM()), pos.NEDToWGS()))
	var throttle float64
	if len(f.Controls.Engines) > 0 {
		throttle = f.Controls.Engines[0].Throttle
	}
	values := []float64{
		f.Time, f.JD, numeric.Rad2deg(geo.Lat), numeric.Rad2deg(geo.Lon), geo.Alt,
		numeric.Rad2deg(φ), numeric.Rad2deg(θ), numeric.Rad2deg(ψ),
		x[7], x[8], x[9], x[10], x[11], x[12],
		numeric.Rad2deg(f.Azimuth), f.Controls.Roll, f.Controls.Pitch, f.Controls.Yaw,
		f.Controls.Collective, throttle,
	}
	row := make([]string, len(values))
	for i, v := range values {
		switch i {
		case 1:
			row[i] = strconv.FormatFloat(v, 'f', 8, 64)
		default:
			row[i] = strconv.FormatFloat(v, 'f', 6, 64)
		}
	}
	return row, nil
}
