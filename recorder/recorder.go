// Package recorder records and replays simulation frames. A recording is a zstd compressed
// stream of msgpack encoded frames.
package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/klauspost/compress/zstd"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrReadOnly is returned when recording to a file opened for replay.
	ErrReadOnly = errors.New("recording is read only")
	// ErrWriteOnly is returned when replaying from a file created for recording.
	ErrWriteOnly = errors.New("recording is write only")
	// ErrFrame is returned for frames which cannot be replayed.
	ErrFrame = errors.New("malformed frame")
)

// Frame is the snapshot of one simulation step.
type Frame struct {
	JD       float64           `msgpack:"jd"` // Julian date of the simulated instant
	Time     float64           `msgpack:"t"`  // s since the start of the simulation
	State    []float64         `msgpack:"x"`  // position, attitude, velocity, angular velocity
	Azimuth  float64           `msgpack:"az"` // main rotor azimuth, rad
	Controls dynamics.Controls `msgpack:"c"`
}

// NewFrame returns the frame of the simulated instant epoch, t seconds into the
// simulation.
func NewFrame(epoch time.Time, t float64, s *dynamics.State, azimuth float64, c dynamics.Controls) Frame {
	c.Engines = append([]dynamics.EngineControls(nil), c.Engines...)
	return Frame{
		JD:       julian.TimeToJD(epoch),
		Time:     t,
		State:    s.Vector(),
		Azimuth:  azimuth,
		Controls: c,
	}
}

// Epoch returns the simulated instant of the frame.
func (f Frame) Epoch() time.Time {
	return julian.JDToTime(f.JD)
}

// Apply sets the integrated part of s to the state of the frame.
func (f Frame) Apply(s *dynamics.State) error {
	if len(f.State) != dynamics.StateSize {
		return fmt.Errorf("%w: state of length %d", ErrFrame, len(f.State))
	}
	s.SetVector(f.State)
	return nil
}

// File is a recording, either created for recording or opened for replay.
type File struct {
	f   *os.File
	zw  *zstd.Encoder
	zr  *zstd.Decoder
	enc *msgpack.Encoder
	dec *msgpack.Decoder
	n   int
}

// Create creates the recording at path, truncating any existing file.
func Create(path string) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	return &File{f: f, zw: zw, enc: msgpack.NewEncoder(zw)}, nil
}

// Open opens the recording at path for replay.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(0))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	return &File{f: f, zr: zr, dec: msgpack.NewDecoder(zr)}, nil
}

// Name returns the path of the recording.
func (r *File) Name() string { return r.f.Name() }

// Frames returns the number of frames recorded or replayed so far.
func (r *File) Frames() int { return r.n }

// Record appends a frame.
func (r *File) Record(f Frame) error {
	if r.enc == nil {
		return ErrReadOnly
	}
	if err := r.enc.Encode(&f); err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", r.n, err)
	}
	r.n++
	return nil
}

// Replay returns the next frame, or io.EOF at the end of the recording.
func (r *File) Replay() (Frame, error) {
	var f Frame
	if r.dec == nil {
		return f, ErrWriteOnly
	}
	if err := r.dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return f, io.EOF
		}
		return f, fmt.Errorf("failed to decode frame %d: %w", r.n, err)
	}
	if len(f.State) != dynamics.StateSize {
		return f, fmt.Errorf("%w: frame %d: state of length %d", ErrFrame, r.n, len(f.State))
	}
	r.n++
	return f, nil
}

// Close flushes and closes the recording.
func (r *File) Close() error {
	if r.zw != nil {
		if err := r.zw.Close(); err != nil {
			r.f.Close()
			return fmt.Errorf("failed to close zstd writer: %w", err)
		}
	}
	if r.zr != nil {
		r.zr.Close()
	}
	return r.f.Close()
}
