package device

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// Port is the minimal serial port surface the Serial device needs.
type Port interface {
	io.ReadWriter
	io.Closer
}

// Opener opens a serial port. Tests replace it with an in-memory pipe.
type Opener func(path string, mode *serial.Mode) (Port, error)

// OpenSerialPort opens a real serial port.
func OpenSerialPort(path string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// PortOptions describes the serial line parameters.
type PortOptions struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// Normalize validates the options and applies defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.ToUpper(strings.TrimSpace(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// Mode converts the options to a go.bug.st/serial mode.
func (o PortOptions) Mode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// Serial is a probe attached over a serial line. The device streams
// position reports and the host writes force and enable commands:
//
//	device -> host: P <x> <y> <z> <buttons>
//	host -> device: F <x> <y> <z>
//	host -> device: E <0|1>
//
// A reader goroutine keeps the latest report so Position never blocks on
// the line.
type Serial struct {
	path       string
	opts       PortOptions
	opener     Opener
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	port    Port
	pos     Vec3f
	buttons uint32
	last    time.Time
	readErr error
	done    chan struct{}

	wmu sync.Mutex
	buf []byte

	malformed atomic.Int64
}

// SerialOption configures a Serial device.
type SerialOption func(*Serial)

// WithOpener replaces the port opener.
func WithOpener(o Opener) SerialOption {
	return func(s *Serial) { s.opener = o }
}

// WithLogger sets the logger for line errors.
func WithLogger(l *slog.Logger) SerialOption {
	return func(s *Serial) { s.logger = l }
}

// WithClock replaces the clock used for staleness checks.
func WithClock(now func() time.Time) SerialOption {
	return func(s *Serial) { s.now = now }
}

// NewSerial creates a closed serial device. staleAfter <= 0 disables the
// staleness check.
func NewSerial(path string, opts PortOptions, staleAfter time.Duration, options ...SerialOption) *Serial {
	s := &Serial{
		path:       path,
		opts:       opts,
		opener:     OpenSerialPort,
		staleAfter: staleAfter,
		logger:     slog.Default(),
		now:        time.Now,
		buf:        make([]byte, 0, 64),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return nil
	}
	mode, err := s.opts.Mode()
	if err != nil {
		return fmt.Errorf("serial %s: %w", s.path, err)
	}
	port, err := s.opener(s.path, mode)
	if err != nil {
		return fmt.Errorf("%w: serial %s: %v", ErrUnavailable, s.path, err)
	}
	s.port = port
	s.last = time.Time{}
	s.readErr = nil
	s.done = make(chan struct{})
	go s.readLoop(port, s.done)
	return nil
}

func (s *Serial) Close() error {
	s.mu.Lock()
	port, done := s.port, s.done
	s.port = nil
	s.mu.Unlock()
	if port == nil {
		return nil
	}
	err := port.Close()
	<-done
	return err
}

func (s *Serial) readLoop(port Port, done chan struct{}) {
	defer close(done)
	sc := bufio.NewScanner(port)
	for sc.Scan() {
		pos, buttons, err := parseReport(sc.Text())
		if err != nil {
			if s.malformed.Add(1) == 1 {
				s.logger.Warn("malformed serial report", "port", s.path, "error", err)
			}
			continue
		}
		s.mu.Lock()
		s.pos = pos
		s.buttons = buttons
		s.last = s.now()
		s.mu.Unlock()
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}

func parseReport(line string) (Vec3f, uint32, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 || fields[0] != "P" {
		return Vec3f{}, 0, fmt.Errorf("unexpected report %q", line)
	}
	var pos Vec3f
	for i := range pos {
		v, err := strconv.ParseFloat(fields[i+1], 32)
		if err != nil {
			return Vec3f{}, 0, fmt.Errorf("parsing axis %d: %w", i, err)
		}
		pos[i] = float32(v)
	}
	buttons, err := strconv.ParseUint(fields[4], 10, 32)
	if err != nil {
		return Vec3f{}, 0, fmt.Errorf("parsing buttons: %w", err)
	}
	return pos, uint32(buttons), nil
}

// report returns the latest position report, or why there is none.
func (s *Serial) report() (Vec3f, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return Vec3f{}, 0, ErrNotOpen
	}
	if s.readErr != nil {
		return Vec3f{}, 0, fmt.Errorf("serial %s: %w", s.path, s.readErr)
	}
	if s.last.IsZero() {
		return Vec3f{}, 0, fmt.Errorf("%w: no report yet", ErrStale)
	}
	if s.staleAfter > 0 {
		if age := s.now().Sub(s.last); age > s.staleAfter {
			return Vec3f{}, 0, fmt.Errorf("%w: last report %s ago", ErrStale, age)
		}
	}
	return s.pos, s.buttons, nil
}

func (s *Serial) Position() (Vec3f, error) {
	pos, _, err := s.report()
	return pos, err
}

func (s *Serial) Button(id int) (bool, error) {
	if err := checkButton(id); err != nil {
		return false, err
	}
	_, buttons, err := s.report()
	if err != nil {
		return false, err
	}
	return buttons&(1<<id) != 0, nil
}

func (s *Serial) SetForce(f Vec3f) error {
	return s.write(func(b []byte) []byte {
		b = append(b, 'F')
		for _, c := range f {
			b = append(b, ' ')
			b = strconv.AppendFloat(b, float64(c), 'f', 5, 32)
		}
		return b
	})
}

func (s *Serial) EnableForce(on bool) error {
	return s.write(func(b []byte) []byte {
		if on {
			return append(b, "E 1"...)
		}
		return append(b, "E 0"...)
	})
}

// write formats one command line into a reused buffer and sends it.
func (s *Serial) write(format func([]byte) []byte) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return ErrNotOpen
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.buf = append(format(s.buf[:0]), '\n')
	if _, err := port.Write(s.buf); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return fmt.Errorf("%w: %v", ErrNotOpen, err)
		}
		return fmt.Errorf("serial %s write: %w", s.path, err)
	}
	return nil
}

// Malformed returns the number of unparseable report lines seen.
func (s *Serial) Malformed() int64 {
	return s.malformed.Load()
}
