package hardware

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate of the converter bridge
	DefaultBaudRate = 115200
	serialTimeout   = time.Second
)

// SerialADC talks to a microcontroller that owns the converter and the excitation pin.
// One command per line, one reply per command:
//
//	A<ch>  -> <count>   sample channel ch
//	E1     -> OK        excitation on
//	E0     -> OK        excitation off
//
// Any reply starting with ERR is a failure.
type SerialADC struct {
	mutex     sync.Mutex
	rw        io.ReadWriter
	closer    io.Closer
	reader    *bufio.Reader
	fullScale uint32
	vref      float64
}

// OpenSerialADC opens the bridge on port
func OpenSerialADC(port string, baudRate int, fullScale uint32, vref float64) (*SerialADC, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	conn, err := serial.Open(port, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", port)
	}
	if err := conn.SetReadTimeout(serialTimeout); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "serial timeout issue")
	}
	adc := NewSerialADC(conn, fullScale, vref)
	adc.closer = conn
	return adc, nil
}

// NewSerialADC runs the bridge protocol over rw
func NewSerialADC(rw io.ReadWriter, fullScale uint32, vref float64) *SerialADC {
	return &SerialADC{rw: rw, reader: bufio.NewReader(rw), fullScale: fullScale, vref: vref}
}

func (s *SerialADC) command(cmd string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, err := io.WriteString(s.rw, cmd+"\n"); err != nil {
		return "", errors.Wrap(err, "serial write issue")
	}
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "serial read issue")
	}
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "ERR") {
		return "", errors.Errorf("bridge rejected %s: %s", cmd, strings.TrimSpace(strings.TrimPrefix(line, "ERR")))
	}
	return line, nil
}

func (s *SerialADC) expectOK(cmd string) error {
	reply, err := s.command(cmd)
	if err != nil {
		return err
	}
	if reply != "OK" {
		return errors.Errorf("unexpected reply to %s: %q", cmd, reply)
	}
	return nil
}

func (s *SerialADC) High() error { return s.expectOK("E1") }
func (s *SerialADC) Low() error  { return s.expectOK("E0") }

// Sample reads one raw count of channel ch
func (s *SerialADC) Sample(ch int) (uint32, error) {
	reply, err := s.command("A" + strconv.Itoa(ch))
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(reply)
	if err != nil {
		return 0, errors.Wrapf(err, "bad sample %q", reply)
	}
	return clamp(v, s.fullScale), nil
}

// Channel returns converter channel ch as a sensor analog input
func (s *SerialADC) Channel(ch int) *SerialChannel {
	return &SerialChannel{adc: s, ch: ch}
}

func (s *SerialADC) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// SerialChannel is one channel of a SerialADC
type SerialChannel struct {
	adc *SerialADC
	ch  int
}

func (c *SerialChannel) Read() (uint32, error) { return c.adc.Sample(c.ch) }
func (c *SerialChannel) FullScale() uint32     { return c.adc.fullScale }
func (c *SerialChannel) VRef() float64         { return c.adc.vref }
