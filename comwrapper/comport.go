// Serial-port links for UART-attached BLE bridges, which pass protocol
// frames through unchanged in both directions.

package comwrapper

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// DefaultMTU matches the GATT MTU of the bridge firmware.
const DefaultMTU = 185

// Port is the serial connection the link runs over.
// Represents a simple 2-way wire; *serial.Port implements it.
type Port interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	Flush() error
}

// Receiver takes what the link reads off the wire. *protocol.Dispatcher implements it.
type Receiver interface {
	HandleNotification(b []byte)
	HandleDisconnect(err error)
}

type Config struct {
	Name          string
	Baud          int
	ReadTimeout   time.Duration
	MTU           int
	RetryInterval time.Duration
}

// SerialLink carries frames over a Port.
type SerialLink struct {
	port Port
	mtu  int
	log  logrus.FieldLogger

	txLock    sync.Mutex
	session   sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

func NewSerialLink(port Port, mtu int, log logrus.FieldLogger) *SerialLink {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SerialLink{port: port, mtu: mtu, log: log, closed: make(chan struct{})}
}

// Open opens the COM port, retrying every cfg.RetryInterval until it succeeds or
// ctx is done.
func Open(ctx context.Context, cfg Config, log logrus.FieldLogger) (*SerialLink, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("port", cfg.Name)
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = 5 * time.Second
	}
	sc := &serial.Config{Name: cfg.Name, Baud: cfg.Baud, ReadTimeout: cfg.ReadTimeout}
	firstTryDone := false
	for {
		p, err := serial.OpenPort(sc)
		if err == nil {
			log.Info("COM port opened")
			return NewSerialLink(p, cfg.MTU, log), nil
		}
		if !firstTryDone {
			log.WithError(err).Warnf("Error opening COM port, retrying every %v", retry)
			firstTryDone = true
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "open %s", cfg.Name)
		case <-time.After(retry):
		}
	}
}

// Attach starts delivering received bytes to rx. A read error ends the session and
// is reported through rx.HandleDisconnect.
func (l *SerialLink) Attach(rx Receiver) {
	l.session.Add(1)
	go l.rxSerial(rx)
}

// Receive from serial wire and hand over to the receiver.
func (l *SerialLink) rxSerial(rx Receiver) {
	defer l.session.Done()
	buf := make([]byte, 512)
	l.port.Flush()
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			l.log.WithField("n", n).Debug("serial RX")
			rx.HandleNotification(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			select {
			case <-l.closed:
				return
			default:
			}
			if err != io.EOF {
				l.log.WithError(err).Error("Error receiving on COM")
			}
			rx.HandleDisconnect(errors.Wrap(err, "serial read"))
			return
		}
	}
}

// WriteFrame writes one complete frame.
func (l *SerialLink) WriteFrame(frame []byte) error {
	l.txLock.Lock()
	defer l.txLock.Unlock()
	select {
	case <-l.closed:
		return errors.New("serial link closed")
	default:
	}
	n, err := l.port.Write(frame)
	if err != nil {
		return errors.Wrap(err, "serial write")
	}
	if n != len(frame) {
		return errors.Errorf("TX mismatch: want to send %d bytes, sent %d", len(frame), n)
	}
	return nil
}

func (l *SerialLink) MTU() int {
	return l.mtu
}

// Close closes the port and waits for the receive loop to stop.
func (l *SerialLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.port.Close()
		l.session.Wait()
	})
	return err
}
