// Package blelink carries protocol frames over the ActiveLook GATT service.
//
// Command frames are written to the Rx characteristic and response frames arrive as
// Tx notifications, possibly split over several of them. The flow control, battery
// and sensor characteristics are decoded into events and handed over separately, so
// they never land inside a partially received response.
package blelink

import (
	"context"
	"sync"
	"time"

	"github.com/RoanBrand/ActiveLookProtocol/protocol"
	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ServiceUUID     = ble.MustParse("0783b03e-8535-b5a0-7140-a304d2495cb7")
	TxUUID          = ble.MustParse("0783b03e-8535-b5a0-7140-a304d2495cb8")
	FlowControlUUID = ble.MustParse("0783b03e-8535-b5a0-7140-a304d2495cb9")
	RxUUID          = ble.MustParse("0783b03e-8535-b5a0-7140-a304d2495cba")
	GestureUUID     = ble.MustParse("0783b03e-8535-b5a0-7140-a304d2495cbb")
	TouchUUID       = ble.MustParse("0783b03e-8535-b5a0-7140-a304d2495cbc")

	BatteryServiceUUID = ble.UUID16(0x180F)
	BatteryLevelUUID   = ble.UUID16(0x2A19)
)

const (
	attHeaderSize = 3
	defaultMTU    = 23
)

var ErrNoCommandService = errors.New("ActiveLook command service not found")

// Client is the part of ble.Client the link uses.
type Client interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	ExchangeMTU(rxMTU int) (txMTU int, err error)
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	ClearSubscriptions() error
	CancelConnection() error
	Disconnected() <-chan struct{}
}

// Receiver takes frame bytes, characteristic events and link loss.
// *protocol.Dispatcher implements it.
type Receiver interface {
	HandleNotification(b []byte)
	HandleEvent(e protocol.Event)
	HandleDisconnect(err error)
}

type Config struct {
	Address        string
	ConnectTimeout time.Duration
	// MTU is the ATT MTU requested from the glasses. 0 keeps the default of 23.
	MTU int
	// WriteWithoutResponse relies on flow control notifications instead of ATT acks.
	WriteWithoutResponse bool
}

// Link is a protocol.Link over one GATT connection.
type Link struct {
	cln  Client
	cfg  Config
	log  logrus.FieldLogger
	mtu  int
	rx   *ble.Characteristic
	prof *ble.Profile

	txLock    sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the glasses at cfg.Address using the default BLE device, which
// the caller must have set with ble.SetDefaultDevice.
func Dial(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Link, error) {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	cln, err := ble.Dial(ctx, ble.NewAddr(cfg.Address))
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", cfg.Address)
	}
	l, err := New(cln, cfg, log)
	if err != nil {
		cln.CancelConnection()
		return nil, err
	}
	return l, nil
}

// New sets up a link on an established connection: MTU exchange and discovery.
func New(cln Client, cfg Config, log logrus.FieldLogger) (*Link, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("glasses", cfg.Address)
	l := &Link{cln: cln, cfg: cfg, log: log, mtu: defaultMTU, closed: make(chan struct{})}

	if cfg.MTU > defaultMTU {
		mtu, err := cln.ExchangeMTU(cfg.MTU)
		if err != nil {
			log.WithError(err).Warn("MTU exchange failed, using default")
		} else if mtu >= defaultMTU {
			l.mtu = mtu
		}
	}

	p, err := cln.DiscoverProfile(true)
	if err != nil {
		return nil, errors.Wrap(err, "discover profile")
	}
	l.prof = p
	if l.rx = l.find(RxUUID); l.rx == nil || l.find(TxUUID) == nil {
		return nil, ErrNoCommandService
	}
	log.WithField("mtu", l.mtu).Info("Connected to glasses")
	return l, nil
}

func (l *Link) find(u ble.UUID) *ble.Characteristic {
	return l.prof.FindCharacteristic(ble.NewCharacteristic(u))
}

// Attach subscribes to every notifying characteristic the glasses expose and starts
// watching for disconnection. Tx and flow control are required, the rest are optional.
func (l *Link) Attach(rx Receiver) error {
	subs := []struct {
		uuid     ble.UUID
		required bool
		h        ble.NotificationHandler
	}{
		{TxUUID, true, func(b []byte) {
			rx.HandleNotification(append([]byte(nil), b...))
		}},
		{FlowControlUUID, true, func(b []byte) {
			if len(b) > 0 {
				rx.HandleEvent(protocol.FlowControlEvent{Status: protocol.FlowControlStatus(b[0])})
			}
		}},
		{BatteryLevelUUID, false, func(b []byte) {
			if len(b) > 0 {
				rx.HandleEvent(protocol.BatteryEvent{Level: b[0]})
			}
		}},
		{GestureUUID, false, func(b []byte) {
			rx.HandleEvent(protocol.SensorEvent{Type: protocol.SensorGesture, Value: sensorValue(b)})
		}},
		{TouchUUID, false, func(b []byte) {
			rx.HandleEvent(protocol.SensorEvent{Type: protocol.SensorTouch, Value: sensorValue(b)})
		}},
	}
	for _, s := range subs {
		c := l.find(s.uuid)
		if c == nil {
			if s.required {
				return errors.Errorf("characteristic %s not found", s.uuid)
			}
			l.log.WithField("uuid", s.uuid.String()).Debug("Optional characteristic not present")
			continue
		}
		if err := l.cln.Subscribe(c, false, s.h); err != nil {
			return errors.Wrapf(err, "subscribe %s", s.uuid)
		}
	}

	go func() {
		select {
		case <-l.closed:
		case <-l.cln.Disconnected():
			select {
			case <-l.closed:
				return
			default:
			}
			l.log.Warn("Glasses disconnected")
			rx.HandleDisconnect(errors.New("BLE connection lost"))
		}
	}()
	return nil
}

func sensorValue(b []byte) uint16 {
	switch len(b) {
	case 0:
		return 0
	case 1:
		return uint16(b[0])
	default:
		return uint16(b[0])<<8 | uint16(b[1])
	}
}

// WriteFrame writes the frame to the Rx characteristic, split into ATT sized writes.
func (l *Link) WriteFrame(frame []byte) error {
	l.txLock.Lock()
	defer l.txLock.Unlock()
	select {
	case <-l.closed:
		return errors.New("BLE link closed")
	default:
	}
	chunk := l.mtu - attHeaderSize
	for len(frame) > 0 {
		n := len(frame)
		if n > chunk {
			n = chunk
		}
		if err := l.cln.WriteCharacteristic(l.rx, frame[:n], l.cfg.WriteWithoutResponse); err != nil {
			return errors.Wrap(err, "write rx characteristic")
		}
		frame = frame[n:]
	}
	return nil
}

// MTU returns the negotiated ATT MTU.
func (l *Link) MTU() int {
	return l.mtu
}

// Close drops the subscriptions and the connection.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		if e := l.cln.ClearSubscriptions(); e != nil {
			l.log.WithError(e).Debug("Clearing subscriptions")
		}
		err = l.cln.CancelConnection()
	})
	return err
}
