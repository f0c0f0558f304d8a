package blelink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/RoanBrand/ActiveLookProtocol/protocol"
	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGlasses struct {
	mu       sync.Mutex
	profile  *ble.Profile
	writes   [][]byte
	noRsp    []bool
	handlers map[string]ble.NotificationHandler
	mtu      int
	mtuErr   error
	gone     chan struct{}
	onWrite  func(b []byte)
	canceled bool
}

func newFakeGlasses(optional bool) *fakeGlasses {
	svc := ble.NewService(ServiceUUID)
	for _, u := range []ble.UUID{TxUUID, FlowControlUUID, RxUUID} {
		svc.AddCharacteristic(ble.NewCharacteristic(u))
	}
	services := []*ble.Service{svc}
	if optional {
		svc.AddCharacteristic(ble.NewCharacteristic(GestureUUID))
		bat := ble.NewService(BatteryServiceUUID)
		bat.AddCharacteristic(ble.NewCharacteristic(BatteryLevelUUID))
		services = append(services, bat)
	}
	return &fakeGlasses{
		profile:  &ble.Profile{Services: services},
		handlers: make(map[string]ble.NotificationHandler),
		mtu:      185,
		gone:     make(chan struct{}),
	}
}

func (g *fakeGlasses) DiscoverProfile(bool) (*ble.Profile, error) { return g.profile, nil }

func (g *fakeGlasses) WriteCharacteristic(c *ble.Characteristic, v []byte, noRsp bool) error {
	g.mu.Lock()
	g.writes = append(g.writes, append([]byte(nil), v...))
	g.noRsp = append(g.noRsp, noRsp)
	onWrite := g.onWrite
	g.mu.Unlock()
	if !c.UUID.Equal(RxUUID) {
		return errors.New("write to wrong characteristic")
	}
	if onWrite != nil {
		onWrite(v)
	}
	return nil
}

func (g *fakeGlasses) ExchangeMTU(int) (int, error) { return g.mtu, g.mtuErr }

func (g *fakeGlasses) Subscribe(c *ble.Characteristic, _ bool, h ble.NotificationHandler) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[c.UUID.String()] = h
	return nil
}

func (g *fakeGlasses) ClearSubscriptions() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers = make(map[string]ble.NotificationHandler)
	return nil
}

func (g *fakeGlasses) CancelConnection() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.canceled = true
	return nil
}

func (g *fakeGlasses) Disconnected() <-chan struct{} { return g.gone }

func (g *fakeGlasses) notify(u ble.UUID, b []byte) {
	g.mu.Lock()
	h := g.handlers[u.String()]
	g.mu.Unlock()
	if h != nil {
		h(b)
	}
}

type recorder struct {
	mu     sync.Mutex
	rx     [][]byte
	events []protocol.Event
	lost   chan error
}

func newRecorder() *recorder {
	return &recorder{lost: make(chan error, 1)}
}

func (r *recorder) HandleNotification(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rx = append(r.rx, b)
}

func (r *recorder) HandleEvent(e protocol.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) HandleDisconnect(err error) { r.lost <- err }

func (r *recorder) received() ([][]byte, []protocol.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.rx...), append([]protocol.Event(nil), r.events...)
}

func TestNewNegotiatesMTU(t *testing.T) {
	logger, hook := test.NewNullLogger()

	g := newFakeGlasses(false)
	l, err := New(g, Config{MTU: 247}, logger)
	require.NoError(t, err)
	assert.Equal(t, 185, l.MTU())

	l, err = New(g, Config{}, logger)
	require.NoError(t, err)
	assert.Equal(t, defaultMTU, l.MTU())

	g.mtuErr = errors.New("not supported")
	l, err = New(g, Config{MTU: 247}, logger)
	require.NoError(t, err)
	assert.Equal(t, defaultMTU, l.MTU())
	var warned bool
	for _, e := range hook.AllEntries() {
		warned = warned || e.Message == "MTU exchange failed, using default"
	}
	assert.True(t, warned)
}

func TestNewWithoutCommandService(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := newFakeGlasses(false)
	g.profile = &ble.Profile{Services: []*ble.Service{ble.NewService(BatteryServiceUUID)}}
	_, err := New(g, Config{}, logger)
	assert.Equal(t, ErrNoCommandService, err)
}

func TestWriteFrameSplitsToMTU(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := newFakeGlasses(false)
	l, err := New(g, Config{WriteWithoutResponse: true}, logger)
	require.NoError(t, err)

	frame := make([]byte, 45)
	for i := range frame {
		frame[i] = byte(i)
	}
	require.NoError(t, l.WriteFrame(frame))
	require.Len(t, g.writes, 3)
	assert.Len(t, g.writes[0], 20)
	assert.Len(t, g.writes[1], 20)
	assert.Len(t, g.writes[2], 5)
	assert.Equal(t, []bool{true, true, true}, g.noRsp)
	var joined []byte
	for _, w := range g.writes {
		joined = append(joined, w...)
	}
	assert.Equal(t, frame, joined)

	require.NoError(t, l.Close())
	assert.True(t, g.canceled)
	assert.Error(t, l.WriteFrame(frame))
}

func TestCharacteristicsBecomeEvents(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := newFakeGlasses(true)
	l, err := New(g, Config{}, logger)
	require.NoError(t, err)
	rec := newRecorder()
	require.NoError(t, l.Attach(rec))

	g.notify(TxUUID, []byte{0x05, 0x01, 0x40, 0x40})
	g.notify(FlowControlUUID, []byte{byte(protocol.FlowOff)})
	g.notify(BatteryLevelUUID, []byte{12})
	g.notify(GestureUUID, []byte{0x01})
	g.notify(FlowControlUUID, nil)

	frames, events := rec.received()
	assert.Equal(t, [][]byte{{0x05, 0x01, 0x40, 0x40}}, frames)
	assert.Equal(t, []protocol.Event{
		protocol.FlowControlEvent{Status: protocol.FlowOff},
		protocol.BatteryEvent{Level: 12},
		protocol.SensorEvent{Type: protocol.SensorGesture, Value: 1},
	}, events)
}

func TestDisconnectReported(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := newFakeGlasses(false)
	l, err := New(g, Config{}, logger)
	require.NoError(t, err)
	rec := newRecorder()
	require.NoError(t, l.Attach(rec))

	close(g.gone)
	select {
	case err := <-rec.lost:
		assert.EqualError(t, err, "BLE connection lost")
	case <-time.After(time.Second):
		t.Fatal("disconnect not reported")
	}
}

func TestCloseIsNotLinkLoss(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := newFakeGlasses(false)
	l, err := New(g, Config{}, logger)
	require.NoError(t, err)
	rec := newRecorder()
	require.NoError(t, l.Attach(rec))

	require.NoError(t, l.Close())
	close(g.gone)
	select {
	case err := <-rec.lost:
		t.Fatalf("close reported as link loss: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherOverGATT(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := newFakeGlasses(false)
	l, err := New(g, Config{MTU: 185}, logger)
	require.NoError(t, err)

	d := protocol.NewDispatcher(l, protocol.DefaultConfig(), logger)
	require.NoError(t, l.Attach(d))
	g.onWrite = func(b []byte) {
		if len(b) > 0 && protocol.Opcode(b[0]) == protocol.OpBattery {
			go g.notify(TxUUID, []byte{byte(protocol.OpBattery), 0x01, 0x2A, 0x2A})
		}
	}
	d.Start()
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	level, err := d.Battery(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.BatteryLevel(42), level)
}

// A characteristic value arriving between two Tx notifications of one response
// must not break that response.
func TestEventBetweenResponseParts(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := newFakeGlasses(true)
	l, err := New(g, Config{}, logger)
	require.NoError(t, err)

	d := protocol.NewDispatcher(l, protocol.DefaultConfig(), logger)
	require.NoError(t, l.Attach(d))
	batteries := make(chan protocol.Event, 1)
	d.Subscribe(func(e protocol.Event) { batteries <- e })

	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	resp, err := protocol.Frame{Opcode: protocol.OpImgList, Payload: payload}.Bytes()
	require.NoError(t, err)
	g.onWrite = func(b []byte) {
		if len(b) > 0 && protocol.Opcode(b[0]) == protocol.OpImgList {
			go func() {
				g.notify(TxUUID, resp[:20])
				g.notify(BatteryLevelUUID, []byte{80})
				g.notify(TxUUID, resp[20:])
			}()
		}
	}
	d.Start()
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	list, err := d.ImageList(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 10)
	assert.Equal(t, protocol.BatteryEvent{Level: 80}, <-batteries)
}
