package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/core/video"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

// callOrder records named calls across fakes so tests can assert teardown
// ordering.
type callOrder struct {
	mu    sync.Mutex
	calls []string
}

func (o *callOrder) add(call string) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, call)
}

func (o *callOrder) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

type testAudioGraph struct {
	*audio.Mixer
	microphone *testMicrophone
	order      *callOrder

	openMicrophoneErr error
	closeCalls        atomic.Int32
}

func newTestAudioGraph(t *testing.T, order *callOrder) *testAudioGraph {
	t.Helper()

	mixer, err := audio.NewMixer(audio.GetDefaultOutputEncodingInfo())
	if err != nil {
		t.Fatalf("expected mixer, got %v", err)
	}
	return &testAudioGraph{
		Mixer:      mixer,
		microphone: &testMicrophone{encoding: audio.GetDefaultEncodingInfo(), order: order},
		order:      order,
	}
}

func (g *testAudioGraph) OpenMicrophone(context.Context) (audio.Microphone, error) {
	if g.openMicrophoneErr != nil {
		return nil, g.openMicrophoneErr
	}
	return g.microphone, nil
}

func (g *testAudioGraph) Close() error {
	g.closeCalls.Add(1)
	g.order.add("graph.close")
	return nil
}

func (g *testAudioGraph) opener() func(context.Context) (AudioGraph, error) {
	return func(context.Context) (AudioGraph, error) { return g, nil }
}

type testMicrophone struct {
	encoding audio.EncodingInfo
	order    *callOrder

	mu      sync.Mutex
	onAudio func([]byte)

	closePanics bool
	stopCalls   atomic.Int32
	closeCalls  atomic.Int32
}

func (m *testMicrophone) EncodingInfo() audio.EncodingInfo { return m.encoding }

func (m *testMicrophone) StartCapture(_ context.Context, onAudio func([]byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio = onAudio
	return nil
}

func (m *testMicrophone) StopCapture() error {
	m.stopCalls.Add(1)
	m.order.add("microphone.stop")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio = nil
	return nil
}

func (m *testMicrophone) Close() error {
	m.closeCalls.Add(1)
	m.order.add("microphone.close")
	if m.closePanics {
		panic("microphone driver crashed")
	}
	return nil
}

// push delivers a block as the device thread would. It reports whether
// capture was running.
func (m *testMicrophone) push(block []byte) bool {
	m.mu.Lock()
	onAudio := m.onAudio
	m.mu.Unlock()

	if onAudio == nil {
		return false
	}
	onAudio(block)
	return true
}

type testChannel struct {
	order    *callOrder
	messages chan realtime.ServerMessage

	mu       sync.Mutex
	sent     []realtime.ClientMessage
	err      error
	closed   bool
	closeErr error

	closeCalls atomic.Int32
}

func newTestChannel(order *callOrder) *testChannel {
	return &testChannel{order: order, messages: make(chan realtime.ServerMessage, 32)}
}

func (c *testChannel) Send(_ context.Context, msg realtime.ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return realtime.ErrChannelClosed
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *testChannel) Messages() <-chan realtime.ServerMessage { return c.messages }

func (c *testChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *testChannel) Close() error {
	c.closeCalls.Add(1)
	c.order.add("channel.close")
	c.shutdown(nil)
	return c.closeErr
}

// fail ends the channel from the remote side.
func (c *testChannel) fail(err error) {
	c.shutdown(err)
}

func (c *testChannel) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.messages)
}

func (c *testChannel) deliver(msg realtime.ServerMessage) {
	c.messages <- msg
}

func (c *testChannel) sentMessages() []realtime.ClientMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]realtime.ClientMessage(nil), c.sent...)
}

func (c *testChannel) sentOfType(mimeType string) int {
	count := 0
	for _, msg := range c.sentMessages() {
		if msg.RealtimeInput != nil && msg.RealtimeInput.Media != nil && msg.RealtimeInput.Media.MIMEType == mimeType {
			count++
		}
	}
	return count
}

type testDialer struct {
	order *callOrder

	mu          sync.Mutex
	channels    []*testChannel
	credentials []string
	options     []realtime.OpenOptions
	openErr     error
	block       chan struct{}
	entered     chan struct{}
}

func newTestDialer(order *callOrder) *testDialer {
	return &testDialer{order: order}
}

func (d *testDialer) Open(ctx context.Context, credential string, opts ...realtime.OpenOption) (realtime.Channel, error) {
	d.mu.Lock()
	d.credentials = append(d.credentials, credential)
	d.options = append(d.options, realtime.NewOpenOptions(opts...))
	block, entered, openErr := d.block, d.entered, d.openErr
	d.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if openErr != nil {
		return nil, openErr
	}

	channel := newTestChannel(d.order)
	d.mu.Lock()
	d.channels = append(d.channels, channel)
	d.mu.Unlock()
	return channel, nil
}

func (d *testDialer) opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.credentials)
}

func (d *testDialer) channel(i int) *testChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.channels) {
		return nil
	}
	return d.channels[i]
}

type testCamera struct {
	order *callOrder
	frame image.Image

	// gate, when set, holds every Frame call until a value is received.
	gate chan struct{}

	frameCalls atomic.Int32
	closeCalls atomic.Int32
}

func newTestCamera(order *callOrder) *testCamera {
	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			frame.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 90, A: 255})
		}
	}
	return &testCamera{order: order, frame: frame}
}

func (c *testCamera) Frame(ctx context.Context) (image.Image, error) {
	c.frameCalls.Add(1)
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.frame, nil
}

func (c *testCamera) Close() error {
	c.closeCalls.Add(1)
	c.order.add("camera.close")
	return nil
}

func (c *testCamera) opener() func(context.Context) (video.Camera, error) {
	return func(context.Context) (video.Camera, error) { return c, nil }
}

type testArchiver struct {
	mu          sync.Mutex
	transcripts []conversations.Transcript
	err         error
}

func (a *testArchiver) Archive(_ context.Context, transcript conversations.Transcript) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcripts = append(a.transcripts, transcript)
	return a.err
}

func (a *testArchiver) snapshot() []conversations.Transcript {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]conversations.Transcript(nil), a.transcripts...)
}

type testEventHandler struct {
	mu     sync.Mutex
	events []events.Event
}

func (h *testEventHandler) handle(event events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *testEventHandler) snapshot() []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.Event(nil), h.events...)
}

func (h *testEventHandler) count(kind events.Kind) int {
	count := 0
	for _, event := range h.snapshot() {
		if event.Kind() == kind {
			count++
		}
	}
	return count
}

type stateRecorder struct {
	mu     sync.Mutex
	states []ConnectionState
	errs   []error
}

func (r *stateRecorder) record(state ConnectionState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	r.errs = append(r.errs, err)
}

func (r *stateRecorder) snapshot() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnectionState(nil), r.states...)
}

type messageRecorder struct {
	mu       sync.Mutex
	messages []conversations.Message
}

func (r *messageRecorder) record(message conversations.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *messageRecorder) snapshot() []conversations.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]conversations.Message(nil), r.messages...)
}

// testHarness wires a session to fakes.
type testHarness struct {
	order    *callOrder
	graph    *testAudioGraph
	dialer   *testDialer
	camera   *testCamera
	archiver *testArchiver
	events   *testEventHandler
	states   *stateRecorder
	messages *messageRecorder
	session  *Session
}

func newTestHarness(t *testing.T, opts ...SessionOption) *testHarness {
	t.Helper()

	order := &callOrder{}
	h := &testHarness{
		order:    order,
		graph:    newTestAudioGraph(t, order),
		dialer:   newTestDialer(order),
		camera:   newTestCamera(order),
		archiver: &testArchiver{},
		events:   &testEventHandler{},
		states:   &stateRecorder{},
		messages: &messageRecorder{},
	}

	config := DefaultConfig()
	config.TeardownTimeout = 2 * time.Second

	base := []SessionOption{
		WithConfig(config),
		WithDialer(h.dialer),
		WithAudioGraph(h.graph.opener()),
		WithCamera(h.camera.opener()),
		WithArchiver(h.archiver),
		WithEventHandler(h.events.handle),
		WithStateChangedCallback(h.states.record),
		WithMessageCallback(h.messages.record),
	}
	h.session = New(append(base, opts...)...)
	t.Cleanup(h.session.Close)
	return h
}

func (h *testHarness) connect(t *testing.T) *testChannel {
	t.Helper()

	if err := h.session.Connect(context.Background(), "test-key"); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	channel := h.dialer.channel(h.dialer.opens() - 1)
	if channel == nil {
		t.Fatalf("expected dialer to have opened a channel")
	}
	return channel
}

var errTestRemote = errors.New("remote went away")

// pcmBlock returns n silent linear16 samples.
func pcmBlock(samples int) []byte {
	return make([]byte, samples*2)
}
