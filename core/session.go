package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/core/video"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	cameraResource  = "camera"
	samplerResource = "video sampler"
)

// Session is one conversational connection to the realtime service together
// with the devices feeding it. A Session may be connected, disconnected and
// retried any number of times but holds at most one live connection.
type Session struct {
	config     Config
	dialer     realtime.Dialer
	openGraph  func(ctx context.Context) (AudioGraph, error)
	openCamera func(ctx context.Context) (video.Camera, error)
	archiver   Archiver
	callbacks  sessionCallbacks
	emit       eventEmitter

	muted       atomic.Bool
	videoWanted atomic.Bool
	state       atomic.Int32
	// gen is bumped by every Connect and Disconnect. Work started for an
	// older generation is discarded.
	gen atomic.Uint64

	// lifecycleMu serialises Connect, Disconnect, fail and video toggles.
	lifecycleMu sync.Mutex

	mu             sync.Mutex
	conn           *connection
	credential     string
	lastErr        error
	cancelConnect  context.CancelFunc
	lastTranscript conversations.Transcript

	archives sync.WaitGroup
}

type connection struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc

	channel   realtime.Channel
	graph     AudioGraph
	queue     *outboundQueue
	scheduler *playbackScheduler
	turns     turnAggregator
	ended     chan string
	log       *conversations.Log
	resources *resources
	capture   *capturePipeline
	emit      eventEmitter

	videoMu sync.Mutex
	video   *videoSampler

	loopDone   chan struct{}
	writerDone chan struct{}
}

type stateChange struct {
	from    ConnectionState
	to      ConnectionState
	cause   error
	message *conversations.Message
}

func New(opts ...SessionOption) *Session {
	s := &Session{config: DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	s.emit = newCallbackEventEmitter(s.callbacks)
	return s
}

// Connect opens the audio graph, the microphone and the remote channel, in
// that order, and starts streaming. Any failure releases what was acquired
// and moves the session to StateError.
//
// A blank credential is rejected with ErrMissingCredential before anything
// else happens. Connecting while already Connecting or Connected returns
// ErrInvalidTransition.
func (s *Session) Connect(ctx context.Context, credential string) (err error) {
	if strings.TrimSpace(credential) == "" {
		return ErrMissingCredential
	}
	if state := s.State(); state == StateConnecting || state == StateConnected {
		return fmt.Errorf("%w: connect while %s", ErrInvalidTransition, state)
	}

	ctx, span := tracer.Start(ctx, "connect session")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.dialer == nil {
		return ErrNoDialer
	}
	if s.openGraph == nil {
		return ErrNoAudioGraph
	}

	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	change, ok := s.setStateLocked(StateConnecting, nil)
	if !ok {
		state := s.State()
		s.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrInvalidTransition, state)
	}
	gen := s.gen.Add(1)
	s.credential = credential
	s.cancelConnect = cancel
	s.mu.Unlock()
	s.announce(change)

	conn, err := s.open(connectCtx, gen, credential)

	s.mu.Lock()
	s.cancelConnect = nil
	if s.gen.Load() != gen {
		s.mu.Unlock()
		if conn != nil {
			s.teardown(conn)
		}
		return ErrConnectAborted
	}
	if err != nil {
		change, _ = s.setStateLocked(StateError, err)
		s.mu.Unlock()
		logger.Error("failed to connect session", "error", err)
		s.announce(change)
		return err
	}
	s.conn = conn
	change, _ = s.setStateLocked(StateConnected, nil)
	s.mu.Unlock()

	s.record(change, conn)
	s.announce(change)

	if s.videoWanted.Load() {
		if err := s.startVideo(ctx, conn); err != nil {
			logger.Warn("failed to start video with connection", "error", err)
			s.videoWanted.Store(false)
		}
	}
	return nil
}

// open acquires everything a connection needs. On failure it releases what
// it got so far and returns nil.
func (s *Session) open(ctx context.Context, gen uint64, credential string) (_ *connection, err error) {
	res := newResources()
	defer func() {
		if err != nil {
			if releaseErr := res.ReleaseAll(context.WithoutCancel(ctx)); releaseErr != nil {
				logger.Debug("partial connection released with errors", "error", releaseErr)
			}
		}
	}()

	graph, err := s.openGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio graph: %w", err)
	}
	if err := res.Acquire(ctx, stageGraph, "audio graph", func(context.Context) error { return graph.Close() }); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		if err != nil {
			cancel()
		}
	}()

	conn := &connection{
		gen:        gen,
		ctx:        runCtx,
		cancel:     cancel,
		graph:      graph,
		ended:      make(chan string),
		log:        conversations.NewLog(uuid.NewString()),
		resources:  res,
		emit:       s.emit,
		loopDone:   make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	conn.scheduler = newPlaybackScheduler(graph, graph.EncodingInfo(), conn.postEnded)
	if err := res.Acquire(ctx, stageGraph, "playback", func(context.Context) error {
		conn.scheduler.Interrupt()
		return nil
	}); err != nil {
		return nil, err
	}

	microphone, err := graph.OpenMicrophone(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open microphone: %w", err)
	}
	if err := res.Acquire(ctx, stageDevices, "microphone", func(context.Context) error { return microphone.Close() }); err != nil {
		return nil, err
	}

	channel, err := s.dialer.Open(ctx, credential, s.openOptions(microphone, graph)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open realtime channel: %w", err)
	}
	conn.channel = channel
	if err := res.Acquire(ctx, stageChannel, "channel", func(context.Context) error { return channel.Close() }); err != nil {
		return nil, err
	}

	conn.queue = newOutboundQueue(s.config.OutboundQueueSize, conn.evicted)
	conn.capture = &capturePipeline{
		encoding: microphone.EncodingInfo(),
		active:   s.captureActive(conn),
		submit:   conn.queue.Submit,
		emit:     conn.emit,
	}

	go func() {
		defer close(conn.writerDone)
		writer := panicSafeNamedWorker("channel writer", func(ctx context.Context) error {
			return writeLoop(ctx, conn.channel, conn.queue)
		})
		if err := writer(runCtx); err != nil {
			logger.Error("channel writer stopped", "error", err)
		}
	}()
	go func() {
		err := panicSafeNamedWorker("inbound", conn.run)(runCtx)
		close(conn.loopDone)
		if err != nil && runCtx.Err() == nil {
			s.fail(conn, err)
		}
	}()
	if err := res.Acquire(ctx, stageProducers, "session loops", func(ctx context.Context) error {
		conn.cancel()
		return errors.Join(waitDone(ctx, conn.loopDone), waitDone(ctx, conn.writerDone))
	}); err != nil {
		return nil, err
	}

	if err := microphone.StartCapture(runCtx, conn.capture.OnAudio); err != nil {
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}
	if err := res.Acquire(ctx, stageProducers, "capture", func(context.Context) error { return microphone.StopCapture() }); err != nil {
		return nil, err
	}

	return conn, nil
}

func (s *Session) openOptions(microphone audio.Microphone, graph AudioGraph) []realtime.OpenOption {
	opts := []realtime.OpenOption{
		realtime.WithInputEncoding(microphone.EncodingInfo()),
		realtime.WithOutputEncoding(graph.EncodingInfo()),
	}
	if s.config.Model != "" {
		opts = append(opts, realtime.WithModel(s.config.Model))
	}
	if s.config.Voice != "" {
		opts = append(opts, realtime.WithVoice(s.config.Voice))
	}
	if s.config.SystemInstruction != "" {
		opts = append(opts, realtime.WithSystemInstruction(s.config.SystemInstruction))
	}
	return opts
}

// Disconnect tears down the current connection, or aborts one that is still
// being set up. It is safe to call at any time and any number of times.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.cancelConnect != nil {
		s.cancelConnect()
	}
	s.gen.Add(1)
	s.mu.Unlock()

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	change, changed := s.setStateLocked(StateDisconnected, nil)
	s.mu.Unlock()

	if conn != nil {
		s.teardown(conn)
	}
	if changed {
		s.announce(change)
	}
}

// Close disconnects and waits for pending transcript archival.
func (s *Session) Close() {
	s.Disconnect()
	s.archives.Wait()
}

// Retry reconnects with the credential of the last Connect. It is only
// allowed from StateError.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	state := s.State()
	credential := s.credential
	s.mu.Unlock()

	if state != StateError {
		return fmt.Errorf("%w: session is %s", ErrRetryNotAllowed, state)
	}
	return s.Connect(ctx, credential)
}

// fail moves a live connection to StateError. Failures reported for a
// connection that is no longer current are ignored.
func (s *Session) fail(conn *connection, cause error) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	change, changed := s.setStateLocked(StateError, cause)
	s.mu.Unlock()

	logger.Error("session connection failed", "error", cause)
	s.record(change, conn)
	s.teardown(conn)
	if changed {
		s.announce(change)
	}
}

func (s *Session) teardown(conn *connection) {
	ctx, cancel := withTimeout(context.Background(), s.config.TeardownTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "teardown session")
	defer span.End()

	if err := conn.resources.ReleaseAll(ctx); err != nil {
		span.SetAttributes(attribute.Bool("teardown.errors", true))
		logger.Warn("session teardown finished with errors", "error", err)
	}

	transcript := conn.log.Finish()
	s.mu.Lock()
	s.lastTranscript = transcript
	s.mu.Unlock()

	s.archive(transcript)
}

func (s *Session) archive(transcript conversations.Transcript) {
	if s.archiver == nil || transcript.IsEmpty() {
		return
	}

	s.archives.Add(1)
	go func() {
		defer s.archives.Done()

		ctx, cancel := withTimeout(context.Background(), s.config.ArchiveTimeout)
		defer cancel()

		ctx, span := tracer.Start(ctx, "archive transcript", trace.WithAttributes(
			attribute.String("session.id", transcript.SessionID),
			attribute.Int("transcript.messages", len(transcript.Messages)),
		))
		defer span.End()

		if err := s.archiver.Archive(ctx, transcript); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn("failed to archive transcript", "session", transcript.SessionID, "error", err)
		}
	}()
}

// setStateLocked applies a transition if the state machine allows it. The
// caller must hold s.mu.
func (s *Session) setStateLocked(to ConnectionState, cause error) (stateChange, bool) {
	from := ConnectionState(s.state.Load())
	if from == to || !canTransition(from, to) {
		return stateChange{}, false
	}

	s.state.Store(int32(to))
	switch to {
	case StateError:
		s.lastErr = cause
	case StateConnecting:
		s.lastErr = nil
	}

	change := stateChange{from: from, to: to, cause: cause}
	if text, ok := systemMessageFor(to, cause); ok {
		message := conversations.NewMessage(conversations.RoleSystem, text)
		change.message = &message
	}
	return change, true
}

func (s *Session) record(change stateChange, conn *connection) {
	if change.message != nil && conn != nil {
		conn.log.Append(*change.message)
	}
}

func (s *Session) announce(change stateChange) {
	s.emit(events.NewStateChanged(change.from.String(), change.to.String(), change.cause))
	if change.message != nil {
		s.emit(events.NewSystemMessage(*change.message))
	}
}

func (s *Session) captureActive(conn *connection) func() bool {
	return func() bool {
		return s.State() == StateConnected && !s.muted.Load() && s.gen.Load() == conn.gen
	}
}

func (s *Session) videoActive(conn *connection) func() bool {
	return func() bool {
		return s.State() == StateConnected && s.videoWanted.Load() && s.gen.Load() == conn.gen
	}
}

func (c *connection) evicted(msg outboundMessage) {
	reason := metric.WithAttributes(attribute.String("reason", "overflow"))
	switch msg.kind {
	case outboundAudio:
		metrics.audioChunksDropped.Add(c.ctx, 1, reason)
		c.emit(events.NewUserAudioChunkDropped("overflow"))
	case outboundVideo:
		metrics.videoFramesDropped.Add(c.ctx, 1, reason)
		c.emit(events.NewVideoFrameDropped("overflow"))
	}
}

func (s *Session) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

// Err returns the cause of the last transition to StateError. It is cleared
// when a new connection attempt starts.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SetMuted gates microphone blocks before they are encoded. Blocks captured
// while muted are discarded, not buffered.
func (s *Session) SetMuted(muted bool) {
	s.muted.Store(muted)
}

func (s *Session) Muted() bool {
	return s.muted.Load()
}

// EnableVideo starts sampling the camera. Without a live connection it only
// records the wish and the camera is opened on the next Connect. Camera
// failures leave audio untouched and turn video back off.
func (s *Session) EnableVideo(ctx context.Context) error {
	s.videoWanted.Store(true)

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	if err := s.startVideo(ctx, conn); err != nil {
		s.videoWanted.Store(false)
		return err
	}
	return nil
}

// DisableVideo stops the sampler and releases the camera right away.
func (s *Session) DisableVideo() {
	s.videoWanted.Store(false)

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	ctx, cancel := withTimeout(context.Background(), s.config.TeardownTimeout)
	defer cancel()
	s.stopVideo(ctx, conn)
}

func (s *Session) VideoEnabled() bool {
	return s.videoWanted.Load()
}

func (s *Session) startVideo(ctx context.Context, conn *connection) error {
	conn.videoMu.Lock()
	defer conn.videoMu.Unlock()

	if conn.video != nil {
		return nil
	}
	if s.openCamera == nil {
		return ErrNoCamera
	}

	encoder, err := video.NewEncoder(s.config.VideoDownscale, s.config.VideoQuality)
	if err != nil {
		return fmt.Errorf("failed to create frame encoder: %w", err)
	}

	camera, err := s.openCamera(ctx)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	if err := conn.resources.Acquire(ctx, stageDevices, cameraResource, func(context.Context) error { return camera.Close() }); err != nil {
		return err
	}

	sampler := newVideoSampler(camera, encoder, s.config.VideoFrameRate, s.videoActive(conn), conn.queue.Submit, conn.emit)
	sampler.Start(conn.ctx)
	if err := conn.resources.Acquire(ctx, stageProducers, samplerResource, sampler.Stop); err != nil {
		return err
	}

	conn.video = sampler
	return nil
}

func (s *Session) stopVideo(ctx context.Context, conn *connection) {
	conn.videoMu.Lock()
	defer conn.videoMu.Unlock()

	if conn.video == nil {
		return
	}
	conn.video = nil

	// Errors are logged by the release itself.
	_ = conn.resources.Release(ctx, samplerResource)
	_ = conn.resources.Release(ctx, cameraResource)
}

// Transcript returns the conversation so far, or the last finished one when
// no connection is live.
func (s *Session) Transcript() conversations.Transcript {
	s.mu.Lock()
	conn := s.conn
	last := s.lastTranscript
	s.mu.Unlock()

	if conn != nil {
		return conn.log.Snapshot()
	}
	return last
}
