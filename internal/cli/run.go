package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	session "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/archive"
	"github.com/koscakluka/ema-live/core/archive/file"
	"github.com/koscakluka/ema-live/core/archive/redis"
	"github.com/koscakluka/ema-live/core/archive/webhook"
	"github.com/koscakluka/ema-live/core/audio/miniaudio"
	"github.com/koscakluka/ema-live/core/audio/portaudio"
	"github.com/koscakluka/ema-live/core/realtime/gemini"
	"github.com/koscakluka/ema-live/core/video"
	"github.com/koscakluka/ema-live/core/video/ffmpeg"
	"github.com/koscakluka/ema-live/internal/config"
	"github.com/koscakluka/ema-live/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

var (
	runVideo bool
	runMuted bool
	runWidth int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a live conversation",
	Long: `Connect to the realtime model and start talking. Type commands on stdin
while the session runs: mute, unmute, video on, video off, retry, status, quit.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runVideo, "video", false, "Start with the camera on")
	runCmd.Flags().BoolVar(&runMuted, "muted", false, "Start with the microphone muted")
	runCmd.Flags().IntVar(&runWidth, "width", defaultWidth, "Wrap transcript lines at this width")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	archiver, closeArchiver, err := buildArchiver(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeArchiver()

	out := newPrinter(cmd.OutOrStdout(), runWidth)
	opts := []session.SessionOption{
		session.WithConfig(cfg.SessionConfig()),
		session.WithDialer(newDialer(cfg)),
		session.WithAudioGraph(audioGraphOpener(cfg)),
		session.WithCamera(cameraOpener(cfg)),
		session.WithStateChangedCallback(out.State),
		session.WithMessageCallback(out.Message),
		session.WithMuted(runMuted),
	}
	if archiver != nil {
		opts = append(opts, session.WithArchiver(archiver))
	}
	s := session.New(opts...)
	defer s.Close()

	if runVideo || cfg.Video.Enabled {
		if err := s.EnableVideo(ctx); err != nil {
			return fmt.Errorf("enabling video: %w", err)
		}
	}

	if err := s.Connect(ctx, cfg.Credential()); err != nil {
		if errors.Is(err, session.ErrMissingCredential) {
			return fmt.Errorf("no API key, set GEMINI_API_KEY or EMA_LIVE_API_KEY: %w", err)
		}
		out.Infof("connect failed, type retry to try again")
	}

	return commandLoop(ctx, cmd.InOrStdin(), s, out)
}

func newDialer(cfg *config.Config) *gemini.Client {
	opts := []gemini.ClientOption{gemini.WithHeartbeat(cfg.Heartbeat())}
	if cfg.Endpoint != "" {
		opts = append(opts, gemini.WithEndpoint(cfg.Endpoint))
	}
	return gemini.NewClient(opts...)
}

func audioGraphOpener(cfg *config.Config) func(context.Context) (session.AudioGraph, error) {
	return func(context.Context) (session.AudioGraph, error) {
		switch cfg.Audio.Backend {
		case config.BackendPortaudio:
			client, err := portaudio.NewClient(cfg.Audio.PortAudioBuffer, cfg.InputEncoding(), cfg.OutputEncoding())
			if err != nil {
				return nil, fmt.Errorf("failed to open portaudio: %w", err)
			}
			return client, nil
		default:
			client, err := miniaudio.NewClient(
				miniaudio.WithCaptureSampleRate(cfg.Audio.InputSampleRate),
				miniaudio.WithPlaybackSampleRate(cfg.Audio.OutputSampleRate),
				miniaudio.WithCaptureBlock(cfg.CaptureBlock()),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to open miniaudio: %w", err)
			}
			return client, nil
		}
	}
}

func cameraOpener(cfg *config.Config) func(context.Context) (video.Camera, error) {
	return func(ctx context.Context) (video.Camera, error) {
		// ffmpeg runs at least as fast as the sampler so a fresh frame is
		// always waiting.
		opts := []ffmpeg.Option{
			ffmpeg.WithFrameRate(int(math.Ceil(cfg.Video.FrameRate))),
		}
		if cfg.Video.FFmpeg != "" {
			opts = append(opts, ffmpeg.WithBinary(cfg.Video.FFmpeg))
		}
		if cfg.Video.InputFormat != "" && cfg.Video.Device != "" {
			opts = append(opts, ffmpeg.WithDevice(cfg.Video.InputFormat, cfg.Video.Device))
		}
		camera, err := ffmpeg.Open(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return camera, nil
	}
}

// buildArchiver combines every configured archive target. The returned close
// function is always safe to call.
func buildArchiver(ctx context.Context, cfg *config.Config) (session.Archiver, func(), error) {
	var (
		archivers []archive.Archiver
		closers   []func() error
	)
	closeAll := func() {
		for _, closeFn := range closers {
			_ = closeFn()
		}
	}

	if cfg.Archive.File != "" {
		archivers = append(archivers, file.New(cfg.Archive.File))
	}
	if cfg.Archive.RedisURL != "" {
		store, err := redis.Dial(ctx, cfg.Archive.RedisURL,
			redis.WithPrefix(cfg.Archive.RedisPrefix),
			redis.WithTTL(cfg.RedisTTL()),
		)
		if err != nil {
			return nil, closeAll, fmt.Errorf("connecting to redis archive: %w", err)
		}
		archivers = append(archivers, store)
		closers = append(closers, store.Close)
	}
	if cfg.Archive.WebhookURL != "" {
		var opts []webhook.Option
		if cfg.Archive.WebhookToken != "" {
			opts = append(opts, webhook.WithToken(cfg.Archive.WebhookToken))
		}
		archivers = append(archivers, webhook.New(cfg.Archive.WebhookURL, opts...))
	}

	switch len(archivers) {
	case 0:
		return nil, closeAll, nil
	case 1:
		return archivers[0], closeAll, nil
	}
	return archive.Multi(archivers...), closeAll, nil
}
