package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-live/core/archive/redis"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List archived sessions or print one transcript",
	Long: `Without arguments, lists the most recent sessions stored in the redis
archive. With a session id, prints that session's transcript.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of sessions to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Archive.RedisURL == "" {
		return errors.New("history needs archive.redis_url to be configured")
	}

	ctx := cmd.Context()
	store, err := redis.Dial(ctx, cfg.Archive.RedisURL, redis.WithPrefix(cfg.Archive.RedisPrefix))
	if err != nil {
		return fmt.Errorf("connecting to redis archive: %w", err)
	}
	defer store.Close()

	out := newPrinter(cmd.OutOrStdout(), defaultWidth)
	if len(args) == 1 {
		transcript, err := store.Load(ctx, args[0])
		if err != nil {
			return err
		}
		out.Transcript(transcript)
		return nil
	}

	ids, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		out.Infof("no archived sessions")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
