// Command linear-notion-sync mirrors labelled Linear issues into a Notion database
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zinonweke/linear-notion-sync/internal/platform/config"
	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
	"github.com/zinonweke/linear-notion-sync/internal/platform/logger"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// execute runs the command tree and maps the outcome to a process exit code
func execute(ctx context.Context, args []string) int {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", envFile, err)
		return exitConfig
	}
	logger.Init(logger.FromEnv())

	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	log := logger.Get()
	var ce *config.Error
	if errors.As(err, &ce) {
		for _, is := range ce.Issues {
			log.Error().Str("key", is.Key).Msg(is.Message)
		}
		return exitConfig
	}
	if perr.IsCode(err, perr.ErrorCodeConfig) {
		log.Error().Err(err).Msg("invalid configuration")
		return exitConfig
	}
	if errors.Is(err, context.Canceled) {
		log.Warn().Msg("interrupted")
		return exitFatal
	}
	log.Error().Err(err).Msg("linear-notion-sync failed")
	return exitFatal
}
