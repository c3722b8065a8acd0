package mcp

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// StdioOpts configures ServeStdio.
type StdioOpts struct {
	LogLevel string
	// LogDir overrides LogFileDir.
	LogDir string
}

// LogFileDir is where stdio sessions log; stdout belongs to the protocol.
func LogFileDir() (string, error) {
	cachedir, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Errorf("getting user cache directory: %w", err)
	}
	return filepath.Join(cachedir, "vmls", "mcp"), nil
}

// SessionLogger opens a timestamped log file under dir.
func SessionLogger(dir, levelStr string) (zerolog.Logger, func() error, error) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), nil, errors.Errorf("creating log directory: %w", err)
	}

	path := filepath.Join(dir, "mcp."+time.Now().Format("2006-01-02_15-04-05")+".log")
	logFile, err := os.Create(path)
	if err != nil {
		return zerolog.Nop(), nil, errors.Errorf("creating log file: %w", err)
	}

	logger := zerolog.New(logFile).With().
		Timestamp().
		Str("mode", "stdio").
		Str("log_file", path).
		Logger().
		Level(level)

	return logger, logFile.Close, nil
}

// ServeStdio serves the tools over stdin/stdout until the client disconnects.
func ServeStdio(ctx context.Context, s *Server, version string, opts StdioOpts) error {
	dir := opts.LogDir
	if dir == "" {
		var err error
		dir, err = LogFileDir()
		if err != nil {
			return err
		}
	}

	zerolog.Ctx(ctx).Debug().Str("dir", dir).Msg("MCP session logs go to a file")

	logger, closeLog, err := SessionLogger(dir, opts.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	s.logger = logger.With().Str("component", "mcp").Logger()

	logger.Info().Str("version", version).Msg("Starting stdio server")

	errorLogger := log.New(&logWriter{
		logger: logger.With().Str("source", "mcp_stdio_error_logs").Logger(),
	}, "", 0)

	if err := server.ServeStdio(s.MCPServer("vmls", version), server.WithErrorLogger(errorLogger)); err != nil {
		return errors.Errorf("serving stdio: %w", err)
	}
	return nil
}

// logWriter feeds the standard library logger mcp-go expects into zerolog.
type logWriter struct {
	logger zerolog.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Error().Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
