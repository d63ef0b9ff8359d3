package reporter

import (
	"fmt"
	"io"
	"os"

	"github.com/natefinch/lumberjack"
)

// SinkConfig selects where records go.
type SinkConfig struct {
	// Path of the output file; "-" writes to stdout.
	Path string `yaml:"path"`
	// Append keeps existing content. By default the file is truncated on open.
	Append bool `yaml:"append"`
	// MaxSize in megabytes. When set the file is rotated by size and always
	// appended to.
	MaxSize    int `yaml:"max-size"`
	MaxBackups int `yaml:"max-backups"`

	// Redis, when an address is set, replaces the file with a stream.
	Redis RedisConfig `yaml:"redis"`
}

// OpenSink opens the sink described by c.
func OpenSink(c SinkConfig) (io.WriteCloser, error) {
	switch {
	case c.Redis.Addr != "":
		return NewRedisSink(c.Redis), nil

	case c.Path == "-":
		return nopCloser{os.Stdout}, nil

	case c.Path == "":
		return nil, fmt.Errorf("sink path: %w", ErrInvalidConfig)

	case c.MaxSize > 0:
		return &lumberjack.Logger{
			Filename:   c.Path,
			MaxSize:    c.MaxSize,
			MaxBackups: c.MaxBackups,
		}, nil
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if c.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}

	f, err := os.OpenFile(c.Path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
