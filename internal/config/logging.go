package config

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging applies level and format to the standard logrus logger.
func ConfigureLogging(cfg LogConfig, out io.Writer) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	switch cfg.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	if out != nil {
		log.SetOutput(out)
	}
	return nil
}
