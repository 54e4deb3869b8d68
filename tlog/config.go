// Package tlog carries a zap logger through contexts and builds top-level
// loggers from command-line configuration.
package tlog

import (
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format is the logging format
type Format string

// Format values
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Color is the coloring setting for text format
type Color string

// Color values
const (
	ColorAuto Color = ""
	ColorYes  Color = "yes"
	ColorNo   Color = "no"
)

// Config is the configuration for creating a top-level logger
type Config struct {
	Name    string // top-level logger name (optional)
	Format  Format
	Color   Color
	Verbose bool // enable messages at Debug level
}

// RegisterFlags adds the logging options to a flag set and returns a Config
// filled in after the flag set is parsed.
func RegisterFlags(fs *pflag.FlagSet) *Config {
	config := &Config{}
	fs.StringVar((*string)(&config.Format), "log-format", string(FormatText), "Log format (json|text)")
	fs.StringVar((*string)(&config.Color), "log-color", string(ColorAuto), "Colored logs (yes|no|auto)")
	fs.BoolVarP(&config.Verbose, "verbose", "v", false, "Enable verbose (debug level) messages")
	return config
}

func iso8601MicroTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02T15:04:05.000000Z0700"))
}

// DefaultEncoderConfig is the default value of zap.EncoderConfig that we use
// when creating top-level loggers
var DefaultEncoderConfig = func() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = iso8601MicroTimeEncoder
	return ec
}()
