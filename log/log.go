package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/ephoris/fluidlsm/config"

	"github.com/charmbracelet/log"
)

var (
	Logger *log.Logger
	once   sync.Once
)

func Init() {
	once.Do(func() {
		initialize()
	})
}

func initialize() {
	Logger = log.NewWithOptions(getLogOutput(), log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "db_builder",
	})

	setLevel(config.GetString("log.level"))
}

func setLevel(level string) {
	switch level {
	case "debug":
		Logger.SetLevel(log.DebugLevel)
	case "info":
		Logger.SetLevel(log.InfoLevel)
	case "warn":
		Logger.SetLevel(log.WarnLevel)
	case "error":
		Logger.SetLevel(log.ErrorLevel)
	default:
		Logger.SetLevel(log.InfoLevel)
	}
}

// SetVerbosity maps the CLI -v flag onto log levels
// (0: info, 1: debug, 2: debug with caller reporting).
func SetVerbosity(v int) {
	switch {
	case v <= 0:
		Logger.SetLevel(log.InfoLevel)
	case v == 1:
		Logger.SetLevel(log.DebugLevel)
	default:
		Logger.SetLevel(log.DebugLevel)
		Logger.SetReportCaller(true)
	}
}

func getLogOutput() io.Writer {
	output := config.GetString("log.output")
	switch output {
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		return os.Stderr
	}
}
