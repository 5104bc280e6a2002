package logx

import (
	"github.com/coingraph/server/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger for the given environment.
// Production keeps the default JSON output at info level; everything else
// gets a console writer with caller info at debug level.
func Init(env core.Environment) {
	if env.IsProduction() {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
		return
	}
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
	log.Logger = log.Logger.Level(zerolog.DebugLevel)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
