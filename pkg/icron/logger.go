package icron

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/seabridge/pkg/log"
)

type logger struct{}

// Logger returns a cron.Logger that writes through pkg/log. Info messages
// from cron are scheduling noise and go to debug.
func Logger() cron.Logger {
	return logger{}
}

func (logger) Info(msg string, keysAndValues ...any) {
	log.Debug("cron: %s%s", msg, formatKV(keysAndValues))
}

func (logger) Error(err error, msg string, keysAndValues ...any) {
	log.Error("cron: %s: %v%s", msg, err, formatKV(keysAndValues))
}

func formatKV(kv []any) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		b.WriteString(" ")
		if i+1 < len(kv) {
			fmt.Fprintf(&b, "%v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&b, "%v", kv[i])
		}
	}
	return b.String()
}
