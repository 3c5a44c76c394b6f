package logsvc

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/user"
)

// RollbarLogger prints to a standard logger and reports to its own rollbar client.
// It is safe for concurrent use: the recipient concerned by a report travels
// in that report's context, never on the client.
type RollbarLogger struct {
	std    *log.Logger
	client *rollbar.Client
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	client := rollbar.New(conf.RollbarToken, conf.Env, conf.Build, conf.Server.Host, "")
	client.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, client: client}
}

// Enable must be called before the logger is shared between goroutines.
func (l *RollbarLogger) Enable(enabled bool) {
	l.client.SetEnabled(enabled)
}

// Close waits for queued reports to be sent. Call it before a batch process exits.
func (l *RollbarLogger) Close() {
	_ = l.client.Close()
}

// report is one log call split into what rollbar needs.
type report struct {
	ctx    context.Context
	err    error
	extras map[string]interface{}
}

// expected args: error, map[string]interface{}, user.User (the recipient), anything else
func (l *RollbarLogger) prepare(msg string, args []interface{}) report {
	r := report{
		ctx:    context.Background(),
		extras: map[string]interface{}{"message": msg},
	}
	var (
		personSet bool
		other     []interface{}
	)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if !personSet {
				r.ctx = rollbar.NewPersonContext(r.ctx, &rollbar.Person{
					Id:       strconv.Itoa(v.ID),
					Username: v.Username,
					Email:    v.Email,
				})
				personSet = true
			}
		case error:
			if r.err == nil {
				r.err = v
			} else {
				other = append(other, v.Error())
			}
		case map[string]interface{}:
			for k, val := range v {
				r.extras[k] = val
			}
		default:
			other = append(other, fmt.Sprintf("%+v", v))
		}
	}
	if len(other) > 0 {
		r.extras["args"] = other
	}
	return r
}

func (l *RollbarLogger) send(level, msg string, args []interface{}) {
	r := l.prepare(msg, args)
	if r.err != nil {
		l.client.ErrorWithExtrasAndContext(r.ctx, level, r.err, r.extras)
		return
	}
	l.client.MessageWithExtrasAndContext(r.ctx, level, msg, r.extras)
}

func (l *RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		if _, ok := arg.(error); ok {
			continue // already part of msg
		}
		l.std.Printf("%+v\n", arg)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	l.send(rollbar.DEBUG, msg, args)
	l.print(msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.send(rollbar.INFO, msg, args)
	l.print(msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.send(rollbar.WARN, msg, args)
	l.print(msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.send(rollbar.ERR, msg, args)
	l.print(msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.send(rollbar.CRIT, msg, args)
	l.print(msg, args)
	l.Close()
	l.std.Fatal(msg)
}
