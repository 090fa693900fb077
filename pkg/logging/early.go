package logging

import (
	"fmt"
	"io"
	"os"
)

// EarlyLog prints before the structured logger exists, i.e. while the
// configuration is still being loaded.
type EarlyLog struct {
	out  io.Writer
	exit func(int)
}

func NewEarlyLog() *EarlyLog {
	return &EarlyLog{out: os.Stderr, exit: os.Exit}
}

func NewEarlyLogTo(out io.Writer, exit func(int)) *EarlyLog {
	return &EarlyLog{out: out, exit: exit}
}

func (l *EarlyLog) Fatal(msg string, args ...interface{}) {
	l.print("FATAL", msg, args...)
	l.exit(1)
}

func (l *EarlyLog) Warn(msg string, args ...interface{}) {
	l.print("WARN", msg, args...)
}

func (l *EarlyLog) Info(msg string, args ...interface{}) {
	l.print("INFO", msg, args...)
}

func (l *EarlyLog) print(level, msg string, args ...interface{}) {
	fmt.Fprintf(l.out, level+": "+msg+"\n", args...)
}
