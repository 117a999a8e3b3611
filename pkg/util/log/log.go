// Copyright 2016 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log provides leveled, context-aware logging. Messages carry the
// logtags stored in the context, so callers annotate a context once (e.g.
// with a table id) and every message logged under it is tagged.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/nstruharova/accumulo/pkg/util/syncutil"
)

// Severity identifies the importance of a log message.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for messages that merit attention but are not errors.
	SeverityWarning
	// SeverityError is for errors.
	SeverityError
)

func (s Severity) prefix() byte {
	switch s {
	case SeverityWarning:
		return 'W'
	case SeverityError:
		return 'E'
	default:
		return 'I'
	}
}

var verbosity int32

var output struct {
	syncutil.Mutex
	w io.Writer
}

// SetVerbosity sets the global verbosity level for V and VEventf.
func SetVerbosity(level int32) {
	atomic.StoreInt32(&verbosity, level)
}

// SetOutput redirects log output, returning the previous writer. Used by
// tests to capture output.
func SetOutput(w io.Writer) io.Writer {
	output.Lock()
	defer output.Unlock()
	prev := output.w
	output.w = w
	return prev
}

// V returns whether the given verbosity level is enabled.
func V(level int32) bool {
	return atomic.LoadInt32(&verbosity) >= level
}

func logDepth(ctx context.Context, sev Severity, format string, args ...interface{}) {
	var tags string
	if b := logtags.FromContext(ctx); b != nil {
		tags = " [" + b.String() + "]"
	}
	msg := redact.Sprintf(format, args...).StripMarkers()
	line := fmt.Sprintf("%c%s%s %s\n",
		sev.prefix(), time.Now().UTC().Format("060102 15:04:05.000000"), tags, msg)
	output.Lock()
	defer output.Unlock()
	w := output.w
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprint(w, line)
}

// Infof logs an informational message.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, SeverityInfo, format, args...)
}

// Warningf logs a warning.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, SeverityWarning, format, args...)
}

// Errorf logs an error.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, SeverityError, format, args...)
}

// VEventf logs an informational message if the given verbosity level is
// enabled.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	if V(level) {
		logDepth(ctx, SeverityInfo, format, args...)
	}
}
