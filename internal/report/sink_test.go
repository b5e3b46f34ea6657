package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpd-go/xpd/internal/lexer"
)

func newTestSink() (*LogrusSink, *bytes.Buffer, *int) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})

	exitCode := -1
	sink := NewLogrusSink(logger)
	sink.Exit = func(code int) { exitCode = code }
	return sink, &buf, &exitCode
}

func TestReportWarningDoesNotExit(t *testing.T) {
	sink, buf, exitCode := newTestSink()
	sink.Report(Warning, nil, "macro %q redefined", "M")

	assert.Equal(t, -1, *exitCode)
	// The text formatter quotes the message with %q, escaping inner quotes.
	assert.Contains(t, buf.String(), `macro \"M\" redefined`)
}

func TestReportErrorCallsExit(t *testing.T) {
	sink, buf, exitCode := newTestSink()
	sink.Report(Error, nil, "boom")

	assert.Equal(t, 1, *exitCode)
	assert.Contains(t, buf.String(), "boom")
}

func TestReportSortsAndDedupesPositions(t *testing.T) {
	sink, buf, _ := newTestSink()
	a := lexer.NoFilePosition(5)
	b := lexer.NoFilePosition(2)
	c := lexer.NoFilePosition(2) // duplicate of b
	sink.Report(Warning, []lexer.Position{a, b, c}, "dup test")

	out := buf.String()
	require.Contains(t, out, "dup test")
	// line 2 must be mentioned before line 5 despite input order, and only
	// once despite appearing twice.
	assert.Less(t, strings.Index(out, "line 2"), strings.Index(out, "line 5"))
	assert.Equal(t, 1, strings.Count(out, "line 2"))
}

func TestReportOrderedPreservesCallOrder(t *testing.T) {
	sink, buf, exitCode := newTestSink()
	a := lexer.NoFilePosition(9)
	b := lexer.NoFilePosition(1)
	sink.ReportOrdered(Error, []lexer.Position{a, b}, "infinite recursion?")

	assert.Equal(t, 1, *exitCode)
	out := buf.String()
	// 9 must appear before 1, the reverse of sorted order, proving no sort
	// happened.
	assert.Less(t, strings.Index(out, "line 9"), strings.Index(out, "line 1"))
}

func TestSkipInfoSuppressesInfoReports(t *testing.T) {
	sink, buf, exitCode := newTestSink()
	sink.SkipInfo = true
	sink.Report(Info, nil, "should not appear")

	assert.Equal(t, -1, *exitCode)
	assert.Empty(t, buf.String())
}
