package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type LoggerTest struct {
	suite.Suite
	buf bytes.Buffer
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func (t *LoggerTest) SetupTest() {
	t.buf.Reset()
	require.NoError(t.T(), SetOutput(&t.buf, "text"))
}

func (t *LoggerTest) TearDownTest() {
	SetLogLevel(LevelInfo)
	_ = SetOutput(os.Stdout, "text")
}

// outputPerFunction runs every logging function once at the given level and
// returns what each of them wrote.
func (t *LoggerTest) outputPerFunction(level string) []string {
	SetLogLevel(level)
	functions := []func(){
		func() { Tracef("www.traceExample.com") },
		func() { Debugf("www.debugExample.com") },
		func() { Infof("www.infoExample.com") },
		func() { Warnf("www.warningExample.com") },
		func() { Errorf("www.errorExample.com") },
	}

	var output []string
	for _, f := range functions {
		f()
		output = append(output, t.buf.String())
		t.buf.Reset()
	}
	return output
}

func (t *LoggerTest) TestTextFormatAtEachSeverity() {
	tests := []struct {
		level    string
		expected []bool // trace, debug, info, warning, error
	}{
		{LevelTrace, []bool{true, true, true, true, true}},
		{LevelDebug, []bool{false, true, true, true, true}},
		{LevelInfo, []bool{false, false, true, true, true}},
		{LevelWarning, []bool{false, false, false, true, true}},
		{LevelError, []bool{false, false, false, false, true}},
		{LevelOff, []bool{false, false, false, false, false}},
	}

	for _, tc := range tests {
		t.Run(tc.level, func() {
			output := t.outputPerFunction(tc.level)
			for i, want := range tc.expected {
				assert.Equal(t.T(), want, output[i] != "", "function %d at level %s", i, tc.level)
			}
		})
	}
}

func (t *LoggerTest) TestSeverityNames() {
	output := t.outputPerFunction(LevelTrace)

	assert.Regexp(t.T(), `severity=TRACE message=www.traceExample.com`, output[0])
	assert.Regexp(t.T(), `severity=DEBUG message=www.debugExample.com`, output[1])
	assert.Regexp(t.T(), `severity=INFO message=www.infoExample.com`, output[2])
	assert.Regexp(t.T(), `severity=WARNING message=www.warningExample.com`, output[3])
	assert.Regexp(t.T(), `severity=ERROR message=www.errorExample.com`, output[4])
}

func (t *LoggerTest) TestJSONFormat() {
	require.NoError(t.T(), SetLogFormat("json"))
	SetLogLevel(LevelInfo)

	Infof("pool %s started with %d workers", "p1", 4)

	assert.Regexp(t.T(), `"severity":"INFO","message":"pool p1 started with 4 workers"`, t.buf.String())
}

func (t *LoggerTest) TestUnsupportedFormat() {
	err := SetOutput(&t.buf, "xml")

	assert.Error(t.T(), err)
}

func (t *LoggerTest) TestInitLogFile() {
	path := filepath.Join(t.T().TempDir(), "pool.log")

	require.NoError(t.T(), InitLogFile(path, "json", DefaultRotateConfig()))
	SetLogLevel(LevelInfo)
	Infof("written to file")
	require.NoError(t.T(), Close())

	data, err := os.ReadFile(path)
	require.NoError(t.T(), err)
	assert.Contains(t.T(), string(data), `"message":"written to file"`)
}

func (t *LoggerTest) TestInitLogFileUnwritablePath() {
	err := InitLogFile(filepath.Join(t.T().TempDir(), "missing", "pool.log"), "text", DefaultRotateConfig())

	assert.Error(t.T(), err)
}
