package main

import (
	"bytes"
	"flag"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_Positional(t *testing.T) {
	args, err := parseArgs([]string{"machine learning", "guardian_content"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "config.yaml", args.configPath)
	assert.Equal(t, "machine learning", args.query.Term)
	assert.Equal(t, "guardian_content", args.correlationID)
	assert.Nil(t, args.query.DateFrom)
	assert.False(t, args.query.ExactMatch)
}

func TestParseArgs_ShortFlags(t *testing.T) {
	args, err := parseArgs([]string{"-d", "2023-01-01", "-e", "machine learning", "guardian_content"}, io.Discard)
	require.NoError(t, err)

	require.NotNil(t, args.query.DateFrom)
	assert.Equal(t, "2023-01-01", *args.query.DateFrom)
	assert.True(t, args.query.ExactMatch)
}

func TestParseArgs_LongFlags(t *testing.T) {
	args, err := parseArgs([]string{"--date_from=2024-02-01", "--exact_match", "-config", "dev.yaml", "ai", "id-1"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "dev.yaml", args.configPath)
	assert.Equal(t, "2024-02-01", *args.query.DateFrom)
	assert.True(t, args.query.ExactMatch)
	assert.Equal(t, "id-1", args.correlationID)
}

func TestParseArgs_WrongArity(t *testing.T) {
	_, err := parseArgs([]string{"only-term"}, io.Discard)
	assert.ErrorContains(t, err, "expected 2 positional arguments")

	_, err = parseArgs([]string{"", "id"}, io.Discard)
	assert.ErrorContains(t, err, "search term must not be empty")
}

func TestParseArgs_Help(t *testing.T) {
	_, err := parseArgs([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestParseArgs_FlagsAfterPositionals(t *testing.T) {
	args, err := parseArgs([]string{"machine learning", "guardian_content", "-e", "-d", "2023-01-01"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "machine learning", args.query.Term)
	assert.Equal(t, "guardian_content", args.correlationID)
	assert.True(t, args.query.ExactMatch)
	require.NotNil(t, args.query.DateFrom)
	assert.Equal(t, "2023-01-01", *args.query.DateFrom)
}

func TestParseArgs_FlagsBetweenPositionals(t *testing.T) {
	args, err := parseArgs([]string{"-e", "ai", "--date_from=2024-02-01", "id-1", "-config", "dev.yaml"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "ai", args.query.Term)
	assert.Equal(t, "id-1", args.correlationID)
	assert.Equal(t, "dev.yaml", args.configPath)
	assert.Equal(t, "2024-02-01", *args.query.DateFrom)
	assert.True(t, args.query.ExactMatch)
}

func TestParseArgs_Terminator(t *testing.T) {
	args, err := parseArgs([]string{"-e", "--", "-d", "id-1"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "-d", args.query.Term)
	assert.Equal(t, "id-1", args.correlationID)
	assert.Nil(t, args.query.DateFrom)
	assert.True(t, args.query.ExactMatch)
}

func TestParseArgs_TooManyWithTrailingFlags(t *testing.T) {
	_, err := parseArgs([]string{"a", "b", "-e", "c"}, io.Discard)
	assert.ErrorContains(t, err, "expected 2 positional arguments, got 3")
}

func TestRun_UsageErrorExitsTwo(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"only-term"}, &stdout, &stderr)

	assert.Equal(t, 2, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "usage: relay")
	assert.Contains(t, stderr.String(), "expected 2 positional arguments")
}

func TestRun_HelpExitsZero(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"-h"}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "usage: relay")
}

func TestRun_ConfigErrorLogsToStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	code := run([]string{"-config", missing, "ai", "id-1"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), `"level":"ERROR"`)
	assert.Contains(t, stderr.String(), `"msg":"failed to load config"`)
}

func TestSetupLogger_WritesToGivenStream(t *testing.T) {
	var buf bytes.Buffer

	setupLogger("warn", &buf).Info("hidden")
	setupLogger("warn", &buf).Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
