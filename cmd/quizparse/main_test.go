package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const raw = "Here you go:\n{'1': {'question': 'What's 2 + 2?', 'options': {'A': '3', 'B': '4'}, 'correct': 'B', 'reason': 'Basic sums.'}}\n"

func TestRunFromStdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-verbose"}, strings.NewReader(raw), &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.JSONEq(t, `{"1": {"question": "What's 2 + 2?", "options": {"A": "3", "B": "4"}, "correct": "B", "reason": "Basic sums."}}`, stdout.String())
	assert.Contains(t, stderr.String(), "Recovered 1 records, dropped 0 blocks")
}

func TestRunQuestionsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.txt")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-input", path, "-questions"}, strings.NewReader(""), &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.JSONEq(t, `[{"id": "1", "question": "What's 2 + 2?", "options": {"A": "3", "B": "4"}, "correct": "B", "reason": "Basic sums."}]`, stdout.String())
}

type brokenPipe struct{}

func (brokenPipe) Read([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestRunErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-input", filepath.Join(t.TempDir(), "missing.txt")}, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "cannot read input file")

	stderr.Reset()
	assert.Equal(t, 1, run(nil, brokenPipe{}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Error recovering records")

	assert.Equal(t, 2, run([]string{"-nope"}, nil, &stdout, &stderr))
}
