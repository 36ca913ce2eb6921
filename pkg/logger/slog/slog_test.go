package slog_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	rawslog "log/slog"

	"github.com/stretchr/testify/require"
	"github.com/surrealdb/recordcodec/pkg/logger/slog"
)

type testMethod struct {
	fn    func(msg string, args ...any)
	level rawslog.Level
}

var (
	LogText         = "Test Log Value"
	CustomFieldName = "SomeKey"
	CustomFieldVal  = "SomeVal"
)

type testLogJSON struct {
	Time      time.Time `json:"time"`
	Level     string    `json:"level"`
	Msg       string    `json:"msg"`
	CustomVal any       `json:"SomeKey"`
	Component string    `json:"component"`
}

func TestLogger(t *testing.T) {
	buffer := bytes.NewBuffer([]byte{})

	// level needs to be set to debug for log all
	handler := rawslog.NewJSONHandler(buffer, &rawslog.HandlerOptions{Level: rawslog.LevelDebug})
	logger := slog.New(handler).With("component", "textcodec")

	testMethods := []testMethod{
		{fn: logger.Error, level: rawslog.LevelError},
		{fn: logger.Warn, level: rawslog.LevelWarn},
		{fn: logger.Info, level: rawslog.LevelInfo},
		{fn: logger.Debug, level: rawslog.LevelDebug},
	}

	for _, v := range testMethods {
		t.Run(fmt.Sprintf("testing %s", v.level.String()), func(t *testing.T) {
			buffer.Reset()
			checkMethod(t, v.fn, buffer, v.level.String())
		})
	}
}

func checkMethod(t *testing.T, loggerFunc func(msg string, args ...any), buffer *bytes.Buffer, levelStr string) {
	t.Helper()
	require.Equal(t, 0, buffer.Len())

	loggerFunc(LogText, CustomFieldName, CustomFieldVal)

	testLogJSONVal := new(testLogJSON)
	err := json.Unmarshal(buffer.Bytes(), testLogJSONVal)
	require.NoError(t, err)

	require.Equal(t, levelStr, testLogJSONVal.Level)
	require.Equal(t, LogText, testLogJSONVal.Msg)
	require.Equal(t, CustomFieldVal, testLogJSONVal.CustomVal)
	require.Equal(t, "textcodec", testLogJSONVal.Component)
}
