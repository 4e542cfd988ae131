/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logrus.Level{
		"debug": logrus.DebugLevel, " WARN ": logrus.WarnLevel, "warning": logrus.WarnLevel,
		"error": logrus.ErrorLevel, "": logrus.InfoLevel, "bogus": logrus.InfoLevel,
	} {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	ConfigureConsoleOutput(&buf)
	ConfigureConsoleLogFormat("json")
	defer func() {
		ConfigureConsoleOutput(nil)
		ConfigureConsoleLogFormat("text")
	}()

	l := NewLogger("JSONTEST")
	l.WithFields(logrus.Fields{"entity": "user", "error": errors.New("boom")}).Warn("lookup failed")

	var rec jsonLogRecord
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if rec.Level != "warning" || rec.Model != "JSONTEST" || rec.Message != "lookup failed" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Fields["entity"] != "user" || rec.Fields["error"] != "boom" {
		t.Errorf("fields = %v", rec.Fields)
	}
}

func TestTextLoggerLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	ConfigureConsoleOutput(&buf)
	defer ConfigureConsoleOutput(nil)

	l := NewLogger("TEXTTEST")
	if !SetLoggerLevel("TEXTTEST", "warn") {
		t.Fatal("logger was not registered")
	}
	l.Info("hidden")
	l.WithField("b", 2).WithField("a", 1).Error("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, "shown a=1 b=2") {
		t.Errorf("fields missing or unsorted: %s", out)
	}
	if GetLogger("TEXTTEST") != l {
		t.Error("GetLogger should return the registered instance")
	}
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("QUARRY_TEST_BOOL", "true")
	t.Setenv("QUARRY_TEST_BAD_BOOL", "maybe")
	t.Setenv("QUARRY_TEST_DURATION", "3")
	t.Setenv("QUARRY_TEST_DURATION_GO", "250ms")

	if !EnvDefaultBool("QUARRY_TEST_BOOL", false) || !EnvDefaultBool("QUARRY_TEST_BAD_BOOL", true) {
		t.Error("EnvDefaultBool")
	}
	if EnvDefaultString("QUARRY_TEST_UNSET", "x") != "x" {
		t.Error("EnvDefaultString")
	}
	if EnvDefaultDuration("QUARRY_TEST_DURATION", 0) != 3*time.Second {
		t.Error("EnvDefaultDuration seconds")
	}
	if EnvDefaultDuration("QUARRY_TEST_DURATION_GO", 0) != 250*time.Millisecond {
		t.Error("EnvDefaultDuration go syntax")
	}
}
