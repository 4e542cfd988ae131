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

package types

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Status is the outcome carried by an Envelope.
type Status int

const (
	StatusSuccess Status = iota
	StatusError
)

var _ BaseEnum = StatusSuccess

func (s Status) IsValid() bool { return s == StatusSuccess || s == StatusError }

func (s Status) Number() int {
	if !s.IsValid() {
		return IllegalValue
	}
	return int(s)
}

func (s Status) String() string { return s.Name() }

func (s Status) Name() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return IllegalName
	}
}

func (s Status) Desc() string {
	switch s {
	case StatusSuccess:
		return "the call completed"
	case StatusError:
		return "the call failed, see error"
	default:
		return IllegalDesc
	}
}

func (s Status) MarshalJSON() ([]byte, error) { return json.Marshal(s.Name()) }

func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	v, ok := LookupEnum(name, StatusSuccess, StatusError)
	if !ok {
		return errors.New("invalid envelope status: " + name)
	}
	*s = v
	return nil
}

// CodeSymbol is a symbolic response code resolved through a fixed table.
type CodeSymbol string

const (
	BadEntry      CodeSymbol = "BAD_ENTRY"
	NotAuthorized CodeSymbol = "NOT_AUTHORIZED"
	ServerError   CodeSymbol = "ERROR"
	Forbidden     CodeSymbol = "FORBIDDEN"
	NotFound      CodeSymbol = "NOT_FOUND"
)

var codeTable = map[CodeSymbol]int{
	BadEntry:      http.StatusBadRequest,
	NotAuthorized: http.StatusUnauthorized,
	ServerError:   http.StatusInternalServerError,
	Forbidden:     http.StatusForbidden,
	NotFound:      http.StatusNotFound,
}

// Code returns the numeric code of the symbol, false if the symbol is unknown.
func (c CodeSymbol) Code() (int, bool) {
	code, ok := codeTable[c]
	return code, ok
}

// Envelope is the uniform result of every data-access call. Status is
// StatusSuccess exactly when Error is nil.
type Envelope[T any] struct {
	Status  Status
	Code    int
	Message string
	Output  T
	Error   error
}

type envelopeMeta struct {
	message string
	code    int
	symbol  CodeSymbol
	numeric bool
}

// Option customises the message or code of an Envelope.
type Option func(*envelopeMeta)

// WithMessage sets the human readable message.
func WithMessage(msg string) Option {
	return func(m *envelopeMeta) { m.message = msg }
}

// WithCode sets a literal numeric code, overriding the symbolic table.
func WithCode(code int) Option {
	return func(m *envelopeMeta) {
		m.code = code
		m.numeric = true
		m.symbol = ""
	}
}

// WithSymbol sets a symbolic code such as NotFound.
func WithSymbol(sym CodeSymbol) Option {
	return func(m *envelopeMeta) {
		m.symbol = sym
		m.numeric = false
	}
}

func buildMeta(fallback int, opts []Option) envelopeMeta {
	m := envelopeMeta{}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	switch {
	case m.numeric:
	case m.symbol != "":
		if code, ok := m.symbol.Code(); ok {
			m.code = code
		} else {
			m.code = fallback
		}
	default:
		m.code = fallback
	}
	return m
}

// Success builds a success envelope; the code defaults to 200.
func Success[T any](output T, opts ...Option) Envelope[T] {
	m := buildMeta(http.StatusOK, opts)
	return Envelope[T]{
		Status:  StatusSuccess,
		Code:    m.code,
		Message: m.message,
		Output:  output,
	}
}

// Failure builds an error envelope; the code defaults to 500. A nil err is
// replaced by an error carrying the message so that Status and Error agree.
func Failure[T any](err error, opts ...Option) Envelope[T] {
	m := buildMeta(http.StatusInternalServerError, opts)
	if err == nil {
		msg := m.message
		if msg == "" {
			msg = "error"
		}
		err = errors.New(msg)
	}
	if m.message == "" {
		m.message = err.Error()
	}
	return Envelope[T]{
		Status:  StatusError,
		Code:    m.code,
		Message: m.message,
		Error:   err,
	}
}

// Ok reports whether the envelope carries a success.
func (e Envelope[T]) Ok() bool { return e.Error == nil }

// Failed reports whether the envelope carries an error.
func (e Envelope[T]) Failed() bool { return e.Error != nil }

// WithOutput returns a copy of the envelope carrying v.
func (e Envelope[T]) WithOutput(v T) Envelope[T] {
	e.Output = v
	return e
}

// Unwrap splits the envelope back into a Go result pair.
func (e Envelope[T]) Unwrap() (T, error) { return e.Output, e.Error }

type envelopeJSON[T any] struct {
	Status  Status `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Output  *T     `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (e Envelope[T]) MarshalJSON() ([]byte, error) {
	out := envelopeJSON[T]{Status: e.Status, Code: e.Code, Message: e.Message}
	if e.Error != nil {
		out.Error = e.Error.Error()
	} else {
		out.Output = &e.Output
	}
	return json.Marshal(out)
}
