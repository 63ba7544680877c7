// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeProviderAPIFailure            Code = "provider.api.failure"
	CodeProviderNetworkFailure        Code = "provider.network.failure"
	CodeProviderRequestInvalid        Code = "provider.request.invalid"
	CodeProviderResponseInvalid       Code = "provider.response.invalid"
	CodeProviderAuthUnauthorized      Code = "provider.auth.unauthorized"
	CodeProviderRateLimited           Code = "provider.ratelimit.exceeded"
	CodeProviderProtocolViolation     Code = "provider.stream.protocol_violation"
	CodeProviderToolsUnsupported      Code = "provider.capability.tools_unsupported"
	CodeProviderCachingUnsupported    Code = "provider.capability.caching_unsupported"
	CodeProviderCompactionUnsupported Code = "provider.capability.compaction_unsupported"

	CodeLoopChannelClosed Code = "loop.channel.closed"
	CodeLoopCancelled     Code = "loop.cancelled"

	CodeAgentLoopDetected      Code = "agent.loop.repetition_detected"
	CodeAgentMaxRoundsExceeded Code = "agent.loop.budget_exceeded"
	CodeAgentLoopFailure       Code = "agent.loop.failure"

	CodeToolDuplicateRegistration Code = "tool.registry.duplicate"
	CodeToolInputInvalid          Code = "tool.input.invalid_value"
	CodeToolExecutionFailure      Code = "tool.execution.failure"

	CodeConfigLoadReadFailure Code = "config.load.read.failure"
	CodeConfigInvalidValue    Code = "config.validate.invalid_value"

	CodeSecretsKeyringFailure Code = "secrets.keyring.failure"

	CodeServerRequestInvalid Code = "server.request.invalid"
	CodeServerStartFailure   Code = "server.start.failure"

	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func FieldTool(value string) Attr {
	return Field("tool", value)
}

func FieldToolCallID(value string) Attr {
	return Field("tool_call_id", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeAgentLoopFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsRateLimited(err error) bool {
	return HasCode(err, CodeProviderRateLimited)
}

func IsUnauthorized(err error) bool {
	return reason(CodeOf(err)) == "unauthorized"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_value" || r == "invalid_format"
}

func IsUnsupported(err error) bool {
	return strings.HasSuffix(string(CodeOf(err)), "_unsupported")
}

func IsLoopClosed(err error) bool {
	return HasCode(err, CodeLoopChannelClosed)
}

func Join(errs ...error) error {
	return oops.Code(CodeAgentLoopFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
