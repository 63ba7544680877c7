// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package gemini

// Internal hooks for white-box tests in gemini_test.
var (
	ConvertMessages = convertMessages
	ConvertTools    = convertTools
	MapFinishReason = mapFinishReason
)
