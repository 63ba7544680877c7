// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package openai

// Internal hooks for white-box tests in openai_test.
var (
	ConvertMessages   = convertMessages
	ConvertTools      = convertTools
	MapFinishReason   = mapFinishReason
	DecodeCompactItem = decodeCompactItem
)
