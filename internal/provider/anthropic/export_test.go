// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package anthropic

// Internal hooks for white-box tests in anthropic_test.
var (
	ConvertMessages = convertMessages
	ConvertTools    = convertTools
	ExtractSchema   = extractSchema
	MapStopReason   = mapStopReason
)
