// SPDX-License-Identifier: MIT

package log

import "strings"

// sensitiveKeys are field names whose values must never reach a log sink.
var sensitiveKeys = map[string]struct{}{
	"api_key":       {},
	"key_hash":      {},
	"password":      {},
	"secret":        {},
	"token":         {},
	"authorization": {},
}

// RedactedValue replaces sensitive values in structured records.
const RedactedValue = "[REDACTED]"

// IsSensitiveKey reports whether the given field name carries a credential.
func IsSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// Redact returns a copy of fields with sensitive values masked. The input map
// is not modified.
func Redact(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsSensitiveKey(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = v
	}
	return out
}
