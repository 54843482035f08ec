// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package jack

import (
	"strings"
	"unicode/utf8"
)

const headerKeyPrefix = "http"

// HeaderKey maps a raw HTTP header name to the key it is stored under
// in an [Env]. The name is split on every ASCII character that is not a
// letter or digit and each segment is PascalCased before being prefixed
// with "http". Non-ASCII bytes are kept as is inside their segment.
//
//	Content-Type -> httpContentType
//	X-REQUEST-ID -> httpXRequestId
//
// HeaderKey is not injective, e.g. "X-Foo" and "X_Foo" both map to
// "httpXFoo".
func HeaderKey(name string) string {
	var sb strings.Builder
	sb.Grow(len(headerKeyPrefix) + len(name))
	sb.WriteString(headerKeyPrefix)

	start := true
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < utf8.RuneSelf && !isAlnum(c) {
			start = true
			continue
		}
		if start {
			sb.WriteByte(toUpper(c))
			start = false
			continue
		}
		sb.WriteByte(toLower(c))
	}
	return sb.String()
}

func isAlnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

func toUpper(c byte) byte {
	if 'a' <= c && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

func toLower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
