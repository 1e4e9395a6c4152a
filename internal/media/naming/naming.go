// Package naming allocates storage filenames that are independent of the
// names users upload with.
package naming

import (
	"crypto/rand"
	"path"
	"strings"
	"time"
)

const (
	timestampLayout = "20060102150405"
	suffixLength    = 10
	alphabet        = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Allocate returns "<timestamp>-<random>[.ext]". Only the extension of
// original is kept.
func Allocate(original string) string {
	return allocate(time.Now(), original)
}

func allocate(now time.Time, original string) string {
	var b strings.Builder
	b.Grow(len(timestampLayout) + 1 + suffixLength + 8)
	b.WriteString(now.Format(timestampLayout))
	b.WriteByte('-')
	b.WriteString(randomSuffix(suffixLength))
	b.WriteString(Ext(original))
	return b.String()
}

// Ext returns the extension of name, ignoring any directory part.
func Ext(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return path.Ext(path.Base(name))
}

// Base strips the extension from an allocated filename.
func Base(name string) string {
	return strings.TrimSuffix(name, Ext(name))
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is unusable.
		panic("naming: read random: " + err.Error())
	}
	// 252 is the largest multiple of 36 below 256; rejecting bytes above it keeps
	// the distribution uniform.
	out := make([]byte, 0, n)
	for len(out) < n {
		for _, c := range buf {
			if c >= 252 {
				continue
			}
			out = append(out, alphabet[int(c)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
		if len(out) < n {
			if _, err := rand.Read(buf); err != nil {
				panic("naming: read random: " + err.Error())
			}
		}
	}
	return string(out)
}
