// Package s3path provides pure helpers for working with S3 URIs and
// shell-style glob patterns over the object namespace.
package s3path

import (
	"fmt"
	"regexp"
	"strings"
)

// Schemes accepted as S3 URIs. s3n and s3a are the legacy Hadoop spellings
// and address the same namespace as s3.
var s3Schemes = map[string]bool{
	"s3":  true,
	"s3n": true,
	"s3a": true,
}

var uriRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// IsURI reports whether path looks like a URI (has a scheme:// prefix).
func IsURI(path string) bool {
	return uriRE.MatchString(path)
}

// IsS3URI reports whether path is an S3 URI (s3://, s3n://, or s3a://).
func IsS3URI(path string) bool {
	return s3Schemes[Scheme(path)]
}

// Scheme returns the URI scheme of path, or "" if path is not a URI.
func Scheme(path string) string {
	i := strings.Index(path, "://")
	if i < 0 || !uriRE.MatchString(path) {
		return ""
	}
	return path[:i]
}

// Parse splits an S3 URI into bucket and key. The key may be empty (bucket
// root). Returns an error for non-S3 URIs or URIs without a bucket.
func Parse(uri string) (bucket, key string, err error) {
	if !IsS3URI(uri) {
		return "", "", fmt.Errorf("not an S3 URI: %q", uri)
	}
	rest := uri[len(Scheme(uri))+len("://"):]
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("S3 URI has no bucket: %q", uri)
	}
	return bucket, key, nil
}

// JoinURI reconstructs an object URI from its parts.
func JoinURI(scheme, bucket, key string) string {
	return scheme + "://" + bucket + "/" + key
}

// HasGlob reports whether pattern contains any glob wildcard.
func HasGlob(pattern string) bool {
	return strings.IndexAny(pattern, "*?[") >= 0
}

// GlobPrefix returns the literal portion of pattern before the first
// wildcard character. Patterns without wildcards are returned unchanged, so
// an exact path degenerates to a one-prefix scan.
func GlobPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// Match reports whether name matches pattern, case-sensitively. Unlike
// path.Match, both ? and * match the path separator, so a single * spans
// "directory" levels. [...] character classes are supported, with [!...]
// negation.
func Match(pattern, name string) bool {
	re, err := translate(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// translate compiles a glob pattern to an anchored regular expression.
func translate(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == '!' {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				// unterminated class matches a literal bracket
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i+1 : j]
			class = strings.ReplaceAll(class, `\`, `\\`)
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			} else if strings.HasPrefix(class, "^") {
				class = `\` + class
			}
			b.WriteString("[" + class + "]")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString(`$`)
	return regexp.Compile(b.String())
}
