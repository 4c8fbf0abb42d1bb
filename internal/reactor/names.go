package reactor

import (
	"go/token"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Camel converts "blog_post", "blog-post" or "blogPost" to "BlogPost"
func Camel(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			upper = true
		case upper:
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LowerCamel converts a name to "blogPost"
func LowerCamel(name string) string {
	camel := Camel(name)
	if camel == "" {
		return ""
	}
	runes := []rune(camel)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// Snake converts "BlogPost", "blogPost" or "UserID" to "blog_post" and "user_id"
func Snake(name string) string {
	runes := []rune(Camel(name))
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Plural returns the lower camel plural of name, e.g. "user" -> "users"
func Plural(name string) string {
	return inflection.Plural(LowerCamel(name))
}

// validName reports whether name converts to an exported identifier
func validName(name string) bool {
	camel := Camel(name)
	return camel != "" && token.IsIdentifier(camel) && token.IsExported(camel)
}
