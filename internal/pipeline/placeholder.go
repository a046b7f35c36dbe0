// internal/pipeline/placeholder.go
package pipeline

import (
	"regexp"
	"strings"

	"salesforce-query-workers/internal/models"
)

type guardResult string

const (
	guardClean     guardResult = "clean"
	guardRewritten guardResult = "rewritten"
	guardRejected  guardResult = "rejected"
)

const idWord = `(?:current_?user_?id|user_?id|owner_?id)`

// placeholderPattern matches tokens that stand in for an unresolved user or
// owner identifier. Bare words need an underscore so that real field names
// such as OwnerId or Owner_Id__c are left alone.
var placeholderPattern = regexp.MustCompile(`(?i)` +
	`\$\{\s*` + idWord + `\s*\}` +
	`|[:$]` + idWord + `\b` +
	`|\b[a-z_]*(?:current_user(?:_id)?|user_id|owner_id)\b` +
	`|\$user\.id\b` +
	`|\buserinfo\s*\.\s*getuserid\b`)

// bracketToken matches template-style tokens such as {!$User.Id},
// [YOUR_USER_ID] or <your user id>. An angle token must start with a letter
// so that comparison operators are not mistaken for one.
var bracketToken = regexp.MustCompile(`(?i)\{[^{}\n]{0,40}\}|\[[^\[\]\n]{0,40}\]|<[a-z][^<>'=\n]{0,40}>`)

var bracketUserPhrase = regexp.MustCompile(`(?i)(?:user|owner)[\s_.-]*id|current[\s_-]*user`)

// ownerComparison matches the left side and operator of a filter on the
// record owner.
var ownerComparison = regexp.MustCompile(`(?i)\b(?:owner\.id|ownerid)\s*(?:=|!=|<>|\bnot\s+in\b|\bin\b)\s*`)

var whereTerminators = []string{"GROUP", "ORDER", "LIMIT", "OFFSET", "HAVING", "FOR", "WITH"}

func containsPlaceholder(s string) bool {
	if placeholderPattern.MatchString(s) {
		return true
	}
	for _, tok := range bracketToken.FindAllString(s, -1) {
		if bracketUserPhrase.MatchString(tok) {
			return true
		}
	}
	return false
}

// hasUnresolvedOwnerFilter reports whether s compares the owner with anything
// other than a quoted owner id, null or a subquery. ownerID is the literal
// the prompt offered, if any.
func hasUnresolvedOwnerFilter(s, ownerID string) bool {
	for _, loc := range ownerComparison.FindAllStringIndex(s, -1) {
		if !ownerValueResolved(s[loc[1]:], ownerID) {
			return true
		}
	}
	return false
}

func ownerValueResolved(rhs, ownerID string) bool {
	switch {
	case rhs == "":
		return false
	case rhs[0] == '\'':
		lit, ok := quotedLiteral(rhs)
		return ok && ownerLiteralResolved(lit, ownerID)
	case rhs[0] == '(':
		end := strings.IndexByte(rhs, ')')
		if end < 0 {
			return false
		}
		inner := strings.TrimSpace(rhs[1:end])
		if len(inner) >= 6 && strings.EqualFold(inner[:6], "SELECT") {
			return true
		}
		for _, item := range strings.Split(inner, ",") {
			lit, ok := quotedLiteral(strings.TrimSpace(item))
			if !ok || !ownerLiteralResolved(lit, ownerID) {
				return false
			}
		}
		return true
	}
	end := 0
	for end < len(rhs) && isWordByte(rhs[end]) {
		end++
	}
	return strings.EqualFold(rhs[:end], "null")
}

func ownerLiteralResolved(lit, ownerID string) bool {
	return (ownerID != "" && lit == ownerID) || models.IsOwnerID(lit)
}

// quotedLiteral returns the contents of the single-quoted literal at the
// start of s.
func quotedLiteral(s string) (string, bool) {
	if s == "" || s[0] != '\'' {
		return "", false
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '\'':
			return s[1:i], true
		}
	}
	return "", false
}

// stripCodeFences removes a surrounding Markdown fence and whitespace.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// guardOwnerPlaceholders drops WHERE conjuncts that reference a placeholder
// or filter the owner by anything but a literal id. The query is rejected if
// such a reference survives that rewrite.
func guardOwnerPlaceholders(soql, ownerID string) (string, guardResult) {
	unresolved := func(s string) bool {
		return containsPlaceholder(s) || hasUnresolvedOwnerFilter(s, ownerID)
	}
	if !unresolved(soql) {
		return soql, guardClean
	}

	rewritten := removeConjuncts(soql, unresolved)
	if rewritten == "" || unresolved(rewritten) {
		return "", guardRejected
	}
	return rewritten, guardRewritten
}

func removeConjuncts(soql string, drop func(string) bool) string {
	wherePos, _ := findTopLevel(soql, 0, "WHERE")
	if wherePos < 0 {
		return soql
	}

	clauseStart := wherePos + len("WHERE")
	clauseEnd, _ := findTopLevel(soql, clauseStart, whereTerminators...)
	if clauseEnd < 0 {
		clauseEnd = len(soql)
	}

	var kept []string
	for _, part := range splitTopLevelAnd(soql[clauseStart:clauseEnd]) {
		part = strings.TrimSpace(part)
		if part == "" || drop(part) {
			continue
		}
		kept = append(kept, part)
	}

	head := strings.TrimRight(soql[:wherePos], " \t\r\n")
	tail := strings.TrimLeft(soql[clauseEnd:], " \t\r\n")

	var b strings.Builder
	b.WriteString(head)
	if len(kept) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(kept, " AND "))
	}
	if tail != "" {
		b.WriteByte(' ')
		b.WriteString(tail)
	}
	return b.String()
}

func splitTopLevelAnd(clause string) []string {
	var parts []string
	rest := clause
	for {
		pos, _ := findTopLevel(rest, 0, "AND")
		if pos < 0 {
			return append(parts, rest)
		}
		parts = append(parts, rest[:pos])
		rest = rest[pos+len("AND"):]
	}
}

// findTopLevel returns the first keyword match at or after from that is
// outside string literals and parentheses and stands as a whole word.
func findTopLevel(s string, from int, keywords ...string) (int, string) {
	depth := 0
	inQuote := false
	for i := from; i < len(s); i++ {
		c := s[i]
		if inQuote {
			switch c {
			case '\\':
				i++
			case '\'':
				inQuote = false
			}
			continue
		}
		switch c {
		case '\'':
			inQuote = true
			continue
		case '(':
			depth++
			continue
		case ')':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth > 0 || (i > 0 && isWordByte(s[i-1])) {
			continue
		}
		for _, kw := range keywords {
			end := i + len(kw)
			if end <= len(s) && strings.EqualFold(s[i:end], kw) && (end == len(s) || !isWordByte(s[end])) {
				return i, kw
			}
		}
	}
	return -1, ""
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == ':' || c == '$' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
