package listing

import "strings"

// MatchExpression turns free text into an FTS5 MATCH expression. Every
// term is quoted so FTS5 operators in user input are taken literally, and
// the last term becomes a prefix query. Blank input yields "".
func MatchExpression(search string) string {
	words := strings.Fields(search)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		terms = append(terms, `"`+w+`"`)
	}
	if len(terms) == 0 {
		return ""
	}
	terms[len(terms)-1] += "*"
	return strings.Join(terms, " ")
}
