package shell

import "strings"

// ParseLine splits a raw command line into name and arguments. Tokens are
// whitespace-separated; double quotes group words and are stripped. An
// empty or all-whitespace line yields an empty name.
func ParseLine(line string) (name string, args []string) {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	hasToken := false

	flush := func() {
		if hasToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			hasToken = false
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			hasToken = true
		case !inQuote && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
			hasToken = true
		}
	}
	flush()

	if len(tokens) == 0 {
		return "", nil
	}
	return tokens[0], tokens[1:]
}
