package accessor

import (
	"fmt"
	"strings"
)

// parsePayloadPath splits the portion of an accessor expression that follows
// "event.payload" into path segments:
//
//   - a segment is a maximal run of non-dot characters, or a double-quoted
//     run whose content may itself contain dots;
//   - a leading dot is ignored;
//   - a trailing dot is ignored (no empty final segment);
//   - consecutive dots yield an empty segment, which is legal;
//   - an unbalanced or embedded quote is an error.
//   - a trailing "[<n>]" on a segment is preserved for array indexing, which
//     lookupPath interprets at evaluation time.
func parsePayloadPath(raw, fullAccessor, ruleOrFilterName string) ([]string, error) {
	s := strings.TrimPrefix(raw, ".")
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return nil, nil
	}

	var keys []string
	var cur strings.Builder
	inQuotes := false
	quoteCount := 0

	flush := func() error {
		seg := cur.String()
		cur.Reset()

		// A trailing "[n]" belongs to splitIndex, evaluated later; strip it
		// off before checking quote balance, then reattach it.
		body, bracket := seg, ""
		if open := strings.LastIndexByte(seg, '['); open != -1 && strings.HasSuffix(seg, "]") {
			body, bracket = seg[:open], seg[open:]
		}

		switch {
		case quoteCount == 0:
			// no quotes in this segment, nothing further to check
		case quoteCount == 2 && strings.HasPrefix(body, `"`) && strings.HasSuffix(body, `"`) && len(body) >= 2:
			body = body[1 : len(body)-1]
		default:
			return ErrNotValidIdOrName(fmt.Sprintf(
				"unbalanced or embedded quote in payload key %q from accessor %q for rule %q",
				raw, fullAccessor, ruleOrFilterName))
		}
		keys = append(keys, body+bracket)
		quoteCount = 0
		return nil
	}

	for _, r := range s {
		switch {
		case r == '"':
			quoteCount++
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == '.' && !inQuotes:
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			cur.WriteRune(r)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if inQuotes {
		return nil, ErrNotValidIdOrName(fmt.Sprintf(
			"unbalanced quote in payload key %q from accessor %q for rule %q",
			raw, fullAccessor, ruleOrFilterName))
	}
	return keys, nil
}
