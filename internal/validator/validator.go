// Package validator enforces the identifier and uniqueness rules the
// configuration compiler applies during Matcher.New.
package validator

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IDValidator validates rule, filter, and extracted-variable identifiers
// against the shared identifier grammar.
type IDValidator struct{}

// NewIDValidator builds an IDValidator.
func NewIDValidator() *IDValidator {
	return &IDValidator{}
}

// ValidateIdentifier checks that name matches ^[a-zA-Z_][a-zA-Z0-9_]*$.
// kind labels the identifier in error messages ("rule", "filter", ...).
func (v *IDValidator) ValidateIdentifier(name, kind string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("not a valid id or name: %s name %q does not match %s", kind, name, identifierPattern.String())
	}
	return nil
}

// ValidateUniqueRuleNames reports an error naming the first duplicate found
// in names, preserving the declaration order of a Ruleset's rules.
func (v *IDValidator) ValidateUniqueRuleNames(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("not a unique name: rule name %q is declared more than once", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// ValidateExtractedVarName validates the "<id>" portion of a
// "_variables.<id>" accessor expression, annotating the error with the
// accessor text and owning rule/filter for diagnostics.
func (v *IDValidator) ValidateExtractedVarName(id, fullAccessor, ruleOrFilterName string) error {
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("not a valid id or name: extracted variable %q in accessor %q for rule %q does not match %s",
			id, fullAccessor, ruleOrFilterName, identifierPattern.String())
	}
	return nil
}
