package matcher

import "fmt"

// BuildError is returned from New when compiling a MatcherConfig fails. It
// always identifies the offending node so the caller cannot partially use a
// failed compilation.
type BuildError struct {
	Code string // UnknownAccessor, NotValidIdOrName, NotUniqueName, ParseOperator, ConfigurationError
	Node string // filter or ruleset name, possibly qualified with a rule name
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s at %q: %v", e.Code, e.Node, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

func newBuildError(code, node string, err error) *BuildError {
	return &BuildError{Code: code, Node: node, Err: err}
}
