// Package errors provides diagnostics for the rule-language front end.
//
// Lexical and syntax errors are fatal for one source file and are returned
// as a single *Error. Semantic errors are accumulated in an *ErrorList so a
// file reports every problem at once.
//
//	policy, err := parser.ParseSource(src, "policies/sec.dsl")
//	var dslErr *errors.Error
//	if stderrors.As(err, &dslErr) {
//	    fmt.Print(errors.WithContext(dslErr, src).Format())
//	}
package errors
