// Package check implements the independent compliance checkers. Every
// checker turns what it finds into violations; none of them returns an error
// for a problem with the submission itself.
package check

import (
	"fmt"

	"github.com/phobologic/subcheck/internal/model"
	"github.com/phobologic/subcheck/internal/rules"
)

// safeCalls may always be called in allow mode.
var safeCalls = map[string]struct{}{
	"main": {},
}

// expressionMacros are standard header macros that the preprocessor expands
// to plain arithmetic on their argument, never to a library call. They are
// safe in allow mode wherever the header itself may be included.
var expressionMacros = map[string]struct{}{
	// <sys/wait.h>
	"WIFEXITED": {}, "WEXITSTATUS": {}, "WIFSIGNALED": {}, "WTERMSIG": {},
	"WIFSTOPPED": {}, "WSTOPSIG": {}, "WIFCONTINUED": {}, "WCOREDUMP": {},
	// <sys/stat.h>
	"S_ISREG": {}, "S_ISDIR": {}, "S_ISCHR": {}, "S_ISBLK": {},
	"S_ISFIFO": {}, "S_ISLNK": {}, "S_ISSOCK": {},
}

// ForbiddenCalls classifies call sites against policy. In allow mode, names
// the project defines itself (listed in defined) are not library calls and
// are never flagged.
func ForbiddenCalls(policy rules.CallPolicy, sites []model.CallSite, defined map[string]struct{}) []model.Violation {
	var out []model.Violation
	for _, s := range sites {
		var reason string
		switch policy.Mode {
		case rules.Allow:
			if policy.Listed(s.Name) {
				continue
			}
			if _, ok := safeCalls[s.Name]; ok {
				continue
			}
			if _, ok := expressionMacros[s.Name]; ok {
				continue
			}
			if _, ok := defined[s.Name]; ok {
				continue
			}
			reason = "is not in the allowed list"
		case rules.Deny:
			if !policy.Listed(s.Name) {
				continue
			}
			reason = "is forbidden"
		default:
			continue
		}
		out = append(out, model.Violation{
			Kind:     model.ForbiddenCall,
			Severity: model.Fail,
			File:     s.File,
			Line:     s.Line,
			Column:   s.Column,
			Message:  fmt.Sprintf("function '%s' %s", s.Name, reason),
		})
	}
	return out
}
