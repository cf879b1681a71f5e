// Package prompt assembles the instruction text sent to the model for each
// operation. Builders are pure; callers validate inputs first.
package prompt

import "fmt"

// Kind names one relay operation.
type Kind string

const (
	KindExplain  Kind = "explain"
	KindDebug    Kind = "debug"
	KindSimplify Kind = "simplify"
)

const simplifyTemplate = `
You are an expert %[1]s developer. Simplify or optimize the following code and explain the improvements.

Code:
` + "```" + `%[1]s
%[2]s
` + "```" + `

Respond in this format:

Simplified Code:
` + "```" + `%[1]s
<your improved code here>
` + "```" + `

Explanation:
<explanation of what was changed and why>
`

// Build returns the prompt for kind. language is only used by KindSimplify.
// Code and language are embedded verbatim. An unknown kind returns code unchanged.
func Build(kind Kind, code, language string) string {
	switch kind {
	case KindExplain:
		return "Explain this code in detail: " + code
	case KindDebug:
		return "Find bugs in the following code and suggest fixes:\n" + code
	case KindSimplify:
		return fmt.Sprintf(simplifyTemplate, language, code)
	default:
		return code
	}
}
