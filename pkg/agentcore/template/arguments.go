package template

// ForToolArguments adapts an Expander into the
// func(map[string]any) map[string]any shape the LLM broker's
// ArgumentExpander hook expects: every string-valued entry in a tool's
// arguments is run through Expand against vars before the tool is
// invoked; non-string values (numbers, bools, nested objects) pass
// through untouched. Missing variables follow the Expander's configured
// MissingAction, so callers who want strict validation should build the
// Expander with WithMissingAction(MissingError) — a resulting error is
// swallowed here and the raw placeholder is kept, since the broker's
// hook signature has no error return; use Expand directly if failing
// loudly on an undefined variable matters.
func (e *Expander) ForToolArguments(vars map[string]any) func(map[string]any) map[string]any {
	return func(args map[string]any) map[string]any {
		expanded, err := e.ExpandMap(args, vars)
		if err != nil {
			return args
		}
		return expanded
	}
}

// WithArgumentExpansion builds a broker ArgumentExpander that expands
// "${VAR}"/"$VAR" references in tool arguments against vars using the
// package default expander (MissingKeep: undefined variables are left
// as literal placeholders rather than erroring or blanking).
func WithArgumentExpansion(vars map[string]any) func(map[string]any) map[string]any {
	return defaultExpander.ForToolArguments(vars)
}
