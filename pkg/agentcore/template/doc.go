/*
Package template expands "${var}" and "$var" placeholders in strings
against a caller-supplied variable map.

# Overview

The broker's tool-call loop optionally runs string-valued tool arguments
through an Expander before invocation, so a tool descriptor can embed
placeholders like "${session_id}" or "$region" that get resolved against
values the caller controls rather than values the model supplied.
Expansion is opt-in: a Broker with a nil ArgumentExpander passes
arguments through byte-for-byte.

# Basic Usage

	exp := template.NewExpander()
	result, err := exp.Expand("report-${region}.csv", map[string]any{"region": "us-east"})
	// result: "report-us-east.csv"

# Variable Patterns

Two patterns are supported:

  - ${var} - brace style, unambiguous
  - $var   - dollar style, terminated by a word boundary so $region
    doesn't swallow characters from "$regional"

# Missing Variables

	template.MissingKeep  // leave the placeholder as-is (default)
	template.MissingEmpty // replace with ""
	template.MissingError // return *UndefinedVariableError

# Wiring into the Broker

ForToolArguments adapts an Expander to the
func(map[string]any) map[string]any shape the Broker's ArgumentExpander
field expects:

	broker.ArgumentExpander = template.WithArgumentExpansion(map[string]any{
	    "session_id": sessionID,
	})

# Thread Safety

Expander is safe for concurrent use after construction.
*/
package template
