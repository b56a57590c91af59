// Package keyword implements the -k selection language.
//
// An expression is a whitespace separated sequence of bare words combined
// with and, or, not and parentheses. Every word is matched as a
// case-insensitive substring of the candidate RunID:
//
//	moltest run -k "web and not slow"
//	moltest run -k "(db or cache) upgrade"
//
// Compile reports malformed input as a *ParseError pointing at the offending
// token.
package keyword
