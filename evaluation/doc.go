// Package evaluation decides whether retrieved document passages are enough
// to answer a query without consulting the web.
//
// The Evaluator is a lexical heuristic. Checks are applied in order and the
// first failing check determines the reason:
//
//	no passages                       -> "no documents found"
//	query asks for real-time data     -> "query requires real-time information"
//	fewer than MinOverlap query terms -> "not relevant"
//	trimmed passage text too short    -> "insufficient length"
//	otherwise                         -> "sufficient document content found"
//
// Only the first two passages are inspected. Evaluate is pure given the
// active policy and safe for concurrent use.
package evaluation
