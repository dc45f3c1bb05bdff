// Package query parses and evaluates the vecfs attribute query language.
//
// A query is a single predicate:
//
//	<key> <op> <value>
//	similarity(<key>, <vector>) <op> <threshold>
//
// where <op> is one of == != > < >= <=. Values are double-quoted strings,
// bracketed float lists ([0.9, 0.1]), integers, floats, or a bare word
// taken as a string.
//
// Equality predicates are answered from the attribute catalog and verified
// against the live object; every other predicate scans all objects.
package query
