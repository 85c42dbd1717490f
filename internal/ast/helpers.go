package ast

// MakeSymbols builds a module's symbol slice from original names. Every
// symbol starts with an invalid link; the zero Ref is a real reference, so
// symbols must never be constructed with a zero-valued Link.
func MakeSymbols(originalNames ...string) []Symbol {
	symbols := make([]Symbol, len(originalNames))
	for i, name := range originalNames {
		symbols[i] = Symbol{OriginalName: name, Link: InvalidRef}
	}
	return symbols
}
