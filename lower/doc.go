// Package lower converts the typed program into scalar SSA. Composites
// are flattened one value per component; arrays and any aggregate
// containing one move to per-function storage slots so dynamic indexing
// stays simple. Short-circuit operators and the ternary become control
// flow, every indexed access gets a bounds check, and float operations
// are emitted symbolically for the fixed-point pass to rewrite.
package lower
