// Package sem implements semantic analysis for FXSL: name resolution,
// type checking, constant folding and call resolution. Its output is a
// typed program in which every expression carries its type, global
// constants are folded and inlined, compound assignments are desugared,
// and builtin calls are bound to registry ids. Later stages never see
// names they would have to resolve again.
package sem
