// Package expand rewrites the parametric constructs of a pipeline model,
// loop steps and multipass groups, into a flat collection of concrete steps
// with fully resolved inputs, outputs and argument values.
//
// Expansion produces a new, derived Pipeline; the input model is never
// mutated. This is the only stage allowed to touch the file system (loop
// steps enumerate their source folder) and the only stage allowed to rewrite
// data-node paths (pass suffixing).
package expand
