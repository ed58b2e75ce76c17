// Package fairness partitions labeled records by a binary protected
// attribute and computes group fairness metrics between the privileged
// and unprivileged groups. It does no I/O.
package fairness
