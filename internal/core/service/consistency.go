package service

import (
	"fmt"
	"strings"
)

// Consistency selects how a bill's stock check and deduction are serialized
// against concurrent bills.
type Consistency string

const (
	// ConsistencyLegacy reads, compares and writes back each item. Two bills
	// racing on one item can oversell it.
	ConsistencyLegacy Consistency = "legacy"

	// ConsistencyConditional deducts each item with an atomic
	// decrement-if-sufficient. Earlier lines keep their deduction when a
	// later one fails.
	ConsistencyConditional Consistency = "conditional"

	// ConsistencyLocked locks every item of the bill, validates all lines and
	// only then deducts. A failing bill deducts nothing.
	ConsistencyLocked Consistency = "locked"
)

func ParseConsistency(s string) (Consistency, error) {
	switch c := Consistency(strings.ToLower(strings.TrimSpace(s))); c {
	case ConsistencyLegacy, ConsistencyConditional, ConsistencyLocked:
		return c, nil
	case "":
		return ConsistencyLocked, nil
	default:
		return "", fmt.Errorf("unknown stock consistency %q", s)
	}
}
