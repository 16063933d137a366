// Package idgen hands out unique 64-bit user ids.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator produces time-ordered snowflake ids. It is safe for concurrent
// use. Processes sharing a database must use distinct node ids.
type Generator struct {
	node *snowflake.Node
}

// New returns a generator for node, which must be in 0..1023.
func New(node int64) (*Generator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("idgen: %w", err)
	}
	return &Generator{node: n}, nil
}

// NextID returns a positive id never returned before by this generator.
func (g *Generator) NextID() int64 {
	return g.node.Generate().Int64()
}
