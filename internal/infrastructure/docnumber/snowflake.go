// Package docnumber issues document numbers for new orders.
package docnumber

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/erp/orderdesk/internal/domain/trade"
)

// Generator yields numbers of the form PREFIX-YYYYMMDD-ID, where ID is a
// snowflake id unique to this node.
type Generator struct {
	node *snowflake.Node
}

// New creates a generator for the given node (0-1023)
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// Next implements trade.DocumentNumberGenerator
func (g *Generator) Next(direction trade.Direction, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s", direction.DocumentPrefix(), at.Format("20060102"), g.node.Generate().String())
}

var _ trade.DocumentNumberGenerator = (*Generator)(nil)
