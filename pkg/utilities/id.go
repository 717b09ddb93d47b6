package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// RequestIDs hands out ids for the X-Request-Id header. A single snowflake
// node is reused so ids from one process never collide.
type RequestIDs struct {
	node *snowflake.Node
}

// NewRequestIDs builds a generator for the given node id. If the node cannot
// be created (id out of range) it falls back to KSUIDs.
func NewRequestIDs(nodeID int64) *RequestIDs {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &RequestIDs{}
	}
	return &RequestIDs{node: node}
}

// RequestIDsFromEnv reads SNOWFLAKE_NODE, defaulting to node 1.
func RequestIDsFromEnv() *RequestIDs {
	nodeID, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64)
	if err != nil {
		nodeID = 1
	}
	return NewRequestIDs(nodeID)
}

// Next returns a new request id.
func (g *RequestIDs) Next() string {
	if g == nil || g.node == nil {
		return ksuid.New().String()
	}
	return g.node.Generate().String()
}
