package repository

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewDocumentName returns a unique, roughly time-ordered name like SINV-1794...
func NewDocumentName(prefix string) string {
	nodeOnce.Do(func() {
		n, err := snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
		node = n
	})
	return prefix + "-" + node.Generate().String()
}

// orderKey is the value held by a live document's ActiveKey column.
func orderKey(storeID, orderID string) *string {
	key := storeID + ":" + orderID
	return &key
}
