//go:build !linux

package vm

import (
	"context"

	"gitlab.com/tozd/go/errors"
)

type NetlinkNeighbors struct{}

func NewNetlinkNeighbors() *NetlinkNeighbors {
	return &NetlinkNeighbors{}
}

func (NetlinkNeighbors) Neighbors(ctx context.Context) ([]Neighbor, error) {
	return nil, errors.New("netlink neighbor table is only available on linux")
}
