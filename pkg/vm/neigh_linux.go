//go:build linux

package vm

import (
	"context"

	"github.com/jsimonetti/rtnetlink"
	"gitlab.com/tozd/go/errors"
)

// NetlinkNeighbors reads the local neighbor table over rtnetlink without spawning `ip`.
// It only sees the host vmls runs on.
type NetlinkNeighbors struct{}

func NewNetlinkNeighbors() *NetlinkNeighbors {
	return &NetlinkNeighbors{}
}

func (NetlinkNeighbors) Neighbors(ctx context.Context) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := rtnetlink.Dial(nil)
	if err != nil {
		return nil, errors.Errorf("dialing rtnetlink: %w", err)
	}
	defer conn.Close()

	msgs, err := conn.Neigh.List()
	if err != nil {
		return nil, errors.Errorf("listing neighbors: %w", err)
	}

	out := make([]Neighbor, 0, len(msgs))
	for _, m := range msgs {
		if m.Attributes == nil || m.Attributes.Address == nil || len(m.Attributes.LLAddress) == 0 {
			continue
		}
		out = append(out, Neighbor{
			IP:  m.Attributes.Address.String(),
			MAC: m.Attributes.LLAddress.String(),
		})
	}
	return out, nil
}
