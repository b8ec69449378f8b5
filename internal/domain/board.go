package domain

import "math/rand"

// ZoneCount is the number of zones on every generated board. Kept fixed so
// two deterministically-generated boards with the same seed are always
// structurally comparable.
const ZoneCount = 6

// Zone is one contested region of the board.
type Zone struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Owner       string `json:"owner,omitempty"`
	Garrison    int    `json:"garrison"`
	DefenseTier int    `json:"defenseTier"`
	UnitQuality int    `json:"unitQuality"`
	Neighbors   []int  `json:"-"`
}

// Board is a ring of ZoneCount zones; zone i neighbors i-1 and i+1 (mod
// ZoneCount). Ring topology keeps the reference engine's legality checks
// (and the resulting test fixtures) simple without being trivial: every
// zone has exactly two neighbors, and the two starting zones sit on
// opposite sides of the ring.
type Board struct {
	Zones []Zone `json:"zones"`
}

var zoneNames = []string{"Ashford", "Brackwater", "Caldera", "Duskmoor", "Emberfall", "Frostholm"}

// NewBoard deterministically derives a ring board from seed. The same seed
// always yields the same board.
func NewBoard(seed int64) Board {
	rng := rand.New(rand.NewSource(seed))
	order := rng.Perm(ZoneCount)

	zones := make([]Zone, ZoneCount)
	for i := 0; i < ZoneCount; i++ {
		zones[i] = Zone{
			ID:        i,
			Name:      zoneNames[order[i]%len(zoneNames)],
			Neighbors: []int{(i - 1 + ZoneCount) % ZoneCount, (i + 1) % ZoneCount},
		}
	}
	return Board{Zones: zones}
}

func (b Board) clone() Board {
	zones := make([]Zone, len(b.Zones))
	for i, z := range b.Zones {
		neighbors := make([]int, len(z.Neighbors))
		copy(neighbors, z.Neighbors)
		z.Neighbors = neighbors
		zones[i] = z
	}
	return Board{Zones: zones}
}

func (b Board) zone(id int) (*Zone, bool) {
	for i := range b.Zones {
		if b.Zones[i].ID == id {
			return &b.Zones[i], true
		}
	}
	return nil, false
}

func (b Board) areNeighbors(a, c int) bool {
	z, ok := b.zone(a)
	if !ok {
		return false
	}
	for _, n := range z.Neighbors {
		if n == c {
			return true
		}
	}
	return false
}

func (b Board) zonesOwnedBy(agentID string) int {
	n := 0
	for _, z := range b.Zones {
		if z.Owner == agentID {
			n++
		}
	}
	return n
}
