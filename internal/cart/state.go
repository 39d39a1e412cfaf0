package cart

import "github.com/boutique/storefront/internal/domain"

type Mode string

const (
	ModeAnonymous Mode = "anonymous"
	ModeSynced    Mode = "synced"
)

// State is either Anonymous or Synced.
type State interface {
	Mode() Mode
	lines() domain.Lines
}

// Anonymous lines live in the session's key-value store.
type Anonymous struct {
	Lines domain.Lines
}

func (Anonymous) Mode() Mode            { return ModeAnonymous }
func (s Anonymous) lines() domain.Lines { return s.Lines }

// Synced mirrors the last server cart fetched for the authenticated user.
type Synced struct {
	Cart  *domain.ServerCart
	Lines domain.Lines
}

func (Synced) Mode() Mode            { return ModeSynced }
func (s Synced) lines() domain.Lines { return s.Lines }

func syncedFrom(cart *domain.ServerCart) Synced {
	return Synced{Cart: cart, Lines: cart.Lines()}
}

type Snapshot struct {
	Mode   Mode          `json:"mode"`
	Items  domain.Lines  `json:"items"`
	Totals domain.Totals `json:"totals"`
	Count  int           `json:"count"`
}

func snapshotOf(s State) Snapshot {
	lines := s.lines().Clone()
	return Snapshot{
		Mode:   s.Mode(),
		Items:  lines,
		Totals: lines.Totals(),
		Count:  lines.Count(),
	}
}

// persisted is the stored form of an anonymous cart.
type persisted struct {
	Items domain.Lines `json:"items"`
}
