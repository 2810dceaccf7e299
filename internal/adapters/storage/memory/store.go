package memory

import (
	"context"
	"sync"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/pets"
)

var _ custody.Store = (*Store)(nil)

// Store guarda todo el estado en memoria. Cada transacción trabaja sobre un
// clon del estado bajo un único mutex y, si termina sin error, el clon
// reemplaza al estado. Eso da atomicidad y serializa los "check-then-update".
type Store struct {
	mu    sync.RWMutex
	state state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

type state struct {
	pets       map[string]pets.Pet
	placements map[string]custody.PlacementRequest
	transfers  map[string]custody.TransferRequest
	handovers  map[string]custody.TransferHandover
	returns    map[string]custody.FosterReturnHandover
	fosters    map[string]custody.FosterAssignment
	periods    map[string]custody.OwnershipPeriod
	events     []custody.Event
}

func newState() state {
	return state{
		pets:       map[string]pets.Pet{},
		placements: map[string]custody.PlacementRequest{},
		transfers:  map[string]custody.TransferRequest{},
		handovers:  map[string]custody.TransferHandover{},
		returns:    map[string]custody.FosterReturnHandover{},
		fosters:    map[string]custody.FosterAssignment{},
		periods:    map[string]custody.OwnershipPeriod{},
	}
}

// clone copia los mapas. Los valores son structs; los *time.Time internos se
// comparten pero nunca se mutan in-place (siempre se reasigna el puntero).
func (s state) clone() state {
	out := state{
		pets:       make(map[string]pets.Pet, len(s.pets)),
		placements: make(map[string]custody.PlacementRequest, len(s.placements)),
		transfers:  make(map[string]custody.TransferRequest, len(s.transfers)),
		handovers:  make(map[string]custody.TransferHandover, len(s.handovers)),
		returns:    make(map[string]custody.FosterReturnHandover, len(s.returns)),
		fosters:    make(map[string]custody.FosterAssignment, len(s.fosters)),
		periods:    make(map[string]custody.OwnershipPeriod, len(s.periods)),
		events:     make([]custody.Event, len(s.events)),
	}
	for k, v := range s.pets {
		out.pets[k] = v
	}
	for k, v := range s.placements {
		out.placements[k] = v
	}
	for k, v := range s.transfers {
		out.transfers[k] = v
	}
	for k, v := range s.handovers {
		out.handovers[k] = v
	}
	for k, v := range s.returns {
		out.returns[k] = v
	}
	for k, v := range s.fosters {
		out.fosters[k] = v
	}
	for k, v := range s.periods {
		out.periods[k] = v
	}
	copy(out.events, s.events)
	return out
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx custody.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{state: s.state.clone()}
	if err := fn(t); err != nil {
		return err
	}
	s.state = t.state
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx custody.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(&tx{state: snapshot})
}

// Pets expone el mismo estado como pets.Repository.
func (s *Store) Pets() pets.Repository {
	return &petRepo{store: s}
}
