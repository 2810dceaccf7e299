package custody

import (
	"strings"
	"time"
)

// Role identifica a una de las dos partes de una entrega.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleCounterpart Role = "counterpart" // helper en la entrega inicial, foster en la devolución
)

// Parties son los dos usuarios de una entrega concreta.
type Parties struct {
	OwnerUserID       string
	CounterpartUserID string
}

func (p Parties) userFor(r Role) string {
	if r == RoleOwner {
		return p.OwnerUserID
	}
	return p.CounterpartUserID
}

// IsParty devuelve true si userID es el dueño o la contraparte.
func (p Parties) IsParty(userID string) bool {
	return userID != "" && (userID == p.OwnerUserID || userID == p.CounterpartUserID)
}

// HandoverMachine es la máquina de estados de una entrega entre dos partes.
// Se instancia dos veces: entrega inicial (inicia owner, confirma helper) y
// devolución (inicia foster, confirma owner).
type HandoverMachine struct {
	Entity    string
	Initiator Role
	Confirmer Role
}

var (
	InitialHandover = HandoverMachine{Entity: "handover", Initiator: RoleOwner, Confirmer: RoleCounterpart}
	ReturnHandover  = HandoverMachine{Entity: "return handover", Initiator: RoleCounterpart, Confirmer: RoleOwner}
)

type StartInput struct {
	ScheduledAt *time.Time
	Location    string
}

// Start valida al iniciador y devuelve el estado inicial (pending).
func (m HandoverMachine) Start(p Parties, actorUserID string, in StartInput, now time.Time) (HandoverState, error) {
	if actorUserID == "" || actorUserID != p.userFor(m.Initiator) {
		return HandoverState{}, ErrForbidden
	}
	if in.ScheduledAt != nil && in.ScheduledAt.Before(now) {
		return HandoverState{}, NewValidationError("scheduled_at", "must be in the future")
	}

	return HandoverState{
		Status:      HandoverPending,
		ScheduledAt: in.ScheduledAt,
		Location:    strings.TrimSpace(in.Location),
		InitiatedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Confirm registra la revisión de condición por parte del confirmador.
// ok=true => confirmed, ok=false => disputed. Solo desde pending.
func (m HandoverMachine) Confirm(h *HandoverState, p Parties, actorUserID string, ok bool, notes string, now time.Time) error {
	if actorUserID == "" || actorUserID != p.userFor(m.Confirmer) {
		return ErrForbidden
	}
	if h.Status != HandoverPending {
		return NewStateError(m.Entity, "confirm", string(h.Status))
	}

	h.ConditionConfirmed = ok
	h.ConditionNotes = strings.TrimSpace(notes)
	h.ConfirmedAt = &now
	h.UpdatedAt = now
	if ok {
		h.Status = HandoverConfirmed
	} else {
		h.Status = HandoverDisputed
	}
	return nil
}

// Complete cierra la entrega. Cualquiera de las dos partes, desde pending o confirmed.
// Un handover disputed no se puede completar.
func (m HandoverMachine) Complete(h *HandoverState, p Parties, actorUserID string, now time.Time) error {
	if !p.IsParty(actorUserID) {
		return ErrForbidden
	}
	if h.Status != HandoverPending && h.Status != HandoverConfirmed {
		return NewStateError(m.Entity, "complete", string(h.Status))
	}

	h.Status = HandoverCompleted
	h.CompletedAt = &now
	h.UpdatedAt = now
	return nil
}

// Cancel libera el cupo de handover abierto. Cualquiera de las dos partes.
func (m HandoverMachine) Cancel(h *HandoverState, p Parties, actorUserID string, now time.Time) error {
	if !p.IsParty(actorUserID) {
		return ErrForbidden
	}
	if !h.Status.IsOpen() {
		return NewStateError(m.Entity, "cancel", string(h.Status))
	}

	h.Status = HandoverCanceled
	h.CanceledAt = &now
	h.UpdatedAt = now
	return nil
}

// Abort cancela un handover abierto por decisión del sistema (la mascota cambió
// de dueño), sin chequear quién actúa.
func (m HandoverMachine) Abort(h *HandoverState, now time.Time) error {
	if !h.Status.IsOpen() {
		return NewStateError(m.Entity, "abort", string(h.Status))
	}

	h.Status = HandoverCanceled
	h.CanceledAt = &now
	h.UpdatedAt = now
	return nil
}
