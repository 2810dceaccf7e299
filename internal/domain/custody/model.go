package custody

import "time"

// PlacementType es el tipo de ubicación que pide el dueño.
type PlacementType string

const (
	PlacementFosterPaid PlacementType = "foster_paid"
	PlacementFosterFree PlacementType = "foster_free"
	PlacementPermanent  PlacementType = "permanent"
)

func (t PlacementType) Valid() bool {
	switch t {
	case PlacementFosterPaid, PlacementFosterFree, PlacementPermanent:
		return true
	}
	return false
}

func (t PlacementType) IsFoster() bool {
	return t == PlacementFosterPaid || t == PlacementFosterFree
}

type PlacementStatus string

const (
	PlacementOpen          PlacementStatus = "open"
	PlacementPendingReview PlacementStatus = "pending_review"
	PlacementFulfilled     PlacementStatus = "fulfilled"
	PlacementExpired       PlacementStatus = "expired"
	PlacementCancelled     PlacementStatus = "cancelled"
)

// IsActive: open y pending_review ocupan el cupo único por (pet, type).
func (s PlacementStatus) IsActive() bool {
	return s == PlacementOpen || s == PlacementPendingReview
}

type PlacementRequest struct {
	ID          string
	PetID       string
	OwnerUserID string

	Type     PlacementType
	Status   PlacementStatus
	IsActive bool
	Notes    string

	StartDate *time.Time
	EndDate   *time.Time
	ExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// Relationship es la relación que ofrece el helper.
type Relationship string

const (
	RelationshipFoster    Relationship = "foster"
	RelationshipPermanent Relationship = "permanent"
	RelationshipTemporary Relationship = "temporary"
)

func (r Relationship) Valid() bool {
	switch r {
	case RelationshipFoster, RelationshipPermanent, RelationshipTemporary:
		return true
	}
	return false
}

// IsFostering: foster y temporary terminan en un FosterAssignment, no en cambio de dueño.
func (r Relationship) IsFostering() bool {
	return r == RelationshipFoster || r == RelationshipTemporary
}

// CompatibleWith indica si la relación ofrecida sirve para el tipo de placement.
func (r Relationship) CompatibleWith(t PlacementType) bool {
	if t == PlacementPermanent {
		return r == RelationshipPermanent
	}
	return r.IsFostering()
}

// DefaultRelationship deriva la relación cuando el helper no la indica.
func DefaultRelationship(t PlacementType) Relationship {
	if t == PlacementPermanent {
		return RelationshipPermanent
	}
	return RelationshipFoster
}

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferAccepted  TransferStatus = "accepted"
	TransferRejected  TransferStatus = "rejected"
	TransferCompleted TransferStatus = "completed"
	TransferCancelled TransferStatus = "cancelled"
)

type TransferRequest struct {
	ID                 string
	PlacementRequestID string
	PetID              string

	InitiatorUserID string // helper
	RecipientUserID string // dueño

	Relationship Relationship
	Status       TransferStatus
	Message      string

	AcceptedAt  *time.Time
	RejectedAt  *time.Time
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type HandoverStatus string

const (
	HandoverPending   HandoverStatus = "pending"
	HandoverConfirmed HandoverStatus = "confirmed"
	HandoverCompleted HandoverStatus = "completed"
	HandoverCanceled  HandoverStatus = "canceled"
	HandoverDisputed  HandoverStatus = "disputed"
)

// IsOpen: un handover abierto ocupa el cupo único de su entidad padre.
func (s HandoverStatus) IsOpen() bool {
	return s == HandoverPending || s == HandoverConfirmed || s == HandoverDisputed
}

// HandoverState es el estado común de las dos máquinas de entrega.
// InitiatedAt/ConfirmedAt corresponden a owner_initiated_at/helper_confirmed_at
// en la entrega inicial y a foster_initiated_at/owner_confirmed_at en la devolución.
type HandoverState struct {
	Status HandoverStatus

	ScheduledAt *time.Time
	Location    string

	ConditionConfirmed bool
	ConditionNotes     string

	InitiatedAt time.Time
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	CanceledAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type TransferHandover struct {
	ID                string
	TransferRequestID string
	OwnerUserID       string
	HelperUserID      string

	HandoverState
}

type FosterReturnHandover struct {
	ID                 string
	FosterAssignmentID string
	OwnerUserID        string
	FosterUserID       string

	HandoverState
}

type FosterStatus string

const (
	FosterActive    FosterStatus = "active"
	FosterCompleted FosterStatus = "completed"
	FosterCanceled  FosterStatus = "canceled"
)

type FosterAssignment struct {
	ID                string
	PetID             string
	OwnerUserID       string
	FosterUserID      string
	TransferRequestID string // vacío si se creó fuera de un transfer

	Status FosterStatus

	StartDate       time.Time
	ExpectedEndDate *time.Time

	CompletedAt        *time.Time
	CanceledAt         *time.Time
	CancellationReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnershipPeriod es una fila del historial de propiedad. To == nil => abierto.
type OwnershipPeriod struct {
	ID     string
	PetID  string
	UserID string
	From   time.Time
	To     *time.Time
}

func (p OwnershipPeriod) IsOpen() bool { return p.To == nil }

// Today trunca a la fecha (UTC).
func Today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
