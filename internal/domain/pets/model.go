package pets

import "time"

// Species define las especies soportadas.
// @Enum dog, cat
type Species string

const (
	SpeciesDog Species = "dog"
	SpeciesCat Species = "cat"
)

func (s Species) Valid() bool { return s == SpeciesDog || s == SpeciesCat }

// Sex define el sexo de la mascota.
// @Enum male, female, unknown
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

func (s Sex) Valid() bool { return s == SexMale || s == SexFemale || s == SexUnknown }

// Status es el estado de vida/registro de la mascota.
// @Enum active, lost, deceased, deleted
type Status string

const (
	StatusActive   Status = "active"
	StatusLost     Status = "lost"
	StatusDeceased Status = "deceased"
	StatusDeleted  Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusLost, StatusDeceased, StatusDeleted:
		return true
	}
	return false
}

// Pet representa el perfil básico de una mascota.
//
// OwnerUserID es una copia desnormalizada del dueño actual: la fuente de verdad
// es el historial de propiedad (ver paquete ownership), que lo actualiza en la
// misma transacción en la que mueve a la mascota.
type Pet struct {
	ID          string
	OwnerUserID string

	Name    string
	Species Species
	Breed   string
	Sex     Sex
	Status  Status

	BirthDate *time.Time
	Notes     string

	CreatedAt time.Time
	UpdatedAt time.Time
}
