package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/pets"
)

// Pets

func (t *tx) GetPet(ctx context.Context, petID string) (pets.Pet, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`+t.forUpdate(), strings.TrimSpace(petID))
	p, err := scanPet(row)
	if err != nil {
		return pets.Pet{}, mapErr(err)
	}
	return p, nil
}

func (t *tx) SetPetOwner(ctx context.Context, petID, ownerUserID string, at time.Time) error {
	return t.update(ctx, `UPDATE pets SET owner_user_id = $2, updated_at = $3 WHERE id = $1`, petID, ownerUserID, at)
}

// Placement requests

const placementColumns = `id, pet_id, owner_user_id, request_type, status, is_active, notes,
	start_date, end_date, expires_at, created_at, updated_at, closed_at`

func scanPlacement(s scanner) (custody.PlacementRequest, error) {
	var p custody.PlacementRequest
	var start, end, expires, closed sql.NullTime
	if err := s.Scan(
		&p.ID, &p.PetID, &p.OwnerUserID, &p.Type, &p.Status, &p.IsActive, &p.Notes,
		&start, &end, &expires, &p.CreatedAt, &p.UpdatedAt, &closed,
	); err != nil {
		return custody.PlacementRequest{}, err
	}
	p.StartDate = timePtr(start)
	p.EndDate = timePtr(end)
	p.ExpiresAt = timePtr(expires)
	p.ClosedAt = timePtr(closed)
	return p, nil
}

func (t *tx) CreatePlacementRequest(ctx context.Context, p custody.PlacementRequest) error {
	return t.insert(ctx, `
		INSERT INTO placement_requests (`+placementColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT DO NOTHING
	`,
		p.ID, p.PetID, p.OwnerUserID, string(p.Type), string(p.Status), p.IsActive, p.Notes,
		nullTime(p.StartDate), nullTime(p.EndDate), nullTime(p.ExpiresAt),
		p.CreatedAt, p.UpdatedAt, nullTime(p.ClosedAt),
	)
}

func (t *tx) GetPlacementRequest(ctx context.Context, id string) (custody.PlacementRequest, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+placementColumns+` FROM placement_requests WHERE id = $1`+t.forUpdate(), strings.TrimSpace(id))
	p, err := scanPlacement(row)
	if err != nil {
		return custody.PlacementRequest{}, mapErr(err)
	}
	return p, nil
}

func (t *tx) UpdatePlacementRequest(ctx context.Context, p custody.PlacementRequest) error {
	return t.update(ctx, `
		UPDATE placement_requests
		SET status = $2, is_active = $3, notes = $4, updated_at = $5, closed_at = $6
		WHERE id = $1
	`, p.ID, string(p.Status), p.IsActive, p.Notes, p.UpdatedAt, nullTime(p.ClosedAt))
}

func (t *tx) ListPlacementRequests(ctx context.Context, f custody.PlacementFilter) ([]custody.PlacementRequest, error) {
	where, args := []string{"TRUE"}, []any{}
	if f.PetID != "" {
		args = append(args, f.PetID)
		where = append(where, "pet_id = $"+itoa(len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "status IN ('open','pending_review')")
	}
	if f.ExpiredAt != nil {
		args = append(args, *f.ExpiredAt)
		where = append(where, "status = 'open' AND expires_at IS NOT NULL AND expires_at <= $"+itoa(len(args)))
	}

	rows, err := t.q.QueryContext(ctx, `
		SELECT `+placementColumns+` FROM placement_requests
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]custody.PlacementRequest, 0)
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Transfer requests

const transferColumns = `id, placement_request_id, pet_id, initiator_user_id, recipient_user_id,
	requested_relationship_type, status, message, accepted_at, rejected_at, completed_at, created_at, updated_at`

func scanTransfer(s scanner) (custody.TransferRequest, error) {
	var r custody.TransferRequest
	var placementID sql.NullString
	var accepted, rejected, completed sql.NullTime
	if err := s.Scan(
		&r.ID, &placementID, &r.PetID, &r.InitiatorUserID, &r.RecipientUserID,
		&r.Relationship, &r.Status, &r.Message, &accepted, &rejected, &completed, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return custody.TransferRequest{}, err
	}
	r.PlacementRequestID = placementID.String
	r.AcceptedAt = timePtr(accepted)
	r.RejectedAt = timePtr(rejected)
	r.CompletedAt = timePtr(completed)
	return r, nil
}

func (t *tx) CreateTransferRequest(ctx context.Context, r custody.TransferRequest) error {
	return t.insert(ctx, `
		INSERT INTO transfer_requests (`+transferColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT DO NOTHING
	`,
		r.ID, nullString(r.PlacementRequestID), r.PetID, r.InitiatorUserID, r.RecipientUserID,
		string(r.Relationship), string(r.Status), r.Message,
		nullTime(r.AcceptedAt), nullTime(r.RejectedAt), nullTime(r.CompletedAt),
		r.CreatedAt, r.UpdatedAt,
	)
}

func (t *tx) GetTransferRequest(ctx context.Context, id string) (custody.TransferRequest, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfer_requests WHERE id = $1`+t.forUpdate(), strings.TrimSpace(id))
	r, err := scanTransfer(row)
	if err != nil {
		return custody.TransferRequest{}, mapErr(err)
	}
	return r, nil
}

func (t *tx) UpdateTransferRequest(ctx context.Context, r custody.TransferRequest) error {
	return t.update(ctx, `
		UPDATE transfer_requests
		SET status = $2, accepted_at = $3, rejected_at = $4, completed_at = $5, updated_at = $6
		WHERE id = $1
	`, r.ID, string(r.Status), nullTime(r.AcceptedAt), nullTime(r.RejectedAt), nullTime(r.CompletedAt), r.UpdatedAt)
}

func (t *tx) ListTransferRequests(ctx context.Context, f custody.TransferFilter) ([]custody.TransferRequest, error) {
	where, args := []string{"TRUE"}, []any{}
	if f.PlacementRequestID != "" {
		args = append(args, f.PlacementRequestID)
		where = append(where, "placement_request_id = $"+itoa(len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		n := itoa(len(args))
		where = append(where, "(initiator_user_id = $"+n+" OR recipient_user_id = $"+n+")")
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "status = $"+itoa(len(args)))
	}

	rows, err := t.q.QueryContext(ctx, `
		SELECT `+transferColumns+` FROM transfer_requests
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at ASC`+t.forUpdate(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]custody.TransferRequest, 0)
	for rows.Next() {
		r, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Handovers

const handoverColumns = `id, transfer_request_id, owner_user_id, helper_user_id, status, scheduled_at, location,
	condition_confirmed, condition_notes, owner_initiated_at, helper_confirmed_at, completed_at, canceled_at,
	created_at, updated_at`

const returnColumns = `id, foster_assignment_id, owner_user_id, foster_user_id, status, scheduled_at, location,
	condition_confirmed, condition_notes, foster_initiated_at, owner_confirmed_at, completed_at, canceled_at,
	created_at, updated_at`

// scanHandover lee las columnas comunes; ids son los 4 primeros campos de cada tabla.
func scanHandover(s scanner, ids [4]*string) (custody.HandoverState, error) {
	var h custody.HandoverState
	var scheduled, confirmed, completed, canceled sql.NullTime
	if err := s.Scan(
		ids[0], ids[1], ids[2], ids[3],
		&h.Status, &scheduled, &h.Location, &h.ConditionConfirmed, &h.ConditionNotes,
		&h.InitiatedAt, &confirmed, &completed, &canceled, &h.CreatedAt, &h.UpdatedAt,
	); err != nil {
		return custody.HandoverState{}, err
	}
	h.ScheduledAt = timePtr(scheduled)
	h.ConfirmedAt = timePtr(confirmed)
	h.CompletedAt = timePtr(completed)
	h.CanceledAt = timePtr(canceled)
	return h, nil
}

func handoverArgs(ids [4]string, h custody.HandoverState) []any {
	return []any{
		ids[0], ids[1], ids[2], ids[3],
		string(h.Status), nullTime(h.ScheduledAt), h.Location, h.ConditionConfirmed, h.ConditionNotes,
		h.InitiatedAt, nullTime(h.ConfirmedAt), nullTime(h.CompletedAt), nullTime(h.CanceledAt),
		h.CreatedAt, h.UpdatedAt,
	}
}

func (t *tx) CreateTransferHandover(ctx context.Context, h custody.TransferHandover) error {
	return t.insert(ctx, `
		INSERT INTO transfer_handovers (`+handoverColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT DO NOTHING
	`, handoverArgs([4]string{h.ID, h.TransferRequestID, h.OwnerUserID, h.HelperUserID}, h.HandoverState)...)
}

func (t *tx) GetTransferHandover(ctx context.Context, id string) (custody.TransferHandover, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+handoverColumns+` FROM transfer_handovers WHERE id = $1`+t.forUpdate(), strings.TrimSpace(id))

	var h custody.TransferHandover
	state, err := scanHandover(row, [4]*string{&h.ID, &h.TransferRequestID, &h.OwnerUserID, &h.HelperUserID})
	if err != nil {
		return custody.TransferHandover{}, mapErr(err)
	}
	h.HandoverState = state
	return h, nil
}

func (t *tx) UpdateTransferHandover(ctx context.Context, h custody.TransferHandover) error {
	return t.update(ctx, `
		UPDATE transfer_handovers
		SET status = $2, condition_confirmed = $3, condition_notes = $4,
		    helper_confirmed_at = $5, completed_at = $6, canceled_at = $7, updated_at = $8
		WHERE id = $1
	`, h.ID, string(h.Status), h.ConditionConfirmed, h.ConditionNotes,
		nullTime(h.ConfirmedAt), nullTime(h.CompletedAt), nullTime(h.CanceledAt), h.UpdatedAt)
}

func (t *tx) ListTransferHandovers(ctx context.Context, transferRequestID string) ([]custody.TransferHandover, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT `+handoverColumns+` FROM transfer_handovers
		WHERE transfer_request_id = $1
		ORDER BY created_at ASC`+t.forUpdate(), transferRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]custody.TransferHandover, 0)
	for rows.Next() {
		var h custody.TransferHandover
		state, err := scanHandover(rows, [4]*string{&h.ID, &h.TransferRequestID, &h.OwnerUserID, &h.HelperUserID})
		if err != nil {
			return nil, err
		}
		h.HandoverState = state
		out = append(out, h)
	}
	return out, rows.Err()
}

func (t *tx) CreateReturnHandover(ctx context.Context, h custody.FosterReturnHandover) error {
	return t.insert(ctx, `
		INSERT INTO foster_return_handovers (`+returnColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT DO NOTHING
	`, handoverArgs([4]string{h.ID, h.FosterAssignmentID, h.OwnerUserID, h.FosterUserID}, h.HandoverState)...)
}

func (t *tx) GetReturnHandover(ctx context.Context, id string) (custody.FosterReturnHandover, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+returnColumns+` FROM foster_return_handovers WHERE id = $1`+t.forUpdate(), strings.TrimSpace(id))

	var h custody.FosterReturnHandover
	state, err := scanHandover(row, [4]*string{&h.ID, &h.FosterAssignmentID, &h.OwnerUserID, &h.FosterUserID})
	if err != nil {
		return custody.FosterReturnHandover{}, mapErr(err)
	}
	h.HandoverState = state
	return h, nil
}

func (t *tx) UpdateReturnHandover(ctx context.Context, h custody.FosterReturnHandover) error {
	return t.update(ctx, `
		UPDATE foster_return_handovers
		SET status = $2, condition_confirmed = $3, condition_notes = $4,
		    owner_confirmed_at = $5, completed_at = $6, canceled_at = $7, updated_at = $8
		WHERE id = $1
	`, h.ID, string(h.Status), h.ConditionConfirmed, h.ConditionNotes,
		nullTime(h.ConfirmedAt), nullTime(h.CompletedAt), nullTime(h.CanceledAt), h.UpdatedAt)
}

// Foster assignments

const fosterColumns = `id, pet_id, owner_user_id, foster_user_id, transfer_request_id, status,
	start_date, expected_end_date, completed_at, canceled_at, cancellation_reason, created_at, updated_at`

func scanFoster(s scanner) (custody.FosterAssignment, error) {
	var a custody.FosterAssignment
	var end, completed, canceled sql.NullTime
	if err := s.Scan(
		&a.ID, &a.PetID, &a.OwnerUserID, &a.FosterUserID, &a.TransferRequestID, &a.Status,
		&a.StartDate, &end, &completed, &canceled, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return custody.FosterAssignment{}, err
	}
	a.ExpectedEndDate = timePtr(end)
	a.CompletedAt = timePtr(completed)
	a.CanceledAt = timePtr(canceled)
	return a, nil
}

// UpsertFosterAssignment: INSERT ... ON CONFLICT sobre la clave natural. Si otra
// transacción ganó, el SELECT posterior (nuevo snapshot) ve su fila.
func (t *tx) UpsertFosterAssignment(ctx context.Context, a custody.FosterAssignment) (custody.FosterAssignment, bool, error) {
	row := t.q.QueryRowContext(ctx, `
		INSERT INTO foster_assignments (`+fosterColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT ON CONSTRAINT foster_assignments_natural_key DO NOTHING
		RETURNING `+fosterColumns,
		a.ID, a.PetID, a.OwnerUserID, a.FosterUserID, a.TransferRequestID, string(a.Status),
		a.StartDate, nullTime(a.ExpectedEndDate), nullTime(a.CompletedAt), nullTime(a.CanceledAt),
		a.CancellationReason, a.CreatedAt, a.UpdatedAt,
	)
	created, err := scanFoster(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return custody.FosterAssignment{}, false, mapErr(err)
	}

	row = t.q.QueryRowContext(ctx, `
		SELECT `+fosterColumns+` FROM foster_assignments
		WHERE pet_id = $1 AND owner_user_id = $2 AND foster_user_id = $3 AND transfer_request_id = $4
	`+t.forUpdate(), a.PetID, a.OwnerUserID, a.FosterUserID, a.TransferRequestID)
	existing, err := scanFoster(row)
	if err != nil {
		return custody.FosterAssignment{}, false, mapErr(err)
	}
	return existing, false, nil
}

func (t *tx) GetFosterAssignment(ctx context.Context, id string) (custody.FosterAssignment, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+fosterColumns+` FROM foster_assignments WHERE id = $1`+t.forUpdate(), strings.TrimSpace(id))
	a, err := scanFoster(row)
	if err != nil {
		return custody.FosterAssignment{}, mapErr(err)
	}
	return a, nil
}

func (t *tx) UpdateFosterAssignment(ctx context.Context, a custody.FosterAssignment) error {
	return t.update(ctx, `
		UPDATE foster_assignments
		SET status = $2, expected_end_date = $3, completed_at = $4, canceled_at = $5,
		    cancellation_reason = $6, updated_at = $7
		WHERE id = $1
	`, a.ID, string(a.Status), nullTime(a.ExpectedEndDate), nullTime(a.CompletedAt), nullTime(a.CanceledAt),
		a.CancellationReason, a.UpdatedAt)
}

func (t *tx) ListFosterAssignments(ctx context.Context, f custody.FosterFilter) ([]custody.FosterAssignment, error) {
	where, args := []string{"TRUE"}, []any{}
	if f.PetID != "" {
		args = append(args, f.PetID)
		where = append(where, "pet_id = $"+itoa(len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		n := itoa(len(args))
		where = append(where, "(owner_user_id = $"+n+" OR foster_user_id = $"+n+")")
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "status = $"+itoa(len(args)))
	}

	rows, err := t.q.QueryContext(ctx, `
		SELECT `+fosterColumns+` FROM foster_assignments
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]custody.FosterAssignment, 0)
	for rows.Next() {
		a, err := scanFoster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Ownership ledger

func (t *tx) InsertOwnershipPeriod(ctx context.Context, p custody.OwnershipPeriod) error {
	return t.insert(ctx, `
		INSERT INTO ownership_history (id, pet_id, user_id, from_ts, to_ts)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT DO NOTHING
	`, p.ID, p.PetID, p.UserID, p.From, nullTime(p.To))
}

func (t *tx) CloseOwnershipPeriod(ctx context.Context, id string, to time.Time) error {
	_, err := t.q.ExecContext(ctx, `UPDATE ownership_history SET to_ts = $2 WHERE id = $1 AND to_ts IS NULL`, id, to)
	return mapErr(err)
}

func (t *tx) ListOwnershipPeriods(ctx context.Context, f custody.OwnershipFilter) ([]custody.OwnershipPeriod, error) {
	where, args := []string{"TRUE"}, []any{}
	if f.PetID != "" {
		args = append(args, f.PetID)
		where = append(where, "pet_id = $"+itoa(len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, "user_id = $"+itoa(len(args)))
	}
	if f.OpenOnly {
		where = append(where, "to_ts IS NULL")
	}

	rows, err := t.q.QueryContext(ctx, `
		SELECT id, pet_id, user_id, from_ts, to_ts FROM ownership_history
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY from_ts ASC`+t.forUpdate(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]custody.OwnershipPeriod, 0)
	for rows.Next() {
		var p custody.OwnershipPeriod
		var to sql.NullTime
		if err := rows.Scan(&p.ID, &p.PetID, &p.UserID, &p.From, &to); err != nil {
			return nil, err
		}
		p.To = timePtr(to)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Events

func (t *tx) AppendEvents(ctx context.Context, events ...custody.Event) error {
	for _, e := range events {
		recipients, err := json.Marshal(e.Recipients)
		if err != nil {
			return err
		}
		if _, err := t.q.ExecContext(ctx, `
			INSERT INTO custody_events (id, type, pet_id, entity_type, entity_id, actor_user_id, recipients, message, link, occurred_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, e.ID, string(e.Type), e.PetID, e.EntityType, e.EntityID, e.ActorUserID, string(recipients), e.Message, e.Link, e.OccurredAt); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (t *tx) ListEvents(ctx context.Context, petID string, limit int) ([]custody.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, type, pet_id, entity_type, entity_id, actor_user_id, recipients, message, link, occurred_at
		FROM custody_events
		WHERE pet_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, petID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]custody.Event, 0)
	for rows.Next() {
		var e custody.Event
		var recipients []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.PetID, &e.EntityType, &e.EntityID, &e.ActorUserID, &recipients, &e.Message, &e.Link, &e.OccurredAt); err != nil {
			return nil, err
		}
		if len(recipients) > 0 {
			if err := json.Unmarshal(recipients, &e.Recipients); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
