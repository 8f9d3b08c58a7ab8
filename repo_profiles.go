package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles stores the role profiles owned by a user. The embedded
// repository serves participant profiles. Deleting a profile never
// deletes its user, the admin delete path orchestrates both.
type Profiles interface {
	repository.Repository[*ParticipantProfile]

	GetParticipantByUser(ctx context.Context, userID uuid.UUID) (*ParticipantProfile, error)
	GetParticipantByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*ParticipantProfile, error)
	HasParticipant(ctx context.Context, userID uuid.UUID) (bool, error)
	DeleteParticipantTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	CreateGuardianTx(ctx context.Context, tx bun.IDB, record *GuardianProfile) (*GuardianProfile, error)
	GetGuardianByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*GuardianProfile, error)
	DetachGuardiansTx(ctx context.Context, tx bun.IDB, participantProfileID uuid.UUID) error

	CreateDepartmentHeadTx(ctx context.Context, tx bun.IDB, record *DepartmentHeadProfile) (*DepartmentHeadProfile, error)
	GetDepartmentHeadByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*DepartmentHeadProfile, error)

	DeleteForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
	CountParticipantsByGender(ctx context.Context) (map[string]int, error)
}

type profiles struct {
	repository.Repository[*ParticipantProfile]
	guardians repository.Repository[*GuardianProfile]
	heads     repository.Repository[*DepartmentHeadProfile]
	db        *bun.DB
}

var _ Profiles = (*profiles)(nil)

// NewProfilesRepository creates the bun backed profile store
func NewProfilesRepository(db *bun.DB) Profiles {
	participants := repository.NewRepository[*ParticipantProfile](db, repository.ModelHandlers[*ParticipantProfile]{
		NewRecord: func() *ParticipantProfile { return &ParticipantProfile{} },
		GetID: func(record *ParticipantProfile) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ParticipantProfile, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	guardians := repository.NewRepository[*GuardianProfile](db, repository.ModelHandlers[*GuardianProfile]{
		NewRecord: func() *GuardianProfile { return &GuardianProfile{} },
		GetID: func(record *GuardianProfile) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *GuardianProfile, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	heads := repository.NewRepository[*DepartmentHeadProfile](db, repository.ModelHandlers[*DepartmentHeadProfile]{
		NewRecord: func() *DepartmentHeadProfile { return &DepartmentHeadProfile{} },
		GetID: func(record *DepartmentHeadProfile) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *DepartmentHeadProfile, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &profiles{
		Repository: participants,
		guardians:  guardians,
		heads:      heads,
		db:         db,
	}
}

func (p *profiles) Create(ctx context.Context, record *ParticipantProfile, criteria ...repository.InsertCriteria) (*ParticipantProfile, error) {
	return p.CreateTx(ctx, p.db, record, criteria...)
}

func (p *profiles) CreateTx(ctx context.Context, tx bun.IDB, record *ParticipantProfile, criteria ...repository.InsertCriteria) (*ParticipantProfile, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return p.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (p *profiles) GetParticipantByUser(ctx context.Context, userID uuid.UUID) (*ParticipantProfile, error) {
	return p.GetParticipantByUserTx(ctx, p.db, userID)
}

func (p *profiles) GetParticipantByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*ParticipantProfile, error) {
	record := &ParticipantProfile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (p *profiles) HasParticipant(ctx context.Context, userID uuid.UUID) (bool, error) {
	return p.db.NewSelect().
		Model((*ParticipantProfile)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exists(ctx)
}

// DeleteParticipantTx removes the profile row only. Guardian links
// are severed first.
func (p *profiles) DeleteParticipantTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	if err := p.DetachGuardiansTx(ctx, tx, id); err != nil {
		return err
	}
	_, err := tx.NewDelete().Model((*ParticipantProfile)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (p *profiles) CreateGuardianTx(ctx context.Context, tx bun.IDB, record *GuardianProfile) (*GuardianProfile, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return p.guardians.CreateTx(ctx, tx, record)
}

func (p *profiles) GetGuardianByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*GuardianProfile, error) {
	record := &GuardianProfile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// DetachGuardiansTx severs guardian links to a participant profile
func (p *profiles) DetachGuardiansTx(ctx context.Context, tx bun.IDB, participantProfileID uuid.UUID) error {
	_, err := tx.NewRaw(
		"UPDATE guardian_profiles SET participant_profile_id = NULL WHERE participant_profile_id = ?;",
		participantProfileID,
	).Exec(ctx)
	return err
}

func (p *profiles) CreateDepartmentHeadTx(ctx context.Context, tx bun.IDB, record *DepartmentHeadProfile) (*DepartmentHeadProfile, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return p.heads.CreateTx(ctx, tx, record)
}

func (p *profiles) GetDepartmentHeadByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*DepartmentHeadProfile, error) {
	record := &DepartmentHeadProfile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteForUserTx removes every profile owned by the user
func (p *profiles) DeleteForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	participant, err := p.GetParticipantByUserTx(ctx, tx, userID)
	switch {
	case err == nil:
		if err := p.DeleteParticipantTx(ctx, tx, participant.ID); err != nil {
			return err
		}
	case !IsNotFound(err):
		return err
	}

	if _, err := tx.NewDelete().Model((*GuardianProfile)(nil)).Where("user_id = ?", userID).Exec(ctx); err != nil {
		return err
	}

	if _, err := tx.NewDelete().Model((*DepartmentHeadProfile)(nil)).Where("user_id = ?", userID).Exec(ctx); err != nil {
		return err
	}

	return nil
}

// CountParticipantsByGender returns participant counts keyed by M and F
func (p *profiles) CountParticipantsByGender(ctx context.Context) (map[string]int, error) {
	out := map[string]int{GenderMale: 0, GenderFemale: 0}
	for gender := range out {
		n, err := p.db.NewSelect().
			Model((*ParticipantProfile)(nil)).
			Join("JOIN users AS u ON u.id = ?TableAlias.user_id").
			Where("u.gender = ?", gender).
			Count(ctx)
		if err != nil {
			return nil, err
		}
		out[gender] = n
	}
	return out, nil
}
