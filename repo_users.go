package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the identity store for principals. Methods without a Tx
// suffix run against the database handle directly.
type Users interface {
	repository.Repository[*User]

	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByPhone(ctx context.Context, lookup PhoneLookup) ([]*User, error)
	FindByPhoneTx(ctx context.Context, tx bun.IDB, lookup PhoneLookup) ([]*User, error)

	EmailExistsTx(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) (bool, error)
	UsernameExistsTx(ctx context.Context, tx bun.IDB, username string) (bool, error)
	NextUsernameTx(ctx context.Context, tx bun.IDB, base string, from int) (string, int, error)

	UpdateContactTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	SwapPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, previousHash, passwordHash string) (bool, error)

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error

	Search(ctx context.Context, query string, limit int) ([]*User, error)
	CountByRole(ctx context.Context, role Role) (int, error)
}

var SetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"login_attempts" = 0,
	"login_attempt_at" = NULL,
	"updated_at" = ?
WHERE
	"usr"."id" = ?
RETURNING *;`

var SwapUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"login_attempts" = 0,
	"login_attempt_at" = NULL,
	"updated_at" = ?
WHERE
	"usr"."id" = ?
AND "usr"."password_hash" = ?
RETURNING *;`

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// maxNextUsernameProbes bounds the existing username scan
const maxNextUsernameProbes = 1000

// NewUsersRepository creates the bun backed user store
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

// GetByIdentifierTx resolves an id, a username or an email, in that order
func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	identifier = strings.TrimSpace(identifier)

	options := []string{"?TableAlias.username = ?", "lower(?TableAlias.email) = lower(?)"}
	if _, err := uuid.Parse(identifier); err == nil {
		options = append([]string{"?TableAlias.id = ?"}, options...)
	}

	for _, where := range options {
		record := &User{}
		q := tx.NewSelect().Model(record)
		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.Where(where, identifier).Limit(1).Scan(ctx)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}
		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *users) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", username).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

// GetByEmailTx matches email case insensitively
func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) FindByPhone(ctx context.Context, lookup PhoneLookup) ([]*User, error) {
	return a.FindByPhoneTx(ctx, a.db, lookup)
}

// FindByPhoneTx tries each phone variant in order and returns the
// matches of the first variant that hits. At most two rows are read per
// variant, enough for the caller to detect ambiguity.
func (a *users) FindByPhoneTx(ctx context.Context, tx bun.IDB, lookup PhoneLookup) ([]*User, error) {
	const stripped = "replace(replace(replace(replace(?TableAlias.phone, ' ', ''), '-', ''), '(', ''), ')', '')"

	type phoneVariant struct {
		where string
		value string
	}

	variants := []phoneVariant{
		{where: "lower(?TableAlias.phone) = lower(?)", value: lookup.Raw},
		{where: stripped + " = ?", value: lookup.Cleaned},
		{where: stripped + " LIKE ?", value: "%" + lookup.Suffix},
	}

	for _, v := range variants {
		if strings.Trim(v.value, "%") == "" {
			continue
		}

		var records []*User
		err := tx.NewSelect().
			Model(&records).
			Where("?TableAlias.phone IS NOT NULL").
			Where(v.where, v.value).
			OrderExpr("?TableAlias.date_joined ASC").
			Limit(2).
			Scan(ctx)
		if err != nil && !IsNotFound(err) {
			return nil, err
		}

		if len(records) > 0 {
			return records, nil
		}
	}

	return nil, nil
}

func (a *users) EmailExistsTx(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) (bool, error) {
	q := tx.NewSelect().
		Model((*User)(nil)).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email))
	if exclude != uuid.Nil {
		q = q.Where("?TableAlias.id != ?", exclude)
	}
	return q.Exists(ctx)
}

func (a *users) UsernameExistsTx(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.username = ?", username).
		Exists(ctx)
}

// NextUsernameTx returns the first free candidate starting at suffix from.
// The answer is only a hint, the insert is the source of truth.
func (a *users) NextUsernameTx(ctx context.Context, tx bun.IDB, base string, from int) (string, int, error) {
	for n := from; n < from+maxNextUsernameProbes; n++ {
		candidate := CandidateUsername(base, n)
		exists, err := a.UsernameExistsTx(ctx, tx, candidate)
		if err != nil {
			return "", n, err
		}
		if !exists {
			return candidate, n, nil
		}
	}
	return "", from, errUsernameCollision(base)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

// CreateTx inserts the user, duplicate email or username are reported
// as email_taken and username_collision
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)

	out, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		return nil, classifyWriteError(err, record)
	}
	return out, nil
}

func (a *users) UpdateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.UpdateCriteria) (*User, error) {
	record.UpdatedAt = time.Now().UTC()

	if len(criteria) == 0 {
		criteria = append(criteria, repository.UpdateByID(record.ID.String()))
	}

	out, err := a.Repository.UpdateTx(ctx, tx, record, criteria...)
	if err != nil {
		return nil, classifyWriteError(err, record)
	}
	return out, nil
}

// UpdateContactTx writes the profile columns a user edits, blank
// values included.
func (a *users) UpdateContactTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	record.UpdatedAt = time.Now().UTC()

	res, err := tx.NewUpdate().
		Model(record).
		Column("first_name", "last_name", "email", "phone", "gender", "address", "picture", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, classifyWriteError(err, record)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, errIdentifierNotFound(record.ID.String())
	}
	return record, nil
}

func (a *users) RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().Model((*User)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (a *users) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.SetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, SetUserPasswordSQL, passwordHash, time.Now().UTC(), id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return errIdentifierNotFound(id.String())
	}
	return nil
}

// SwapPasswordTx only replaces the hash if it still equals previousHash,
// so two concurrent changes can not both succeed
func (a *users) SwapPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, previousHash, passwordHash string) (bool, error) {
	res, err := a.Repository.RawTx(ctx, tx, SwapUserPasswordSQL, passwordHash, time.Now().UTC(), id.String(), previousHash)
	if err != nil {
		return false, err
	}
	return len(res) == 1, nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	// the ORM update skips zero values, so the counters are reset by hand
	loggedInAt := time.Now().UTC()
	_, err := a.db.NewRaw(`
		UPDATE users
		SET
			last_login = ?,
			login_attempt_at = NULL,
			login_attempts = 0
		WHERE id = ?;
	`, loggedInAt, user.ID).Exec(ctx)
	if err != nil {
		return err
	}

	user.LastLogin = &loggedInAt
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
	return nil
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	now := time.Now().UTC()

	record := &User{}
	record.ID = user.ID
	record.LoginAttempts = user.LoginAttempts + 1
	record.LoginAttemptAt = &now

	if _, err := a.Repository.UpdateTx(ctx, a.db, record, repository.UpdateByID(user.ID.String())); err != nil {
		return err
	}

	user.LoginAttempts++
	user.LoginAttemptAt = &now
	return nil
}

// Search matches username, names and email case insensitively
func (a *users) Search(ctx context.Context, query string, limit int) ([]*User, error) {
	var records []*User
	q := a.db.NewSelect().Model(&records).OrderExpr("?TableAlias.date_joined DESC")

	if query = strings.ToLower(strings.TrimSpace(query)); query != "" {
		pattern := "%" + query + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("lower(?TableAlias.username) LIKE ?", pattern).
				WhereOr("lower(?TableAlias.first_name) LIKE ?", pattern).
				WhereOr("lower(?TableAlias.last_name) LIKE ?", pattern).
				WhereOr("lower(?TableAlias.email) LIKE ?", pattern)
		})
	}

	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil && !IsNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (a *users) CountByRole(ctx context.Context, role Role) (int, error) {
	return a.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.role = ?", role).
		Count(ctx)
}

func classifyWriteError(err error, record *User) error {
	if v, ok := asUniqueViolation(err); ok {
		switch {
		case v.on(constraintUsersEmail, "users.email"):
			return errEmailTaken(record.Email)
		case v.on(constraintUsersUsername, "users.username"):
			return errUsernameCollision(record.Username)
		}
	}
	return err
}
