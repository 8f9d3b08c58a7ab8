package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Level is a participant's experience level
type Level = string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
	LevelExpert       Level = "Expert"
)

// Levels lists the accepted experience levels with their descriptions
var Levels = map[Level]string{
	LevelBeginner:     "Beginner - New to the technology",
	LevelIntermediate: "Intermediate - Some experience",
	LevelAdvanced:     "Advanced - Strong knowledge",
	LevelExpert:       "Expert - Industry professional",
}

// Relationship between a guardian and a participant
type Relationship = string

const (
	RelationshipFather      Relationship = "Father"
	RelationshipMother      Relationship = "Mother"
	RelationshipBrother     Relationship = "Brother"
	RelationshipSister      Relationship = "Sister"
	RelationshipGrandmother Relationship = "Grand mother"
	RelationshipGrandfather Relationship = "Grand father"
	RelationshipOther       Relationship = "Other"
)

// Gender values, blank means unset
const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// DefaultPicture is the storage key every new user starts with
const DefaultPicture = "default.png"

// User is the principal model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk" json:"id"`
	Username       string     `bun:"username,notnull" json:"username"`
	Email          string     `bun:"email,nullzero" json:"email"`
	Phone          string     `bun:"phone,nullzero" json:"phone,omitempty"`
	FirstName      string     `bun:"first_name" json:"first_name"`
	LastName       string     `bun:"last_name" json:"last_name"`
	Gender         string     `bun:"gender,nullzero" json:"gender,omitempty"`
	Address        string     `bun:"address,nullzero" json:"address,omitempty"`
	Picture        string     `bun:"picture,nullzero" json:"picture,omitempty"`
	Role           Role       `bun:"role,notnull" json:"role"`
	IsActive       bool       `bun:"is_active,notnull" json:"is_active"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	LoginAttempts  int        `bun:"login_attempts,notnull" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LastLogin      *time.Time `bun:"last_login" json:"last_login,omitempty"`
	DateJoined     time.Time  `bun:"date_joined,notnull" json:"date_joined"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// IsStudent is true for participants
func (u *User) IsStudent() bool { return u != nil && u.Role == RoleParticipant }

// IsLecturer is true for lecturers
func (u *User) IsLecturer() bool { return u != nil && u.Role == RoleLecturer }

// IsGuardian is true for parents and other guardians
func (u *User) IsGuardian() bool { return u != nil && u.Role == RoleGuardian }

// IsDepartmentHead is true for department heads
func (u *User) IsDepartmentHead() bool { return u != nil && u.Role == RoleDepartmentHead }

// IsSuperuser is true for administrators
func (u *User) IsSuperuser() bool { return u != nil && u.Role == RoleAdministrator }

// IsStaff is true for users allowed in the admin site
func (u *User) IsStaff() bool { return u != nil && u.Role.IsStaff() }

// FullName falls back to the username when either name is missing
func (u *User) FullName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.Username
}

// HasUsablePassword is false for accounts created without a password
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != "" && !strings.HasPrefix(u.PasswordHash, unusablePasswordPrefix)
}

func (u *User) String() string {
	return u.Username + " (" + u.FullName() + ")"
}

// Program is referenced by participant and department head profiles
type Program struct {
	bun.BaseModel `bun:"table:programs,alias:prg"`
	ID            uuid.UUID `bun:"id,pk" json:"id"`
	Title         string    `bun:"title,notnull" json:"title"`
	Summary       string    `bun:"summary,nullzero" json:"summary,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// ParticipantProfile is owned by a participant user
type ParticipantProfile struct {
	bun.BaseModel `bun:"table:participant_profiles,alias:ppr"`
	ID            uuid.UUID  `bun:"id,pk" json:"id"`
	UserID        uuid.UUID  `bun:"user_id,notnull" json:"user_id"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Level         Level      `bun:"level,nullzero" json:"level,omitempty"`
	ProgramID     *uuid.UUID `bun:"program_id" json:"program_id,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// GuardianProfile links a guardian user to a participant
type GuardianProfile struct {
	bun.BaseModel        `bun:"table:guardian_profiles,alias:gpr"`
	ID                   uuid.UUID    `bun:"id,pk" json:"id"`
	UserID               uuid.UUID    `bun:"user_id,notnull" json:"user_id"`
	ParticipantProfileID *uuid.UUID   `bun:"participant_profile_id" json:"participant_profile_id,omitempty"`
	FirstName            string       `bun:"first_name" json:"first_name"`
	LastName             string       `bun:"last_name" json:"last_name"`
	Phone                string       `bun:"phone,nullzero" json:"phone,omitempty"`
	Email                string       `bun:"email,nullzero" json:"email,omitempty"`
	Relationship         Relationship `bun:"relationship,nullzero" json:"relationship,omitempty"`
	CreatedAt            time.Time    `bun:"created_at,notnull" json:"created_at"`
}

// DepartmentHeadProfile links a department head to a program
type DepartmentHeadProfile struct {
	bun.BaseModel `bun:"table:department_head_profiles,alias:dhp"`
	ID            uuid.UUID  `bun:"id,pk" json:"id"`
	UserID        uuid.UUID  `bun:"user_id,notnull" json:"user_id"`
	ProgramID     *uuid.UUID `bun:"program_id" json:"program_id,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// Session is an authenticated session row
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            string         `bun:"id,pk" json:"id"`
	UserID        uuid.UUID      `bun:"user_id,notnull" json:"user_id"`
	Role          Role           `bun:"role,notnull" json:"role"`
	Remember      bool           `bun:"remember,notnull" json:"remember"`
	Data          map[string]any `bun:"data" json:"data,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt     time.Time      `bun:"expires_at,notnull" json:"expires_at"`
}

// Expired reports whether the session is past its absolute bound
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Picture == "" {
		record.Picture = DefaultPicture
	}

	now := time.Now().UTC()
	if record.DateJoined.IsZero() {
		record.DateJoined = now
	}
	record.UpdatedAt = now
}
