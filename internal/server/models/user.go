package models

import (
	"fmt"
	"time"
)

// Role is the closed set of account kinds.
type Role string

const (
	RoleStudent     Role = "student"
	RoleGraduate    Role = "graduate"
	RoleDoctor      Role = "doctor"
	RoleInstitution Role = "institution"
)

// ParseRole validates s as one of the known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleStudent, RoleGraduate, RoleDoctor, RoleInstitution:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// CanShareNotes reports whether the role may upload or recover notes.
func (r Role) CanShareNotes() bool {
	return r == RoleStudent || r == RoleGraduate
}

// Profile is the role-specific part of a user. Each role has its own
// implementation carrying exactly the fields that role requires.
type Profile interface {
	Role() Role
	columns() ProfileColumns
}

type StudentProfile struct {
	UniID    int64  `json:"uni_id" validate:"required,gt=0"`
	PhoneNum string `json:"phone_num" validate:"required"`
	Major    string `json:"major" validate:"required"`
}

func (StudentProfile) Role() Role { return RoleStudent }
func (p StudentProfile) columns() ProfileColumns {
	return ProfileColumns{UniID: &p.UniID, PhoneNum: &p.PhoneNum, Major: &p.Major}
}

type GraduateProfile struct {
	UniID    int64  `json:"uni_id" validate:"required,gt=0"`
	PhoneNum string `json:"phone_num" validate:"required"`
	Major    string `json:"major" validate:"required"`
}

func (GraduateProfile) Role() Role { return RoleGraduate }
func (p GraduateProfile) columns() ProfileColumns {
	return ProfileColumns{UniID: &p.UniID, PhoneNum: &p.PhoneNum, Major: &p.Major}
}

type DoctorProfile struct {
	Department string `json:"department" validate:"required"`
	PhoneNum   string `json:"phone_num" validate:"required"`
	OfficeNum  string `json:"office_num" validate:"required"`
}

func (DoctorProfile) Role() Role { return RoleDoctor }
func (p DoctorProfile) columns() ProfileColumns {
	return ProfileColumns{Department: &p.Department, PhoneNum: &p.PhoneNum, OfficeNum: &p.OfficeNum}
}

type InstitutionProfile struct {
	PhoneNum string `json:"phone_num" validate:"required"`
	License  string `json:"license" validate:"required"`
}

func (InstitutionProfile) Role() Role { return RoleInstitution }
func (p InstitutionProfile) columns() ProfileColumns {
	return ProfileColumns{PhoneNum: &p.PhoneNum, License: &p.License}
}

// ProfileColumns is the flat, nullable storage and wire shape of a Profile.
type ProfileColumns struct {
	Major      *string `json:"major,omitempty"`
	UniID      *int64  `json:"uni_id,omitempty"`
	Department *string `json:"department,omitempty"`
	PhoneNum   *string `json:"phone_num,omitempty"`
	OfficeNum  *string `json:"office_num,omitempty"`
	License    *string `json:"license,omitempty"`
}

// Flatten returns the column form of p. A nil profile yields empty columns.
func Flatten(p Profile) ProfileColumns {
	if p == nil {
		return ProfileColumns{}
	}
	return p.columns()
}

// BuildProfile picks the Profile variant for role and fills it from c.
// Fields the role does not use are ignored; missing ones are left zero for
// the validator to report.
func BuildProfile(role Role, c ProfileColumns) (Profile, error) {
	switch role {
	case RoleStudent:
		return StudentProfile{UniID: deref(c.UniID), PhoneNum: deref(c.PhoneNum), Major: deref(c.Major)}, nil
	case RoleGraduate:
		return GraduateProfile{UniID: deref(c.UniID), PhoneNum: deref(c.PhoneNum), Major: deref(c.Major)}, nil
	case RoleDoctor:
		return DoctorProfile{Department: deref(c.Department), PhoneNum: deref(c.PhoneNum), OfficeNum: deref(c.OfficeNum)}, nil
	case RoleInstitution:
		return InstitutionProfile{PhoneNum: deref(c.PhoneNum), License: deref(c.License)}, nil
	}
	return nil, fmt.Errorf("unknown role %q", role)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// User is a registered account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash []byte
	Profile      Profile
	CreatedAt    time.Time
}

// Role returns the user's role, taken from the profile variant.
func (u *User) Role() Role {
	if u.Profile == nil {
		return ""
	}
	return u.Profile.Role()
}

// Registration is the sign-up request.
type Registration struct {
	Name     string `json:"name" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
	ProfileColumns
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID int64
	Name   string
	Role   Role
}
