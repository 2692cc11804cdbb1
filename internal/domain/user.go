package domain

import (
	"fmt"
	"time"

	"ajira/pkg/platform/sentinel"
)

// UserType distinguishes the two registrable participant roles.
type UserType string

const (
	UserTypeWorker   UserType = "worker"
	UserTypeEmployer UserType = "employer"
)

// UserStatus is the administrative review state of a registered user.
type UserStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusVerified  UserStatus = "verified"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusRejected  UserStatus = "rejected"
)

// User is a registered participant awaiting or holding verification.
// Created on signup with status pending; mutated only by administrative
// approve/reject/suspend/reactivate/delete actions.
type User struct {
	ID               string     `json:"id,omitempty"`
	NationalID       string     `json:"nationalId"`
	FullName         string     `json:"fullName"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone,omitempty"`
	Region           string     `json:"region,omitempty"`
	City             string     `json:"city,omitempty"`
	UserType         UserType   `json:"userType"`
	Status           UserStatus `json:"status"`
	Skills           []string   `json:"skills,omitempty"`
	Languages        []string   `json:"languages,omitempty"`
	CompanyName      string     `json:"companyName,omitempty"`
	CompanyType      string     `json:"companyType,omitempty"`
	RegistrationDate time.Time  `json:"registrationDate"`
	LastActive       time.Time  `json:"lastActive"`
}

// Validate checks the fields a signup must carry before any write is attempted.
func (u User) Validate() error {
	if u.NationalID == "" {
		return fmt.Errorf("%w: nationalId is required", sentinel.ErrValidationFailed)
	}
	if u.FullName == "" {
		return fmt.Errorf("%w: fullName is required", sentinel.ErrValidationFailed)
	}
	switch u.UserType {
	case UserTypeWorker:
	case UserTypeEmployer:
		if u.CompanyName == "" {
			return fmt.Errorf("%w: companyName is required for employers", sentinel.ErrValidationFailed)
		}
	default:
		return fmt.Errorf("%w: userType must be worker or employer", sentinel.ErrValidationFailed)
	}
	return nil
}

// CanTransition reports whether an administrative action may move a user from
// one status to another. Rejected is terminal.
func CanTransition(from, to UserStatus) bool {
	if from == UserStatusRejected {
		return false
	}
	switch to {
	case UserStatusVerified:
		return from == UserStatusPending || from == UserStatusSuspended
	case UserStatusRejected:
		return from == UserStatusPending
	case UserStatusSuspended:
		return from == UserStatusVerified
	case UserStatusPending:
		return false
	}
	return false
}
