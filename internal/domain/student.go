package domain

import (
	"fmt"
	"time"

	"ajira/pkg/platform/sentinel"
)

// Student is a registered student participant. Students follow the same
// pending/verified review path as users but carry no marketplace role.
type Student struct {
	ID               string     `json:"id,omitempty"`
	NationalID       string     `json:"nationalId"`
	FullName         string     `json:"fullName"`
	Institution      string     `json:"institution,omitempty"`
	Course           string     `json:"course,omitempty"`
	YearOfStudy      int        `json:"yearOfStudy,omitempty"`
	Status           UserStatus `json:"status"`
	RegistrationDate time.Time  `json:"registrationDate"`
}

func (s Student) Validate() error {
	if s.NationalID == "" {
		return fmt.Errorf("%w: nationalId is required", sentinel.ErrValidationFailed)
	}
	if s.FullName == "" {
		return fmt.Errorf("%w: fullName is required", sentinel.ErrValidationFailed)
	}
	return nil
}
