package domain

import (
	"fmt"
	"time"

	"ajira/pkg/platform/sentinel"
)

// Property is one owned property inside a registration bundle.
type Property struct {
	Address      string  `json:"address"`
	PropertyType string  `json:"propertyType,omitempty"`
	Rooms        int     `json:"rooms,omitempty"`
	MonthlyRent  float64 `json:"monthlyRent,omitempty"`
}

// EmergencyContact is the secondary contact captured during registration.
type EmergencyContact struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Relation string `json:"relation,omitempty"`
}

// PropertyRegistration is the multi-step registration bundle: personal info,
// an emergency contact and one-to-many owned properties, written as a single
// document so the whole bundle commits or fails together.
type PropertyRegistration struct {
	ID               string           `json:"id,omitempty"`
	NationalID       string           `json:"nationalId"`
	FullName         string           `json:"fullName"`
	Phone            string           `json:"phone,omitempty"`
	Region           string           `json:"region,omitempty"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
	Properties       []Property       `json:"properties"`
	Status           UserStatus       `json:"status"`
	RegistrationDate time.Time        `json:"registrationDate"`
}

func (p PropertyRegistration) Validate() error {
	if p.NationalID == "" {
		return fmt.Errorf("%w: nationalId is required", sentinel.ErrValidationFailed)
	}
	if p.FullName == "" {
		return fmt.Errorf("%w: fullName is required", sentinel.ErrValidationFailed)
	}
	if p.EmergencyContact.FullName == "" || p.EmergencyContact.Phone == "" {
		return fmt.Errorf("%w: emergency contact name and phone are required", sentinel.ErrValidationFailed)
	}
	if len(p.Properties) == 0 {
		return fmt.Errorf("%w: at least one property is required", sentinel.ErrValidationFailed)
	}
	for i, prop := range p.Properties {
		if prop.Address == "" {
			return fmt.Errorf("%w: property %d is missing an address", sentinel.ErrValidationFailed, i+1)
		}
	}
	return nil
}
