package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ajira/pkg/platform/sentinel"
)

func TestUserValidate(t *testing.T) {
	valid := User{
		NationalID: "19900101-00001",
		FullName:   "Amina Hassan",
		UserType:   UserTypeWorker,
	}

	tests := []struct {
		name    string
		mutate  func(*User)
		wantErr bool
	}{
		{name: "valid worker", mutate: func(u *User) {}},
		{name: "missing national id", mutate: func(u *User) { u.NationalID = "" }, wantErr: true},
		{name: "missing full name", mutate: func(u *User) { u.FullName = "" }, wantErr: true},
		{name: "unknown user type", mutate: func(u *User) { u.UserType = "admin" }, wantErr: true},
		{name: "employer without company", mutate: func(u *User) { u.UserType = UserTypeEmployer }, wantErr: true},
		{name: "employer with company", mutate: func(u *User) {
			u.UserType = UserTypeEmployer
			u.CompanyName = "Kazi Ltd"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := valid
			tt.mutate(&u)
			err := u.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, sentinel.ErrValidationFailed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]UserStatus]bool{
		{UserStatusPending, UserStatusVerified}:    true,
		{UserStatusPending, UserStatusRejected}:    true,
		{UserStatusVerified, UserStatusSuspended}:  true,
		{UserStatusSuspended, UserStatusVerified}:  true,
		{UserStatusPending, UserStatusSuspended}:   false,
		{UserStatusVerified, UserStatusRejected}:   false,
		{UserStatusSuspended, UserStatusRejected}:  false,
		{UserStatusVerified, UserStatusPending}:    false,
		{UserStatusRejected, UserStatusVerified}:   false,
		{UserStatusRejected, UserStatusPending}:    false,
		{UserStatusRejected, UserStatusSuspended}:  false,
		{UserStatusSuspended, UserStatusSuspended}: false,
	}
	for pair, want := range allowed {
		assert.Equalf(t, want, CanTransition(pair[0], pair[1]),
			"transition %s -> %s", pair[0], pair[1])
	}
}

func TestPropertyRegistrationValidate(t *testing.T) {
	valid := PropertyRegistration{
		NationalID: "19851231-00042",
		FullName:   "Grace Mushi",
		EmergencyContact: EmergencyContact{
			FullName: "John Mushi",
			Phone:    "+255700000002",
		},
		Properties: []Property{{Address: "12 Uhuru St"}},
	}
	assert.NoError(t, valid.Validate())

	noContact := valid
	noContact.EmergencyContact.Phone = ""
	assert.ErrorIs(t, noContact.Validate(), sentinel.ErrValidationFailed)

	noProperties := valid
	noProperties.Properties = nil
	assert.ErrorIs(t, noProperties.Validate(), sentinel.ErrValidationFailed)

	blankAddress := valid
	blankAddress.Properties = []Property{{Address: ""}}
	assert.ErrorIs(t, blankAddress.Validate(), sentinel.ErrValidationFailed)
}
