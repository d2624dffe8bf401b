package dto

import (
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

type UserView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Category    string     `json:"category"`
	Status      string     `json:"status"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	SerialID    string     `json:"serialId,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func NewUserView(acc domain.Account) UserView {
	return UserView{
		ID:          acc.Credential.ID,
		Email:       acc.Credential.Email,
		Category:    string(acc.Profile.Category),
		Status:      string(acc.Credential.Status),
		FirstName:   acc.FirstName,
		LastName:    acc.LastName,
		SerialID:    acc.SerialID,
		LastLoginAt: acc.Credential.LastLoginAt,
	}
}

// NewCreatedUserView is the step-3 view of a freshly finalized account.
func NewCreatedUserView(acc domain.NewAccount) UserView {
	return UserView{
		ID:       acc.Credential.ID,
		Email:    acc.Credential.Email,
		Category: string(acc.Profile.Category),
		Status:   string(acc.Credential.Status),
	}
}

// SignupStepData is returned by steps 1 and 2. Exactly one token field is set.
type SignupStepData struct {
	Step       int    `json:"step"`
	NextStep   int    `json:"nextStep"`
	Step1Token string `json:"step1Token,omitempty"`
	Step2Token string `json:"step2Token,omitempty"`
	ExpiresIn  int64  `json:"expiresIn"` // seconds
}

type SignupCompletedData struct {
	Step int      `json:"step"`
	User UserView `json:"user"`
}

type TokenView struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type LoginData struct {
	User  UserView  `json:"user"`
	Token TokenView `json:"token"`
}

type MeData struct {
	User UserView `json:"user"`
}

type LogoutData struct {
	LoggedOut bool `json:"loggedOut"`
}
