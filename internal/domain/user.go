package domain

import (
	"context"
	"time"
)

const (
	RoleCandidate    = "candidate"
	RoleCompanyAdmin = "company_admin"
	RoleRecruiter    = "recruiter"
)

// IsRecruiterRole reports roles allowed to drive the application lifecycle.
func IsRecruiterRole(role string) bool {
	return role == RoleCompanyAdmin || role == RoleRecruiter
}

// UserAccount is the profile document paired with an identity account.
// ID equals the identity service account id.
type UserAccount struct {
	ID                        string      `json:"id"`
	Email                     string      `json:"email"`
	FullName                  string      `json:"fullName"`
	Role                      string      `json:"role"`
	Phone                     string      `json:"phone,omitempty"`
	Location                  string      `json:"location,omitempty"`
	Headline                  string      `json:"headline,omitempty"`
	ResumeRef                 string      `json:"resumeRef,omitempty"`
	CompanyID                 string      `json:"companyId,omitempty"`
	AIProcessingConsent       bool        `json:"aiProcessingConsent"`
	InterviewRecordingConsent bool        `json:"interviewRecordingConsent"`
	Enrichment                *Enrichment `json:"enrichment,omitempty"`
	CreatedAt                 time.Time   `json:"createdAt"`
}

// CompanyAccount is created by the company signup wizard.
type CompanyAccount struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Industry    string    `json:"industry"`
	Size        string    `json:"size"`
	Website     string    `json:"website,omitempty"`
	LogoRef     string    `json:"logoRef,omitempty"`
	AdminUserID string    `json:"adminUserId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type UserRepository interface {
	Create(ctx context.Context, user *UserAccount) error
	GetByID(ctx context.Context, id string) (*UserAccount, error)
	GetByEmail(ctx context.Context, email string) (*UserAccount, error)
	MergeEnrichment(ctx context.Context, id string, enrichment *Enrichment) error
	Delete(ctx context.Context, id string) error
}

type CompanyRepository interface {
	Create(ctx context.Context, company *CompanyAccount) error
	GetByID(ctx context.Context, id string) (*CompanyAccount, error)
	Delete(ctx context.Context, id string) error
}

type AuthUsecase interface {
	GetCurrentUser(ctx context.Context, id string) (*UserAccount, error)
}
