package domain

import (
	"context"
	"fmt"
)

// WizardKind identifies one of the multi-step forms.
type WizardKind string

const (
	WizardCandidateSignup WizardKind = "candidate_signup"
	WizardCompanySignup   WizardKind = "company_signup"
	WizardJobApplication  WizardKind = "job_application"
)

// ValidWizardKinds returns all supported wizard kinds
func ValidWizardKinds() []WizardKind {
	return []WizardKind{WizardCandidateSignup, WizardCompanySignup, WizardJobApplication}
}

// IsValid checks if the wizard kind is known
func (k WizardKind) IsValid() bool {
	for _, valid := range ValidWizardKinds() {
		if k == valid {
			return true
		}
	}
	return false
}

// Field names shared by the wizards and the submission payloads.
const (
	FieldFullName                  = "fullName"
	FieldEmail                     = "email"
	FieldPassword                  = "password"
	FieldConfirmPassword           = "confirmPassword"
	FieldPhone                     = "phone"
	FieldLocation                  = "location"
	FieldHeadline                  = "headline"
	FieldResume                    = "resume"
	FieldLogo                      = "logo"
	FieldAIProcessingConsent       = "aiProcessingConsent"
	FieldInterviewRecordingConsent = "interviewRecordingConsent"
	FieldTermsAccepted             = "termsAccepted"
	FieldCompanyName               = "companyName"
	FieldIndustry                  = "industry"
	FieldCompanySize               = "companySize"
	FieldWebsite                   = "website"
	FieldYearsOfExperience         = "yearsOfExperience"
	FieldCoverLetter               = "coverLetter"
	FieldLinkedinURL               = "linkedinUrl"
	FieldJobID                     = "jobId"
)

// StepDefinition is one page of a wizard. ID keys the field validator rules.
type StepDefinition struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
}

// ArtifactMeta describes an attached file. Data is only populated at submit time.
type ArtifactMeta struct {
	Filename  string `json:"filename"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
	Data      []byte `json:"-"`
}

// WizardSession is the client-held state of a wizard. The server never stores it:
// every operation receives the session and returns it updated.
type WizardSession struct {
	Kind             WizardKind               `json:"kind"`
	Steps            []StepDefinition         `json:"steps"`
	CurrentStepIndex int                      `json:"currentStepIndex"`
	Fields           map[string]interface{}   `json:"fields"`
	Artifacts        map[string]*ArtifactMeta `json:"artifacts,omitempty"`
	LastError        *string                  `json:"lastError,omitempty"`
}

// CurrentStep returns the definition of the step the session is on.
func (s *WizardSession) CurrentStep() StepDefinition {
	return s.Steps[s.CurrentStepIndex-1]
}

// IsLastStep reports whether the session is on step N.
func (s *WizardSession) IsLastStep() bool {
	return s.CurrentStepIndex == len(s.Steps)
}

// SetError stores a single user-facing message on the session.
func (s *WizardSession) SetError(message string) {
	s.LastError = &message
}

func (s *WizardSession) ClearError() {
	s.LastError = nil
}

// Artifact returns the attached file for a field, if any.
func (s *WizardSession) Artifact(field string) *ArtifactMeta {
	if s.Artifacts == nil {
		return nil
	}
	return s.Artifacts[field]
}

// AttachArtifact sets or replaces the file for a field.
func (s *WizardSession) AttachArtifact(field string, artifact *ArtifactMeta) {
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]*ArtifactMeta)
	}
	s.Artifacts[field] = artifact
}

// StringField returns a field as a string, tolerating absent or non-string values.
func (s *WizardSession) StringField(name string) string {
	if v, ok := s.Fields[name].(string); ok {
		return v
	}
	return ""
}

// CheckIntegrity verifies a client-supplied session still matches the server's
// step catalogue for its kind and has an in-range index.
func (s *WizardSession) CheckIntegrity(expected []StepDefinition) error {
	if len(s.Steps) != len(expected) {
		return fmt.Errorf("session has %d steps, expected %d", len(s.Steps), len(expected))
	}
	for i := range expected {
		if s.Steps[i].ID != expected[i].ID {
			return fmt.Errorf("step %d is %q, expected %q", i+1, s.Steps[i].ID, expected[i].ID)
		}
	}
	if s.CurrentStepIndex < 1 || s.CurrentStepIndex > len(s.Steps) {
		return fmt.Errorf("step index %d out of range", s.CurrentStepIndex)
	}
	return nil
}

// ValidationResult is the outcome of validating one step.
type ValidationResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Valid is the passing result.
func Valid() ValidationResult {
	return ValidationResult{OK: true}
}

// Invalid carries exactly one message.
func Invalid(message string) ValidationResult {
	return ValidationResult{OK: false, Message: message}
}

// FieldValidator validates the fields owned by a single step.
type FieldValidator interface {
	Validate(stepID string, fields map[string]interface{}, artifacts map[string]*ArtifactMeta) ValidationResult
}

// WizardUsecase drives wizard sessions and hands the final step to the orchestrator.
type WizardUsecase interface {
	StartWizard(kind WizardKind, jobID string) (*WizardSession, error)
	Next(session *WizardSession) bool
	Back(session *WizardSession)
	GoTo(session *WizardSession, step int) bool
	UpdateFields(session *WizardSession, partial map[string]interface{})
	Submit(ctx context.Context, session *WizardSession, meta SubmissionMeta) (*SubmissionResult, error)
	Restore(session *WizardSession) error
}
