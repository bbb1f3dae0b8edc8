package usecase

import (
	"context"

	"go.uber.org/zap"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/apperror"
)

// wizardSteps is the fixed step catalogue per wizard kind.
var wizardSteps = map[domain.WizardKind][]domain.StepDefinition{
	domain.WizardCandidateSignup: {
		{ID: StepAccount, Title: "Create your account", Fields: []string{domain.FieldFullName, domain.FieldEmail, domain.FieldPassword, domain.FieldConfirmPassword}},
		{ID: StepProfile, Title: "Your profile", Fields: []string{domain.FieldPhone, domain.FieldLocation, domain.FieldHeadline}},
		{ID: StepResume, Title: "Upload your resume", Fields: []string{domain.FieldResume}},
		{ID: StepConsent, Title: "Consent", Fields: []string{domain.FieldAIProcessingConsent, domain.FieldInterviewRecordingConsent, domain.FieldTermsAccepted}},
	},
	domain.WizardCompanySignup: {
		{ID: StepCompany, Title: "Company details", Fields: []string{domain.FieldCompanyName, domain.FieldIndustry, domain.FieldCompanySize, domain.FieldWebsite}},
		{ID: StepAdmin, Title: "Admin account", Fields: []string{domain.FieldFullName, domain.FieldEmail, domain.FieldPassword, domain.FieldConfirmPassword}},
		{ID: StepBranding, Title: "Branding", Fields: []string{domain.FieldLogo}},
		{ID: StepTerms, Title: "Terms", Fields: []string{domain.FieldTermsAccepted}},
	},
	domain.WizardJobApplication: {
		{ID: StepAccount, Title: "Create your account", Fields: []string{domain.FieldFullName, domain.FieldEmail, domain.FieldPassword, domain.FieldConfirmPassword}},
		{ID: StepResume, Title: "Upload your resume", Fields: []string{domain.FieldResume}},
		{ID: StepScreening, Title: "Screening questions", Fields: []string{domain.FieldYearsOfExperience, domain.FieldCoverLetter, domain.FieldLinkedinURL}},
		{ID: StepConsent, Title: "Consent", Fields: []string{domain.FieldAIProcessingConsent, domain.FieldInterviewRecordingConsent, domain.FieldTermsAccepted}},
	},
}

// WizardSteps returns a copy of the step catalogue for kind.
func WizardSteps(kind domain.WizardKind) []domain.StepDefinition {
	steps := wizardSteps[kind]
	out := make([]domain.StepDefinition, len(steps))
	copy(out, steps)
	return out
}

type wizardUsecase struct {
	validator   domain.FieldValidator
	submissions domain.SubmissionUsecase
	log         *zap.Logger
}

// NewWizardUsecase creates the wizard engine. Sessions are never stored server-side.
func NewWizardUsecase(validator domain.FieldValidator, submissions domain.SubmissionUsecase, log *zap.Logger) domain.WizardUsecase {
	return &wizardUsecase{
		validator:   validator,
		submissions: submissions,
		log:         log,
	}
}

// StartWizard returns a fresh session positioned on step 1.
func (uc *wizardUsecase) StartWizard(kind domain.WizardKind, jobID string) (*domain.WizardSession, error) {
	if !kind.IsValid() {
		return nil, apperror.BadRequest("Unknown wizard type")
	}
	if kind == domain.WizardJobApplication && jobID == "" {
		return nil, apperror.BadRequest("jobId is required to apply")
	}

	session := &domain.WizardSession{
		Kind:             kind,
		Steps:            WizardSteps(kind),
		CurrentStepIndex: 1,
		Fields:           make(map[string]interface{}),
	}
	if jobID != "" {
		session.Fields[domain.FieldJobID] = jobID
	}
	return session, nil
}

// Restore checks a session sent back by the client before any operation runs on it.
func (uc *wizardUsecase) Restore(session *domain.WizardSession) error {
	if session == nil || !session.Kind.IsValid() {
		return apperror.BadRequest("Invalid wizard session")
	}
	if err := session.CheckIntegrity(wizardSteps[session.Kind]); err != nil {
		return apperror.BadRequest("Invalid wizard session").WithDetails(err.Error())
	}
	if session.Fields == nil {
		session.Fields = make(map[string]interface{})
	}
	return nil
}

func (uc *wizardUsecase) validateStep(session *domain.WizardSession, index int) domain.ValidationResult {
	step := session.Steps[index-1]
	return uc.validator.Validate(step.ID, session.Fields, session.Artifacts)
}

// Next validates the current step and advances on success, saturating at the last step.
func (uc *wizardUsecase) Next(session *domain.WizardSession) bool {
	result := uc.validateStep(session, session.CurrentStepIndex)
	if !result.OK {
		session.SetError(result.Message)
		return false
	}
	session.ClearError()
	if session.CurrentStepIndex < len(session.Steps) {
		session.CurrentStepIndex++
	}
	return true
}

// Back moves one step back without validating or dropping entered data.
func (uc *wizardUsecase) Back(session *domain.WizardSession) {
	session.ClearError()
	if session.CurrentStepIndex > 1 {
		session.CurrentStepIndex--
	}
}

// GoTo jumps to step. Forward jumps stop at the first intermediate step that fails.
func (uc *wizardUsecase) GoTo(session *domain.WizardSession, step int) bool {
	if step < 1 || step > len(session.Steps) {
		return false
	}
	if step <= session.CurrentStepIndex {
		session.ClearError()
		session.CurrentStepIndex = step
		return true
	}

	for i := session.CurrentStepIndex; i < step; i++ {
		if result := uc.validateStep(session, i); !result.OK {
			session.CurrentStepIndex = i
			session.SetError(result.Message)
			return false
		}
	}
	session.ClearError()
	session.CurrentStepIndex = step
	return true
}

// UpdateFields merges partial into the session without validating.
func (uc *wizardUsecase) UpdateFields(session *domain.WizardSession, partial map[string]interface{}) {
	if session.Fields == nil {
		session.Fields = make(map[string]interface{}, len(partial))
	}
	for k, v := range partial {
		session.Fields[k] = v
	}
}

// Submit re-validates the session and hands it to the submission orchestrator.
func (uc *wizardUsecase) Submit(ctx context.Context, session *domain.WizardSession, meta domain.SubmissionMeta) (*domain.SubmissionResult, error) {
	// 1. Only the last step can submit
	if !session.IsLastStep() {
		return nil, apperror.BadRequest("Complete every step before submitting").WithDetails(session)
	}

	// 2. Re-validate every step; the session is client-held and may have been edited
	for i := 1; i <= len(session.Steps); i++ {
		if result := uc.validateStep(session, i); !result.OK {
			session.CurrentStepIndex = i
			session.SetError(result.Message)
			return nil, apperror.Unprocessable(result.Message).WithDetails(session)
		}
	}
	session.ClearError()

	// 3. Build and run the saga
	req, err := uc.submissions.BuildRequest(session, meta)
	if err != nil {
		return nil, err
	}
	result, err := uc.submissions.Submit(ctx, req)
	if err != nil {
		uc.log.Info("wizard submission failed",
			zap.String("kind", string(session.Kind)),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}
