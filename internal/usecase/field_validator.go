package usecase

import (
	"github.com/go-playground/validator/v10"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/validation"
)

// Consent copy shared by the candidate and job application wizards.
const (
	MsgAIConsent        = "You must consent to AI processing to use this platform"
	MsgRecordingConsent = "You must consent to interview recording"
	MsgTermsConsent     = "You must accept the terms and conditions"
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgPasswordLength   = "Password must be at least 8 characters long"
	MsgPasswordMismatch = "Passwords do not match"
	MsgUnknownStep      = "This step is not recognised, please restart the form"
)

// Step ids. The same id may appear in more than one wizard and always owns the same rules.
const (
	StepAccount   = "account"
	StepProfile   = "profile"
	StepResume    = "resume"
	StepConsent   = "consent"
	StepCompany   = "company"
	StepAdmin     = "admin"
	StepBranding  = "branding"
	StepTerms     = "terms"
	StepScreening = "screening"
)

type stepRules struct {
	fields   []validation.FieldRule
	artifact *validation.ArtifactRule
}

func required(field, label string) validation.FieldRule {
	return validation.Text(field, "not_blank", label+" is required")
}

var accountRules = []validation.FieldRule{
	required(domain.FieldFullName, "Full name"),
	validation.Text(domain.FieldFullName, "valid_name", "Full name contains invalid characters"),
	required(domain.FieldEmail, "Email"),
	validation.Text(domain.FieldEmail, "email_lite", MsgInvalidEmail),
	required(domain.FieldPassword, "Password"),
	validation.Text(domain.FieldPassword, "min=8", MsgPasswordLength),
	validation.Matches(domain.FieldConfirmPassword, domain.FieldPassword, MsgPasswordMismatch),
}

var consentRules = []validation.FieldRule{
	validation.Consent(domain.FieldAIProcessingConsent, MsgAIConsent),
	validation.Consent(domain.FieldInterviewRecordingConsent, MsgRecordingConsent),
	validation.Consent(domain.FieldTermsAccepted, MsgTermsConsent),
}

// stepCatalogue maps step ids to the checks they run, in declared order.
var stepCatalogue = map[string]stepRules{
	StepAccount: {fields: accountRules},
	StepAdmin:   {fields: accountRules},
	StepProfile: {fields: []validation.FieldRule{
		required(domain.FieldPhone, "Phone number"),
		validation.Text(domain.FieldPhone, "valid_phone", "Please enter a valid phone number"),
		required(domain.FieldLocation, "Location"),
		validation.Text(domain.FieldHeadline, "max=200", "Headline must be 200 characters or fewer"),
	}},
	StepResume:  {artifact: &validation.ResumeRule},
	StepConsent: {fields: consentRules},
	StepCompany: {fields: []validation.FieldRule{
		required(domain.FieldCompanyName, "Company name"),
		validation.Text(domain.FieldCompanyName, "max=200", "Company name must be 200 characters or fewer"),
		required(domain.FieldIndustry, "Industry"),
		required(domain.FieldCompanySize, "Company size"),
		validation.Text(domain.FieldWebsite, "omitempty,url", "Please enter a valid website URL"),
	}},
	StepBranding: {artifact: &validation.LogoRule},
	StepTerms: {fields: []validation.FieldRule{
		validation.Consent(domain.FieldTermsAccepted, MsgTermsConsent),
	}},
	StepScreening: {fields: []validation.FieldRule{
		validation.Number(domain.FieldYearsOfExperience, "gte=0,lte=70", "Years of experience must be between 0 and 70"),
		validation.Text(domain.FieldCoverLetter, "max=5000", "Cover letter must be 5000 characters or fewer"),
		validation.Text(domain.FieldLinkedinURL, "omitempty,url", "Please enter a valid LinkedIn URL"),
	}},
}

type fieldValidator struct {
	validate *validator.Validate
}

// NewFieldValidator returns the step-keyed validator used by the wizard engine.
func NewFieldValidator(v *validator.Validate) domain.FieldValidator {
	if v == nil {
		v = validation.New()
	}
	return &fieldValidator{validate: v}
}

// Validate checks only the fields owned by stepID and reports the first failure.
func (fv *fieldValidator) Validate(stepID string, fields map[string]interface{}, artifacts map[string]*domain.ArtifactMeta) domain.ValidationResult {
	rules, ok := stepCatalogue[stepID]
	if !ok {
		return domain.Invalid(MsgUnknownStep)
	}

	if msg := validation.FirstFailure(fv.validate, fields, rules.fields); msg != "" {
		return domain.Invalid(msg)
	}

	if rules.artifact != nil {
		meta := artifacts[rules.artifact.Field]
		var (
			name, mime string
			size       int64
		)
		if meta != nil {
			name, mime, size = meta.Filename, meta.MimeType, meta.SizeBytes
		}
		if msg := validation.CheckArtifact(name, mime, size, meta != nil, *rules.artifact); msg != "" {
			return domain.Invalid(msg)
		}
	}

	return domain.Valid()
}
