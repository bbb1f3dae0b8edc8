package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/internal/usecase"
	"recruiting-pipeline/pkg/validation"
)

func TestFieldValidatorAccountStep(t *testing.T) {
	fv := usecase.NewFieldValidator(validation.New())

	cases := []struct {
		name     string
		override map[string]interface{}
		want     string
	}{
		{"valid", nil, ""},
		{"blank name", map[string]interface{}{domain.FieldFullName: "  "}, "Full name is required"},
		{"missing email", map[string]interface{}{domain.FieldEmail: nil}, "Email is required"},
		{"bad email", map[string]interface{}{domain.FieldEmail: "jane@@example.com"}, usecase.MsgInvalidEmail},
		{"short password", map[string]interface{}{domain.FieldPassword: "abc", domain.FieldConfirmPassword: "abc"}, usecase.MsgPasswordLength},
		{"mismatch", map[string]interface{}{domain.FieldConfirmPassword: "correct-horsE"}, usecase.MsgPasswordMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := accountFields("jane@example.com")
			for k, v := range tc.override {
				fields[k] = v
			}
			result := fv.Validate(usecase.StepAccount, fields, nil)
			assert.Equal(t, tc.want == "", result.OK)
			assert.Equal(t, tc.want, result.Message)
		})
	}
}

func TestFieldValidatorConsentOrder(t *testing.T) {
	fv := usecase.NewFieldValidator(nil)
	fields := map[string]interface{}{}

	assert.Equal(t, usecase.MsgAIConsent, fv.Validate(usecase.StepConsent, fields, nil).Message)

	fields[domain.FieldAIProcessingConsent] = true
	assert.Equal(t, usecase.MsgRecordingConsent, fv.Validate(usecase.StepConsent, fields, nil).Message)

	fields[domain.FieldInterviewRecordingConsent] = "true"
	assert.Equal(t, usecase.MsgTermsConsent, fv.Validate(usecase.StepConsent, fields, nil).Message)

	fields[domain.FieldTermsAccepted] = true
	assert.True(t, fv.Validate(usecase.StepConsent, fields, nil).OK)
}

func TestFieldValidatorArtifacts(t *testing.T) {
	fv := usecase.NewFieldValidator(nil)

	t.Run("resume required", func(t *testing.T) {
		result := fv.Validate(usecase.StepResume, nil, nil)
		assert.Equal(t, validation.ResumeRule.MissingMsg, result.Message)
	})

	t.Run("2MB pdf accepted", func(t *testing.T) {
		artifacts := map[string]*domain.ArtifactMeta{
			domain.FieldResume: {Filename: "resume.pdf", MimeType: "application/pdf", SizeBytes: 2 * 1024 * 1024},
		}
		assert.True(t, fv.Validate(usecase.StepResume, nil, artifacts).OK)
	})

	t.Run("resume over 5MB", func(t *testing.T) {
		artifacts := map[string]*domain.ArtifactMeta{
			domain.FieldResume: {Filename: "resume.docx", SizeBytes: 6 * 1024 * 1024},
		}
		assert.Equal(t, validation.ResumeRule.TooLargeMsg, fv.Validate(usecase.StepResume, nil, artifacts).Message)
	})

	t.Run("logo optional", func(t *testing.T) {
		assert.True(t, fv.Validate(usecase.StepBranding, nil, nil).OK)
	})

	t.Run("logo wrong type", func(t *testing.T) {
		artifacts := map[string]*domain.ArtifactMeta{
			domain.FieldLogo: {Filename: "logo.gif", MimeType: "image/gif", SizeBytes: 1000},
		}
		assert.Equal(t, validation.LogoRule.TypeMsg, fv.Validate(usecase.StepBranding, nil, artifacts).Message)
	})
}

func TestFieldValidatorOtherSteps(t *testing.T) {
	fv := usecase.NewFieldValidator(nil)

	t.Run("profile needs phone and location", func(t *testing.T) {
		result := fv.Validate(usecase.StepProfile, map[string]interface{}{domain.FieldPhone: "12"}, nil)
		assert.Equal(t, "Please enter a valid phone number", result.Message)

		result = fv.Validate(usecase.StepProfile, map[string]interface{}{domain.FieldPhone: "+44 20 7946 0958"}, nil)
		assert.Equal(t, "Location is required", result.Message)
	})

	t.Run("company website optional but checked", func(t *testing.T) {
		fields := map[string]interface{}{
			domain.FieldCompanyName: "Acme",
			domain.FieldIndustry:    "Retail",
			domain.FieldCompanySize: "1-10",
		}
		assert.True(t, fv.Validate(usecase.StepCompany, fields, nil).OK)

		fields[domain.FieldWebsite] = "not a url"
		assert.Equal(t, "Please enter a valid website URL", fv.Validate(usecase.StepCompany, fields, nil).Message)
	})

	t.Run("screening years range", func(t *testing.T) {
		fields := map[string]interface{}{domain.FieldYearsOfExperience: "-1"}
		assert.False(t, fv.Validate(usecase.StepScreening, fields, nil).OK)

		fields[domain.FieldYearsOfExperience] = "3"
		assert.True(t, fv.Validate(usecase.StepScreening, fields, nil).OK)
	})

	t.Run("unknown step", func(t *testing.T) {
		assert.Equal(t, usecase.MsgUnknownStep, fv.Validate("billing", nil, nil).Message)
	})
}
