package domain

import (
	"context"
	"time"
)

// ApplicationStatus is the overall disposition of an application.
type ApplicationStatus string

const (
	StatusApplied                     ApplicationStatus = "Applied"
	StatusUnderReview                 ApplicationStatus = "Under Review"
	StatusScreeningScheduled          ApplicationStatus = "Screening Scheduled"
	StatusTechnicalInterviewScheduled ApplicationStatus = "Technical Interview Scheduled"
	StatusInterviewScheduled          ApplicationStatus = "Interview Scheduled"
	StatusOfferExtended               ApplicationStatus = "Offer Extended"
	StatusHired                       ApplicationStatus = "Hired"
	StatusRejected                    ApplicationStatus = "Rejected"
	StatusWithdrawn                   ApplicationStatus = "Withdrawn"
)

// ValidStatuses returns every status in pipeline order
func ValidStatuses() []ApplicationStatus {
	return []ApplicationStatus{
		StatusApplied, StatusUnderReview, StatusScreeningScheduled,
		StatusTechnicalInterviewScheduled, StatusInterviewScheduled,
		StatusOfferExtended, StatusHired, StatusRejected, StatusWithdrawn,
	}
}

func (s ApplicationStatus) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// IsTerminal reports Hired, Rejected and Withdrawn.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusHired || s == StatusRejected || s == StatusWithdrawn
}

// StatusTransitions is the status transition table. Every status may currently
// move to every other status; business rules attach here.
var StatusTransitions = buildPermissiveStatusTable()

func buildPermissiveStatusTable() map[ApplicationStatus][]ApplicationStatus {
	table := make(map[ApplicationStatus][]ApplicationStatus)
	for _, from := range ValidStatuses() {
		table[from] = ValidStatuses()
	}
	return table
}

// CanTransitionStatus looks the pair up in StatusTransitions.
func CanTransitionStatus(from, to ApplicationStatus) bool {
	for _, allowed := range StatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ApplicationStage is the position of an application in the hiring process.
type ApplicationStage string

const (
	StageApplicationReview   ApplicationStage = "Application Review"
	StageInitialScreening    ApplicationStage = "Initial Screening"
	StageTechnicalInterview  ApplicationStage = "Technical Interview"
	StageFaceToFaceInterview ApplicationStage = "Face-to-Face Interview"
	StageFinalReview         ApplicationStage = "Final Review"
	StageOffer               ApplicationStage = "Offer"
	StageClosed              ApplicationStage = "Closed"
)

// ValidStages returns the stages in process order
func ValidStages() []ApplicationStage {
	return []ApplicationStage{
		StageApplicationReview, StageInitialScreening, StageTechnicalInterview,
		StageFaceToFaceInterview, StageFinalReview, StageOffer, StageClosed,
	}
}

func (s ApplicationStage) IsValid() bool {
	return s.Position() >= 0
}

// Position is the zero-based index in the process, -1 when unknown.
func (s ApplicationStage) Position() int {
	for i, stage := range ValidStages() {
		if s == stage {
			return i
		}
	}
	return -1
}

// StageTransitions only allows staying put or moving forward.
var StageTransitions = buildForwardStageTable()

func buildForwardStageTable() map[ApplicationStage][]ApplicationStage {
	stages := ValidStages()
	table := make(map[ApplicationStage][]ApplicationStage)
	for i, from := range stages {
		table[from] = append([]ApplicationStage(nil), stages[i:]...)
	}
	return table
}

func CanTransitionStage(from, to ApplicationStage) bool {
	for _, allowed := range StageTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Recommendation is the enrichment service's hiring suggestion.
type Recommendation string

const (
	RecommendationStrongYes Recommendation = "Strongly Recommended"
	RecommendationYes       Recommendation = "Recommended"
	RecommendationMaybe     Recommendation = "Consider"
	RecommendationNo        Recommendation = "Not Recommended"
)

func ValidRecommendations() []Recommendation {
	return []Recommendation{RecommendationStrongYes, RecommendationYes, RecommendationMaybe, RecommendationNo}
}

func (r Recommendation) IsValid() bool {
	for _, valid := range ValidRecommendations() {
		if r == valid {
			return true
		}
	}
	return false
}

// Enrichment is produced out-of-band and may be absent at any time.
type Enrichment struct {
	MatchScore     int            `json:"matchScore"`
	Recommendation Recommendation `json:"recommendation"`
	Strengths      []string       `json:"strengths"`
	Concerns       []string       `json:"concerns"`
	AnalyzedAt     time.Time      `json:"analyzedAt"`
}

// Application is a candidate's submission for a job.
type Application struct {
	ID             string            `json:"id"`
	CandidateID    string            `json:"candidateId"`
	JobID          string            `json:"jobId"`
	CompanyID      string            `json:"companyId"`
	CandidateName  string            `json:"candidateName"`
	CandidateEmail string            `json:"candidateEmail"`
	Status         ApplicationStatus `json:"status"`
	Stage          ApplicationStage  `json:"stage"`
	ResumeRef      string            `json:"resumeRef"`
	CoverLetter    string            `json:"coverLetter,omitempty"`
	Enrichment     *Enrichment       `json:"enrichment,omitempty"`
	AppliedAt      time.Time         `json:"appliedAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	Version        int64             `json:"version"`
}

// Note is an append-only recruiter comment on an application.
type Note struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	Content       string    `json:"content"`
	AuthorID      string    `json:"authorId"`
	AuthorName    string    `json:"authorName"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ApplicationRepository persists applications. Update methods bump the version;
// expectedVersion 0 skips the optimistic check.
type ApplicationRepository interface {
	Create(ctx context.Context, app *Application) error
	GetByID(ctx context.Context, id string) (*Application, error)
	ListByJobID(ctx context.Context, jobID string) ([]Application, error)
	UpdateStatus(ctx context.Context, id string, status ApplicationStatus, expectedVersion int64) (*Application, error)
	UpdateStage(ctx context.Context, id string, stage ApplicationStage, expectedVersion int64) (*Application, error)
	MergeEnrichment(ctx context.Context, id string, enrichment *Enrichment) (*Application, error)
	Delete(ctx context.Context, id string) error
}

type NoteRepository interface {
	Append(ctx context.Context, note *Note) error
	ListByApplicationID(ctx context.Context, applicationID string) ([]Note, error)
}

// LifecycleUsecase owns an application after the orchestrator created it.
type LifecycleUsecase interface {
	GetApplication(ctx context.Context, id string) (*Application, error)
	ListByJob(ctx context.Context, jobID string) ([]Application, error)
	ChangeStatus(ctx context.Context, id string, status ApplicationStatus, expectedVersion int64) (*Application, error)
	ChangeStage(ctx context.Context, id string, stage ApplicationStage, expectedVersion int64) (*Application, error)
	AddNote(ctx context.Context, id, content, authorID, authorName string) (*Note, error)
	ListNotes(ctx context.Context, id string) ([]Note, error)
	ApplyEnrichment(ctx context.Context, id string, result *Enrichment) (*Application, error)
	ExportApplications(ctx context.Context, jobID string) ([]byte, string, error)
}

// EnrichmentUsecase routes analysis results to the entity they describe.
type EnrichmentUsecase interface {
	Ingest(ctx context.Context, entityType, entityID string, enrichment *Enrichment) error
}
