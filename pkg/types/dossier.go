// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared by the store, the
// dossier pipeline, the HTTP API and the CLI.
package types

import "time"

// RunStatus tracks a generation batch through its lifecycle.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// GateStatus is the outcome of one numbered gate.
type GateStatus string

const (
	GatePassed        GateStatus = "passed"
	GateFailed        GateStatus = "failed"
	GateNeedsRevision GateStatus = "needs_revision"
)

// Valid reports whether s is one of the known gate statuses.
func (s GateStatus) Valid() bool {
	switch s {
	case GatePassed, GateFailed, GateNeedsRevision:
		return true
	}
	return false
}

// Gate numbers. Gates 1 and 4 are classified automatically; gates 2 and 3
// are adjudicated by a human and only ever reset to needs_revision.
const (
	GateStructure = 1
	GateDesign    = 2
	GateData      = 3
	GateCouncil   = 4
)

// DossierKind identifies one of the five dossier sections.
type DossierKind string

const (
	KindPitch       DossierKind = "PITCH"
	KindDesign      DossierKind = "DESIGN"
	KindDataPlan    DossierKind = "DATA_PLAN"
	KindPositioning DossierKind = "POSITIONING"
	KindNextSteps   DossierKind = "NEXT_STEPS"
)

// DossierKinds lists the sections in generation and presentation order.
var DossierKinds = []DossierKind{KindPitch, KindDesign, KindDataPlan, KindPositioning, KindNextSteps}

// Filename returns the Markdown file name used for exports and snapshots.
func (k DossierKind) Filename() string {
	return string(k) + ".md"
}

// Valid reports whether k is one of the five dossier kinds.
func (k DossierKind) Valid() bool {
	for _, known := range DossierKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Idea statuses. An idea with an empty status is in the drafted state.
const (
	IdeaDrafted     = ""
	IdeaResubmitted = "resubmitted"
)

// Council round statuses before scoring replaces them.
const RoundGenerated = "generated"

// Mailbox directions for agent memos.
const (
	DirectionInbox  = "inbox"
	DirectionOutbox = "outbox"
)

// Run is one generation batch.
type Run struct {
	ID int64 `json:"id" yaml:"id"`

	// Status moves queued → running → completed|failed exactly once.
	Status RunStatus `json:"status" yaml:"status"`

	// Provider names the generation backend (openai, anthropic, gemini).
	Provider string `json:"provider" yaml:"provider"`

	// Model is the provider model identifier.
	Model string `json:"model" yaml:"model"`

	// IdeaCount is the number of ideas requested.
	IdeaCount int `json:"idea_count" yaml:"idea_count"`

	// TopicFocus optionally narrows every prompt.
	TopicFocus string `json:"topic_focus,omitempty" yaml:"topic_focus,omitempty"`

	// LiteratureQueryID references the assessment injected into prompts.
	LiteratureQueryID *int64 `json:"literature_query_id,omitempty" yaml:"literature_query_id,omitempty"`

	// UseAssessmentSeeds seeds the first ideas from the assessment's idea prompts.
	UseAssessmentSeeds bool `json:"use_assessment_seeds" yaml:"use_assessment_seeds"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	// Log holds the failure message of a failed run.
	Log string `json:"log,omitempty" yaml:"log,omitempty"`
}

// Idea is one dossier under construction.
type Idea struct {
	ID               int64     `json:"id" yaml:"id"`
	RunID            int64     `json:"run_id" yaml:"run_id"`
	Title            string    `json:"title,omitempty" yaml:"title,omitempty"`
	LanePrimary      string    `json:"lane_primary,omitempty" yaml:"lane_primary,omitempty"`
	LaneSecondary    string    `json:"lane_secondary,omitempty" yaml:"lane_secondary,omitempty"`
	BreakthroughType string    `json:"breakthrough_type,omitempty" yaml:"breakthrough_type,omitempty"`
	BigClaim         string    `json:"big_claim,omitempty" yaml:"big_claim,omitempty"`
	Status           string    `json:"status,omitempty" yaml:"status,omitempty"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" yaml:"updated_at"`
}

// IdeaHeader carries the values parsed out of a pitch and written back onto
// the idea. Empty fields clear the stored value.
type IdeaHeader struct {
	Title            string
	BigClaim         string
	LanePrimary      string
	LaneSecondary    string
	BreakthroughType string
}

// DossierPart is one generated section of a dossier.
type DossierPart struct {
	ID        int64       `json:"id" yaml:"id"`
	IdeaID    int64       `json:"idea_id" yaml:"idea_id"`
	Kind      DossierKind `json:"kind" yaml:"kind"`
	Content   string      `json:"content" yaml:"content"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" yaml:"updated_at"`
}

// CouncilRound is one invocation of the review council for an idea.
type CouncilRound struct {
	ID          int64     `json:"id" yaml:"id"`
	IdeaID      int64     `json:"idea_id" yaml:"idea_id"`
	RoundNumber int       `json:"round_number" yaml:"round_number"`
	Status      string    `json:"status" yaml:"status"`
	Notes       string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// CouncilMemo is one referee's review text.
type CouncilMemo struct {
	ID     int64 `json:"id" yaml:"id"`
	IdeaID int64 `json:"idea_id" yaml:"idea_id"`

	// RoundID is nil for memos that predate round tracking.
	RoundID *int64 `json:"round_id,omitempty" yaml:"round_id,omitempty"`

	Referee   string    `json:"referee" yaml:"referee"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// GateResult is the live outcome of one gate for one idea.
type GateResult struct {
	IdeaID    int64      `json:"idea_id" yaml:"idea_id"`
	Gate      int        `json:"gate" yaml:"gate"`
	Status    GateStatus `json:"status" yaml:"status"`
	Notes     string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"updated_at"`
}

// AgentMemo is an append-only audit record of a pipeline step.
type AgentMemo struct {
	ID        int64     `json:"id" yaml:"id"`
	RunID     int64     `json:"run_id" yaml:"run_id"`
	IdeaID    *int64    `json:"idea_id,omitempty" yaml:"idea_id,omitempty"`
	Direction string    `json:"direction" yaml:"direction"`
	Sender    string    `json:"sender" yaml:"sender"`
	Topic     string    `json:"topic" yaml:"topic"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Credential is a sealed provider API key.
type Credential struct {
	ID         string    `json:"id" yaml:"id"`
	Provider   string    `json:"provider" yaml:"provider"`
	Name       string    `json:"name,omitempty" yaml:"name,omitempty"`
	Ciphertext []byte    `json:"-" yaml:"-"`
	Nonce      []byte    `json:"-" yaml:"-"`
	Salt       []byte    `json:"-" yaml:"-"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// LiteratureAssessment is the free-text synthesis of one literature query.
type LiteratureAssessment struct {
	QueryID   int64     `json:"query_id" yaml:"query_id"`
	Content   string    `json:"content" yaml:"content"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// LatestPerKind reduces parts to one part per kind: the one with the greatest
// UpdatedAt. A later part replaces the incumbent when its timestamp is equal
// or newer. Kinds keep the position of their first appearance, so a slice
// that already holds at most one part per kind is returned unchanged.
func LatestPerKind(parts []DossierPart) []DossierPart {
	index := make(map[DossierKind]int, len(parts))
	var latest []DossierPart
	for _, p := range parts {
		i, ok := index[p.Kind]
		if !ok {
			index[p.Kind] = len(latest)
			latest = append(latest, p)
			continue
		}
		if !p.UpdatedAt.Before(latest[i].UpdatedAt) {
			latest[i] = p
		}
	}
	return latest
}
