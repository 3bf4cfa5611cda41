// Package model defines the data structures used throughout the application.
//
// The same struct serves three purposes:
//   - JSON wire format for the REST API (`json:"..."` tags)
//   - BSON document layout for the MongoDB store (`bson:"..."` tags)
//   - the in-memory value the service and client layers pass around
//
// Keeping one struct per entity means a field added here is automatically
// carried through every layer. The SQLite store serialises the same struct
// to JSON, so it never drifts from the Mongo layout.
package model

import (
	"strings"
	"time"
)

// Profile is a user's persisted account and resume-like document.
//
// IDENTITY KEYS:
// UID is the identity provider's stable subject id and is the canonical key.
// Email is a mutable display attribute with a secondary (non-unique) index.
// A profile submitted anonymously has an empty UID until its owner signs in
// and submits again, which links ("claims") it.
type Profile struct {
	ID             string           `json:"_id"                      bson:"_id"`
	UID            string           `json:"uid,omitempty"            bson:"uid"`
	Name           string           `json:"name"                     bson:"name"                     validate:"max=200"`
	Email          string           `json:"email"                    bson:"email"                    validate:"omitempty,email"`
	LinkedIn       string           `json:"linkedin,omitempty"       bson:"linkedin,omitempty"`
	GitHub         string           `json:"github,omitempty"         bson:"github,omitempty"`
	CareerSummary  string           `json:"careerSummary,omitempty"  bson:"careerSummary,omitempty"`
	Skills         []string         `json:"skills"                   bson:"skills"`
	WorkExperience []WorkExperience `json:"workExperience,omitempty" bson:"workExperience,omitempty"`
	Projects       []PortfolioItem  `json:"projects,omitempty"       bson:"projects,omitempty"`
	Certifications []Certification  `json:"certifications,omitempty" bson:"certifications,omitempty"`
	Achievements   []Achievement    `json:"achievements,omitempty"   bson:"achievements,omitempty"`
	Hobbies        []string         `json:"hobbies,omitempty"        bson:"hobbies,omitempty"`
	Languages      []string         `json:"languages,omitempty"      bson:"languages,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"                bson:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"                bson:"updatedAt"`
}

// WorkExperience is one entry of a profile's employment history.
type WorkExperience struct {
	Company  string `json:"company"  bson:"company"`
	Role     string `json:"role"     bson:"role"`
	Duration string `json:"duration" bson:"duration"`
}

// PortfolioItem is a project listed on a profile (not a Post).
type PortfolioItem struct {
	Name        string `json:"name"        bson:"name"`
	Description string `json:"description" bson:"description"`
	Link        string `json:"link"        bson:"link"`
}

// Certification is one certificate listed on a profile.
type Certification struct {
	Name   string `json:"name"   bson:"name"`
	Issuer string `json:"issuer" bson:"issuer"`
	Date   string `json:"date"   bson:"date"`
}

// Achievement is one achievement listed on a profile.
type Achievement struct {
	Title       string `json:"title"       bson:"title"`
	Description string `json:"description" bson:"description"`
}

// NormalizeEmail returns the canonical lookup form of an email address.
//
// Every write path and every read path MUST go through this function.
// If one path lowercases and another doesn't, lookups silently miss.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
