// Package jobs implements the job-posting lifecycle: an Open/Closed status
// toggle crossed with a reversible soft-delete, plus a terminal purge
// reachable only from the deleted state.
package jobs

import (
	"errors"
	"time"

	"unihr.org/internal/docstore"
)

// Status is the publication state of a posting, independent of soft-delete.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

var (
	ErrNotFound = errors.New("jobs: posting not found")
	// ErrConfirmationMismatch is a user-input validation failure raised before
	// any backend call is attempted.
	ErrConfirmationMismatch = errors.New("jobs: confirmation does not match posting title")
	// ErrNotDeleted guards purge: only soft-deleted postings may be removed.
	ErrNotDeleted   = errors.New("jobs: posting is not deleted")
	ErrInvalidInput = errors.New("jobs: invalid input")
)

// Posting is one recruitment record, partitioned under its organization.
// DeletedAt and ScheduledForDeletion are nil unless the posting is
// soft-deleted; ScheduledForDeletion is the purge deadline.
type Posting struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Department     string `json:"department,omitempty"`
	Location       string `json:"location,omitempty"`
	Status         Status `json:"status"`
	PostedBy       string `json:"posted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	IsDeleted            bool       `json:"is_deleted"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty"`
	ScheduledForDeletion *time.Time `json:"scheduled_for_deletion,omitempty"`
}

func postingPath(orgID, id string) docstore.Path {
	return docstore.NewPath(id, "organizations", orgID, "job_postings")
}

func postingCollection(orgID string) string {
	return "organizations/" + orgID + "/job_postings"
}

func encodePosting(p Posting) docstore.Fields {
	f := docstore.Fields{
		"organization_id": p.OrganizationID,
		"title":           p.Title,
		"description":     p.Description,
		"department":      p.Department,
		"location":        p.Location,
		"status":          string(p.Status),
		"posted_by":       p.PostedBy,
		"created_at":      p.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":      p.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"is_deleted":      p.IsDeleted,
	}
	f["deleted_at"] = encodeTime(p.DeletedAt)
	f["scheduled_for_deletion"] = encodeTime(p.ScheduledForDeletion)
	return f
}

func decodePosting(doc docstore.Document) Posting {
	return Posting{
		ID:                   doc.Path.ID,
		OrganizationID:       doc.String("organization_id"),
		Title:                doc.String("title"),
		Description:          doc.String("description"),
		Department:           doc.String("department"),
		Location:             doc.String("location"),
		Status:               Status(doc.String("status")),
		PostedBy:             doc.String("posted_by"),
		CreatedAt:            decodeTimeValue(doc.String("created_at")),
		UpdatedAt:            decodeTimeValue(doc.String("updated_at")),
		IsDeleted:            doc.Bool("is_deleted"),
		DeletedAt:            decodeTime(doc.Fields["deleted_at"]),
		ScheduledForDeletion: decodeTime(doc.Fields["scheduled_for_deletion"]),
	}
}

func encodeTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

func decodeTimeValue(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
