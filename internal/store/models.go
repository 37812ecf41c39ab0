package store

import (
	"database/sql"
	"time"

	"github.com/olegiv/svcportal/internal/model"
)

// User is a row of the users table.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Model converts the row into a domain user.
func (u User) Model() model.User {
	return model.User{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         model.Role(u.Role),
		Name:         u.Name,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// Service is a row of the services table.
type Service struct {
	ID          string
	Name        string
	Description string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Model converts the row into a domain service.
func (s Service) Model() model.Service {
	return model.Service{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Status:      model.ServiceStatus(s.Status),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// AccessRequest is a row of the access_requests table.
type AccessRequest struct {
	ID              int64
	UserID          int64
	ServiceID       string
	Kind            string
	Status          string
	RequestDate     time.Time
	ResponseDate    sql.NullTime
	RejectionReason sql.NullString
	Resolution      string
	ParentID        sql.NullInt64
	ReviewerID      sql.NullInt64
	AdminCreated    bool
	RequestedBy     sql.NullInt64
	UpdatedAt       time.Time
}

// Model converts the row into a domain access request.
func (r AccessRequest) Model() model.AccessRequest {
	out := model.AccessRequest{
		ID:           r.ID,
		UserID:       r.UserID,
		ServiceID:    r.ServiceID,
		Kind:         model.RequestKind(r.Kind),
		Status:       model.RequestStatus(r.Status),
		RequestDate:  r.RequestDate,
		Resolution:   model.Resolution(r.Resolution),
		AdminCreated: r.AdminCreated,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.ResponseDate.Valid {
		t := r.ResponseDate.Time
		out.ResponseDate = &t
	}
	if r.RejectionReason.Valid {
		s := r.RejectionReason.String
		out.RejectionReason = &s
	}
	if r.ParentID.Valid {
		id := r.ParentID.Int64
		out.ParentID = &id
	}
	if r.ReviewerID.Valid {
		id := r.ReviewerID.Int64
		out.ReviewerID = &id
	}
	if r.RequestedBy.Valid {
		id := r.RequestedBy.Int64
		out.RequestedBy = &id
	}
	return out
}

// AccessRequestDetailsRow is an access request joined with user email and service name.
type AccessRequestDetailsRow struct {
	AccessRequest
	UserEmail   string
	ServiceName string
}

// Model converts the row into domain details.
func (r AccessRequestDetailsRow) Model() model.AccessRequestDetails {
	return model.AccessRequestDetails{
		AccessRequest: r.AccessRequest.Model(),
		UserEmail:     r.UserEmail,
		ServiceName:   r.ServiceName,
	}
}

// ContentItem is a row of the content_items table.
type ContentItem struct {
	ID          int64
	Title       string
	Content     string
	Category    string
	ServiceID   sql.NullString
	PostType    string
	AuthorID    int64
	IsPublished bool
	Status      sql.NullString
	Response    sql.NullString
	RespondedBy sql.NullInt64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Model converts the row into a domain content item.
func (c ContentItem) Model() model.ContentItem {
	out := model.ContentItem{
		ID:          c.ID,
		Title:       c.Title,
		Content:     c.Content,
		Category:    c.Category,
		PostType:    model.PostType(c.PostType),
		AuthorID:    c.AuthorID,
		IsPublished: c.IsPublished,
		Status:      model.InquiryStatus(c.Status.String),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.ServiceID.Valid {
		s := c.ServiceID.String
		out.ServiceID = &s
	}
	if c.Response.Valid {
		s := c.Response.String
		out.Response = &s
	}
	if c.RespondedBy.Valid {
		id := c.RespondedBy.Int64
		out.RespondedBy = &id
	}
	return out
}

// Event is a row of the events table.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	Metadata  string
	IpAddress string
	CreatedAt time.Time
}
