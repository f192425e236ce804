package models

import "time"

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Event is a user-owned calendar entry. Date and Time are kept in the
// wire formats the clients use (YYYY-MM-DD and HH:MM).
type Event struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Location     string   `json:"location"`
	Username     string   `json:"username"`
	Categories   []string `json:"categories"`
	ReminderSent bool     `json:"reminder_sent,omitempty"`
}

type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Announcement struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	CreatedBy string `json:"created_by"`
}

type EventRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Location    string  `json:"location"`
	Categories  []int64 `json:"categories,omitempty"`
}

type BulkEventRequest struct {
	Action      string  `json:"action"`
	EventIDs    []int64 `json:"event_ids"`
	NewLocation string  `json:"new_location,omitempty"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type AnnouncementRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type CategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Remember bool   `json:"remember,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type PeriodCount struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

type UserCount struct {
	Username string `json:"username"`
	Events   int    `json:"events"`
}

type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type LocationCount struct {
	Location string `json:"location"`
	Count    int    `json:"count"`
}

type Analytics struct {
	EventsByTime    []PeriodCount   `json:"events_by_time"`
	TopUsers        []UserCount     `json:"top_users"`
	CategoryStats   []CategoryCount `json:"category_stats"`
	LocationStats   []LocationCount `json:"location_stats"`
	TotalEvents     int             `json:"total_events"`
	TotalUsers      int             `json:"total_users"`
	TotalCategories int             `json:"total_categories"`
}
