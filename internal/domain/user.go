package domain

import (
	"strings"
	"time"
)

// Role is the account type of a user.
type Role string

const (
	RoleWorker   Role = "WORKER"
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleWorker, RoleCustomer, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes user input such as "worker" into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Location is a point on the map.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are inside WGS84 bounds.
func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// User is a marketplace account. Worker-only fields stay zero for customers.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Surname       string    `json:"surname,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	Balance       int64     `json:"balance"`
	Rating        float64   `json:"rating"`
	RatingCount   int       `json:"ratingCount"`
	Skills        []string  `json:"skills,omitempty"`
	HourlyRate    int64     `json:"hourlyRate,omitempty"`
	CompletedJobs int       `json:"completedJobs"`
	IsOnline      bool      `json:"isOnline"`
	Location      *Location `json:"location,omitempty"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	IsBanned      bool      `json:"isBanned"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UserPatch carries the profile fields a user may change. Nil means untouched.
type UserPatch struct {
	Name       *string   `json:"name,omitempty"`
	Surname    *string   `json:"surname,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Email      *string   `json:"email,omitempty"`
	Skills     *[]string `json:"skills,omitempty"`
	HourlyRate *int64    `json:"hourlyRate,omitempty"`
	Location   *Location `json:"location,omitempty"`
	AvatarURL  *string   `json:"avatarUrl,omitempty"`
	Bio        *string   `json:"bio,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Surname == nil && p.Phone == nil && p.Email == nil &&
		p.Skills == nil && p.HourlyRate == nil && p.Location == nil &&
		p.AvatarURL == nil && p.Bio == nil
}

// Apply copies the set fields of p onto u.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Surname != nil {
		u.Surname = *p.Surname
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Skills != nil {
		u.Skills = append([]string(nil), (*p.Skills)...)
	}
	if p.HourlyRate != nil {
		u.HourlyRate = *p.HourlyRate
	}
	if p.Location != nil {
		loc := *p.Location
		u.Location = &loc
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
}

// NormalizeEmail lowercases and trims an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Public strips the fields only the owner and admins may see.
func (u User) Public() User {
	u.Balance = 0
	u.Phone = ""
	return u
}

// CanManage reports whether actor may edit target's profile.
func (u User) CanManage(targetID string) bool {
	return u.ID == targetID || u.Role == RoleAdmin
}
