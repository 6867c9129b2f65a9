package model

// Role identifies the function of a team member on board.
type Role string

const (
	RoleDriver Role = "driver"
	RoleNurse  Role = "nurse"
	RoleDoctor Role = "doctor"
)

// TeamMember is a staff member rostered onto a vehicle.
type TeamMember struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// Vehicle represents a transport vehicle and its current roster.
type Vehicle struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Registration string `json:"registration"`
	// Team is the ordered roster. The driver slot is load-bearing: without
	// one the vehicle cannot be assigned.
	Team          []TeamMember `json:"team"`
	RequiredRoles []Role       `json:"required_roles,omitempty"`
	OptionalRoles []Role       `json:"optional_roles,omitempty"`
	// CurrentMissionID references the booking currently being transported.
	// Empty means the vehicle is idle.
	CurrentMissionID string `json:"current_mission_id,omitempty"`
}

// Driver returns the first rostered driver, if any.
func (v Vehicle) Driver() (TeamMember, bool) {
	for _, m := range v.Team {
		if m.Role == RoleDriver {
			return m, true
		}
	}
	return TeamMember{}, false
}

// HasRole reports whether any team member fills the given role.
func (v Vehicle) HasRole(r Role) bool {
	for _, m := range v.Team {
		if m.Role == r {
			return true
		}
	}
	return false
}

// HasMember reports whether the given user is on the roster.
func (v Vehicle) HasMember(userID string) bool {
	for _, m := range v.Team {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// IsReady reports whether the vehicle can take a new assignment: a driver is
// rostered and no mission is in progress.
func (v Vehicle) IsReady() bool {
	return v.HasRole(RoleDriver) && v.CurrentMissionID == ""
}
