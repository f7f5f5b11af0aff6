package model

// Role names match the dashboards of the hospital frontend
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RolePatient Role = "patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RolePatient:
		return true
	}
	return false
}

// Staff roles may read and write every record
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleDoctor || r == RoleNurse
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// Principal is the authenticated caller attached to a request
type Principal struct {
	Subject string
	Role    Role
	PID     string
}
