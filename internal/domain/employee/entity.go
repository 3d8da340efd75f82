package employee

import "time"

// Employee is the identity slice of an employee record the payroll engine reads.
type Employee struct {
	ID          string
	FullName    string
	Email       string
	Department  *string
	Designation *string
	City        string
	State       string
	IsActive    bool
	HireDate    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Identity is the shape embedded in payroll responses
type Identity struct {
	ID          string  `json:"id"`
	FullName    string  `json:"full_name"`
	Email       string  `json:"email"`
	Department  *string `json:"department,omitempty"`
	Designation *string `json:"designation,omitempty"`
}

func (e Employee) Identity() Identity {
	return Identity{
		ID:          e.ID,
		FullName:    e.FullName,
		Email:       e.Email,
		Department:  e.Department,
		Designation: e.Designation,
	}
}
