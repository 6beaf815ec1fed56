// models/user.go
package models

import "time"

// CurrentUser is the signed-in identity persisted next to the offline log.
type CurrentUser struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CampusID  string    `json:"campusId"`
	LoginTime time.Time `json:"loginTime"`
}

func (u CurrentUser) Reporter() Reporter {
	return Reporter{
		UID:      u.UID,
		Name:     u.Name,
		Email:    u.Email,
		CampusID: u.CampusID,
	}
}
