package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// System roles. Closed enumeration — policies reference these values only.
const (
	RolCajero        = "cajero"
	RolSupervisor    = "supervisor"
	RolAdministrador = "administrador"
)

// Roles is a set of role names persisted as a JSON array in a text column.
type Roles []string

// Contains reports set membership.
func (r Roles) Contains(rol string) bool {
	for _, v := range r {
		if v == rol {
			return true
		}
	}
	return false
}

func (r Roles) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal(r)
	return string(b), err
}

func (r *Roles) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	case nil:
		*r = nil
		return nil
	default:
		return fmt.Errorf("roles: cannot scan %T", src)
	}
}
