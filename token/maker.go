package token

import "time"

// Role is the workflow seat an identity acts in. It travels with the identity for the
// audit trail; the workflow itself only records the identity.
type Role string

const (
	RoleUploader     Role = "UPLOADER"
	RoleEmployer     Role = "EMPLOYER"
	RoleBoardMaker   Role = "BOARD_MAKER"
	RoleBoardChecker Role = "BOARD_CHECKER"
	RoleOperator     Role = "OPERATOR"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUploader, RoleEmployer, RoleBoardMaker, RoleBoardChecker, RoleOperator:
		return true
	}
	return false
}

// Actor is who performs a maker/checker/validator step
type Actor struct {
	Identity string `json:"identity"`
	Role     Role   `json:"role"`
}

type Maker interface {
	CreateToken(actor Actor, duration time.Duration) (string, error)
	VerifyToken(token string) (*Payload, error)
}
