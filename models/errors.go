package models

import "errors"

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindConflict
	KindDuplicate
)

// Error carries a kind so the HTTP layer can pick a status code without
// string matching.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrInvalidStatus    = &Error{KindValidation, "invalid status"}
	ErrInvalidCondition = &Error{KindValidation, "invalid condition"}
	ErrInvalidQuantity  = &Error{KindValidation, "quantity must be between 1 and 500"}
	ErrInvalidThreshold = &Error{KindValidation, "stock threshold must not be negative"}
	ErrInvalidDates     = &Error{KindValidation, "end date must not be before start date"}
	ErrEmptyIDs         = &Error{KindValidation, "ids must not be empty"}
	ErrNameRequired     = &Error{KindValidation, "name and type are required"}

	ErrEquipmentNotFound = &Error{KindNotFound, "equipment not found"}
	ErrRequestNotFound   = &Error{KindNotFound, "request not found"}
	ErrGroupNotFound     = &Error{KindNotFound, "equipment group not found"}
	ErrUserNotFound      = &Error{KindNotFound, "user not found"}

	ErrEquipmentUnavailable = &Error{KindConflict, "equipment is not available"}
	ErrAlreadyProcessed     = &Error{KindConflict, "request already processed"}
	ErrNotApproved          = &Error{KindConflict, "request is not approved"}
	ErrEquipmentInUse       = &Error{KindConflict, "equipment is checked out or referenced by an open request"}
	ErrEquipmentRetired     = &Error{KindConflict, "equipment is retired"}

	ErrDuplicateSerial = &Error{KindDuplicate, "serial already exists"}

	ErrAdminApprovalRequired        = &Error{KindAuth, "low stock: admin approval required"}
	ErrManagerApprovalRequiredFirst = &Error{KindAuth, "manager approval required first"}
	ErrForbidden                    = &Error{KindAuth, "forbidden"}
)
