package models

import "errors"

var (
	ErrNoRequest           = errors.New("requested request does not exist")
	ErrNoStep              = errors.New("requested approval step does not exist")
	ErrNoApprover          = errors.New("requested approver does not exist")
	ErrNoTemplate          = errors.New("requested workflow template does not exist")
	ErrNoRule              = errors.New("requested approval rule does not exist")
	ErrNoBrfq              = errors.New("requested brfq does not exist")
	ErrNoSupplier          = errors.New("requested supplier does not exist")
	ErrNoModification      = errors.New("requested modification request does not exist")
	ErrStepDecided         = errors.New("approval step is not pending, it has already been decided")
	ErrModificationDecided = errors.New("modification request is already approved or rejected")
	ErrForbidden           = errors.New("provided user does not have permission for this operation")
	ErrUnauthorized        = errors.New("missing or invalid credentials")
	ErrInvalidToken        = errors.New("invalid token")
	ErrValidation          = errors.New("validation failed")
	ErrApproverUnresolved  = errors.New("no approver could be resolved for approval step")
)
