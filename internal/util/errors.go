package util

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies a workflow failure so the HTTP layer can choose a
// status and the client can tell a business-rule denial (show an upgrade
// prompt) from a malformed request (show a generic error).
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindPermission     ErrorKind = "permission"
	KindConflict       ErrorKind = "conflict"
	KindInvalidState   ErrorKind = "invalid_state_transition"
	KindEntitlement    ErrorKind = "entitlement"
	KindIncompleteWork ErrorKind = "incomplete_grading"
	KindNotFound       ErrorKind = "not_found"
	KindInternal       ErrorKind = "internal"
)

var (
	ErrTemplateInactive     = &AppError{Kind: KindValidation, Message: "exam template is inactive or does not exist"}
	ErrActiveSessionExists  = &AppError{Kind: KindConflict, Message: "an exam session is already in progress for this student"}
	ErrAlreadyAssigned      = &AppError{Kind: KindConflict, Message: "evaluation already assigned for this exam session"}
	ErrInvalidTeacher       = &AppError{Kind: KindValidation, Message: "assignee is not a teacher or admin account"}
	ErrNotAssignedTeacher   = &AppError{Kind: KindPermission, Message: "caller is not the assigned teacher"}
	ErrNoActiveSubscription = &AppError{Kind: KindEntitlement, Message: "no active subscription"}
	ErrSubscriptionExpired  = &AppError{Kind: KindEntitlement, Message: "subscription has expired"}
	ErrLimitReached         = &AppError{Kind: KindEntitlement, Message: "monthly exam limit reached"}
	ErrSessionNotFound      = &AppError{Kind: KindNotFound, Message: "exam session not found"}
	ErrEvaluationNotFound   = &AppError{Kind: KindNotFound, Message: "evaluation not found"}
	ErrUserNotFound         = &AppError{Kind: KindNotFound, Message: "user not found"}
	ErrEmailRegistered      = &AppError{Kind: KindConflict, Message: "email already registered"}
	ErrPermissionDenied     = &AppError{Kind: KindPermission, Message: "permission denied"}
)

// AppError carries the kind alongside a human-readable reason. Business
// denials surface Message verbatim to end users; internal failures are
// reported generically and logged precisely.
type AppError struct {
	Kind    ErrorKind
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// KindOf extracts the classification of err, or KindInternal for plain
// storage/driver errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	var stateErr *InvalidStateTransitionError
	if errors.As(err, &stateErr) {
		return KindInvalidState
	}
	var marksErr *MarksExceedPossibleError
	if errors.As(err, &marksErr) {
		return KindValidation
	}
	var gradingErr *IncompleteGradingError
	if errors.As(err, &gradingErr) {
		return KindIncompleteWork
	}
	return KindInternal
}

// InvalidStateTransitionError is a workflow-ordering bug on the caller's
// side: the operation is not permitted from the entity's current state.
type InvalidStateTransitionError struct {
	Entity    string
	From      string
	Operation string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s: operation %q not permitted in state %q", e.Entity, e.Operation, e.From)
}

func NewInvalidTransition(entity, from, operation string) error {
	return &InvalidStateTransitionError{Entity: entity, From: from, Operation: operation}
}

// MarksExceedPossibleError rejects a whole marks batch because one entry
// awards more than the question allows.
type MarksExceedPossibleError struct {
	QuestionNumber int
	Awarded        float64
	Possible       float64
}

func (e *MarksExceedPossibleError) Error() string {
	return fmt.Sprintf("question %d: awarded %.2f exceeds possible %.2f", e.QuestionNumber, e.Awarded, e.Possible)
}

// IncompleteGradingError names the manual questions still missing marks so
// the teacher can resume grading.
type IncompleteGradingError struct {
	MissingQuestions []int
}

func (e *IncompleteGradingError) Error() string {
	nums := append([]int(nil), e.MissingQuestions...)
	sort.Ints(nums)
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("grading incomplete: questions %s have no marks", strings.Join(parts, ", "))
}
