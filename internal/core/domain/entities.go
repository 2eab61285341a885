package domain

import "strings"

// Role represents user role in the system
type Role string

const (
	RoleBorrower   Role = "BORROWER"
	RoleLender     Role = "LENDER"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleBorrower, RoleLender, RoleSuperAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r is LENDER or SUPER_ADMIN
func (r Role) IsStaff() bool {
	return r == RoleLender || r == RoleSuperAdmin
}

// UserStatus represents account status
type UserStatus string

const (
	UserStatusActive              UserStatus = "ACTIVE"
	UserStatusPendingVerification UserStatus = "PENDING_VERIFICATION"
	UserStatusLocked              UserStatus = "LOCKED"
	UserStatusSuspended           UserStatus = "SUSPENDED"
)

// Valid reports whether s is a known account status
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusPendingVerification, UserStatusLocked, UserStatusSuspended:
		return true
	}
	return false
}

// CanAuthenticate is false for LOCKED and SUSPENDED accounts, whatever the password
func (s UserStatus) CanAuthenticate() bool {
	return s != UserStatusLocked && s != UserStatusSuspended
}

// MaxFailedAttempts is the number of consecutive failed logins that locks an account
const MaxFailedAttempts = 5

// Actor is the authenticated principal performing an operation
type Actor struct {
	ID        string
	Role      Role
	Email     string
	IPAddress string
}

// IsStaff reports whether the actor holds a staff role
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// Label identifies the actor in audit metadata: the email when known, else the id
func (a Actor) Label() string {
	if a.Email != "" {
		return a.Email
	}
	return a.ID
}

// NormalizeEmail lower-cases and trims an email for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ============================================================
// Access requirements
// ============================================================

type accessKind int

const (
	accessPublic accessKind = iota
	accessAuthenticated
	accessRole
)

// Access is the role requirement attached to an endpoint
type Access struct {
	kind accessKind
	role Role
}

var (
	// Public requires no session
	Public = Access{kind: accessPublic}
	// AnyAuthenticated accepts any valid session; finer checks belong to the operation
	AnyAuthenticated = Access{kind: accessAuthenticated}
)

// RequireRole accepts sessions holding role, or SUPER_ADMIN
func RequireRole(role Role) Access {
	return Access{kind: accessRole, role: role}
}

// RequiresSession reports whether a verified session must be present
func (a Access) RequiresSession() bool {
	return a.kind != accessPublic
}

// Allows reports whether a session with the given role satisfies the requirement.
// SUPER_ADMIN is a superset of every role.
func (a Access) Allows(role Role) bool {
	switch a.kind {
	case accessPublic:
		return true
	case accessAuthenticated:
		return role.Valid()
	case accessRole:
		return role == a.role || role == RoleSuperAdmin
	}
	return false
}

func (a Access) String() string {
	switch a.kind {
	case accessPublic:
		return "public"
	case accessAuthenticated:
		return "authenticated"
	}
	return "role:" + string(a.role)
}

// ============================================================
// Audit actions
// ============================================================

// AuditAction is the closed set of audit log action kinds
type AuditAction string

const (
	AuditUserLogin          AuditAction = "USER_LOGIN"
	AuditUserLoginFailed    AuditAction = "USER_LOGIN_FAILED"
	AuditUserLogout         AuditAction = "USER_LOGOUT"
	AuditUserRegister       AuditAction = "USER_REGISTER"
	AuditUserCreate         AuditAction = "USER_CREATE"
	AuditUserUpdate         AuditAction = "USER_UPDATE"
	AuditUserDelete         AuditAction = "USER_DELETE"
	AuditProfileUpdate      AuditAction = "PROFILE_UPDATE"
	AuditLoanCreate         AuditAction = "LOAN_CREATE"
	AuditLoanSubmit         AuditAction = "LOAN_SUBMIT"
	AuditLoanUpdate         AuditAction = "LOAN_UPDATE"
	AuditStatusChange       AuditAction = "STATUS_CHANGE"
	AuditDocumentUpload     AuditAction = "DOCUMENT_UPLOAD"
	AuditNoteCreate         AuditAction = "NOTE_CREATE"
	AuditSystemConfigChange AuditAction = "SYSTEM_CONFIG_CHANGE"
)

var auditActions = map[AuditAction]struct{}{
	AuditUserLogin: {}, AuditUserLoginFailed: {}, AuditUserLogout: {}, AuditUserRegister: {},
	AuditUserCreate: {}, AuditUserUpdate: {}, AuditUserDelete: {}, AuditProfileUpdate: {},
	AuditLoanCreate: {}, AuditLoanSubmit: {}, AuditLoanUpdate: {}, AuditStatusChange: {},
	AuditDocumentUpload: {}, AuditNoteCreate: {}, AuditSystemConfigChange: {},
}

// Valid reports whether a is part of the closed action set
func (a AuditAction) Valid() bool {
	_, ok := auditActions[a]
	return ok
}

// Metadata is the structured payload of an audit entry
type Metadata map[string]any
