package routes

import "sort"

// Name is the symbolic name of a route. Permissions are granted per Name.
type Name string

// Session and password routes. These pass the gate without a permission check.
const (
	Login           Name = "login"
	Logout          Name = "logout"
	PasswordRequest Name = "password.request"
	PasswordEmail   Name = "password.email"
	PasswordReset   Name = "password.reset"
	PasswordUpdate  Name = "password.update"
)

const (
	Me        Name = "me"
	Dashboard Name = "dashboard"

	WorkshopsIndex   Name = "workshops.index"
	WorkshopsShow    Name = "workshops.show"
	WorkshopsStore   Name = "workshops.store"
	WorkshopsUpdate  Name = "workshops.update"
	WorkshopsDestroy Name = "workshops.destroy"
	WorkshopsStatus  Name = "workshops.status"

	TicketTypesIndex   Name = "ticket-types.index"
	TicketTypesStore   Name = "ticket-types.store"
	TicketTypesUpdate  Name = "ticket-types.update"
	TicketTypesDestroy Name = "ticket-types.destroy"

	ParticipantsIndex      Name = "participants.index"
	ParticipantsShow       Name = "participants.show"
	ParticipantsStore      Name = "participants.store"
	ParticipantsUpdate     Name = "participants.update"
	ParticipantsDestroy    Name = "participants.destroy"
	ParticipantsTogglePaid Name = "participants.toggle-paid"
	ParticipantsImport     Name = "participants.import"
	ParticipantsExport     Name = "participants.export"
	ParticipantsQR         Name = "participants.qr"

	CheckinScan   Name = "checkin.scan"
	CheckinManual Name = "checkin.manual"
	CheckinUndo   Name = "checkin.undo"
	CheckinLive   Name = "checkin.live"

	RolesIndex       Name = "roles.index"
	RolesShow        Name = "roles.show"
	RolesStore       Name = "roles.store"
	RolesUpdate      Name = "roles.update"
	RolesDestroy     Name = "roles.destroy"
	RolesPermissions Name = "roles.permissions"
	PermissionsIndex Name = "permissions.index"

	UsersIndex   Name = "users.index"
	UsersShow    Name = "users.show"
	UsersStore   Name = "users.store"
	UsersUpdate  Name = "users.update"
	UsersDestroy Name = "users.destroy"

	AuditLogsIndex Name = "audit-logs.index"
)

var allowList = map[Name]bool{
	Login:           true,
	Logout:          true,
	PasswordRequest: true,
	PasswordEmail:   true,
	PasswordReset:   true,
	PasswordUpdate:  true,
}

// groups lists every grantable route; the value is only used for presentation in role administration
var groups = map[Name]string{
	Me: "account", Dashboard: "dashboard",

	WorkshopsIndex: "workshops", WorkshopsShow: "workshops", WorkshopsStore: "workshops",
	WorkshopsUpdate: "workshops", WorkshopsDestroy: "workshops", WorkshopsStatus: "workshops",

	TicketTypesIndex: "ticket-types", TicketTypesStore: "ticket-types",
	TicketTypesUpdate: "ticket-types", TicketTypesDestroy: "ticket-types",

	ParticipantsIndex: "participants", ParticipantsShow: "participants", ParticipantsStore: "participants",
	ParticipantsUpdate: "participants", ParticipantsDestroy: "participants",
	ParticipantsTogglePaid: "participants", ParticipantsImport: "participants",
	ParticipantsExport: "participants", ParticipantsQR: "participants",

	CheckinScan: "checkin", CheckinManual: "checkin", CheckinUndo: "checkin", CheckinLive: "checkin",

	RolesIndex: "roles", RolesShow: "roles", RolesStore: "roles", RolesUpdate: "roles",
	RolesDestroy: "roles", RolesPermissions: "roles", PermissionsIndex: "roles",

	UsersIndex: "users", UsersShow: "users", UsersStore: "users", UsersUpdate: "users", UsersDestroy: "users",

	AuditLogsIndex: "audit",
}

// IsAllowListed reports whether n bypasses the permission check.
// Matching is on the exact name, never on a URL path.
func IsAllowListed(n Name) bool {
	return allowList[n]
}

// All returns every route name that can be granted to a role, sorted.
func All() []Name {
	names := make([]Name, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Known reports whether n is a grantable route name
func Known(n Name) bool {
	_, ok := groups[n]
	return ok
}

// GroupOf returns the presentation group of a grantable route name
func GroupOf(n Name) string {
	return groups[n]
}

// PermissionSet is a role's grants keyed by route name
type PermissionSet map[Name]bool

// NewPermissionSet builds a set from raw route names as stored in the database.
// Unknown names are kept: a stale grant still matches its (now missing) route name only.
func NewPermissionSet(raw []string) PermissionSet {
	set := make(PermissionSet, len(raw))
	for _, r := range raw {
		set[Name(r)] = true
	}
	return set
}

func (s PermissionSet) Has(n Name) bool {
	return s[n]
}

// Names returns the raw route names, sorted
func (s PermissionSet) Names() []string {
	out := make([]string, 0, len(s))
	for n, ok := range s {
		if ok {
			out = append(out, string(n))
		}
	}
	sort.Strings(out)
	return out
}
