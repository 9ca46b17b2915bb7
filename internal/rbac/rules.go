package rbac

const (
	PermQuizView      = "quiz:view"
	PermQuizCreate    = "quiz:create"
	PermAttemptCreate = "attempt:create"
	PermAttemptSave   = "attempt:save"
	PermAttemptSubmit = "attempt:submit"
	PermAttemptOwn    = "attempt:view-own"
	PermAttemptAll    = "attempt:view-all"
	PermStatsOwn      = "stats:view-own"
	PermStatsAll      = "stats:view-all"
	PermEventsView    = "events:view"
)

// Default policy. Admin gets everything.
var RolePermissions = map[string][]string{
	"student": {
		PermQuizView,
		PermAttemptCreate,
		PermAttemptSave,
		PermAttemptSubmit,
		PermAttemptOwn,
		PermStatsOwn,
	},
	"teacher": {
		PermQuizView,
		PermQuizCreate,
		PermAttemptOwn,
		PermAttemptAll,
		PermStatsOwn,
		PermStatsAll,
	},
	"admin": {
		"*",
	},
}
