package domain

// Role groups actors by what they may do.
type Role string

const (
	RoleAuthor    Role = "author"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Action names a guarded operation.
type Action string

const (
	ActionEdit           Action = "article:edit"
	ActionSkipInfobox    Action = "article:skip-infobox"
	ActionEditAICategory Action = "article:edit-ai-categories"
	ActionRestore        Action = "article:restore"
	ActionModerate       Action = "moderation:decide"
	ActionArchive        Action = "article:archive"
	ActionDelete         Action = "article:delete"
	ActionGenerate       Action = "generation:run"
)

// Permissions is the default role policy. Moderators inherit author rights and
// admins inherit moderator rights.
var Permissions = map[Role][]Action{
	RoleAuthor:    {ActionEdit, ActionGenerate},
	RoleModerator: {ActionRestore, ActionModerate, ActionArchive, ActionDelete},
	RoleAdmin:     {ActionSkipInfobox, ActionEditAICategory},
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Name string
	Role Role
}
