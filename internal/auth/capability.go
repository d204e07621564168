package auth

import "pestops-bknd/internal/models"

// Principal is the authenticated caller as established by the token middleware.
type Principal struct {
	UserID string
	Role   models.Role
}

type Action string

const (
	ActionSync              Action = "sync"
	ActionSubmitForAgent    Action = "intervention:submit"
	ActionReadSites         Action = "site:read"
	ActionManageSites       Action = "site:write"
	ActionManageStations    Action = "station:write"
	ActionSetStationStatus  Action = "station:status"
	ActionReadInterventions Action = "intervention:read"
	ActionExport            Action = "intervention:export"
	ActionManageUsers       Action = "user:write"
)

// Resource identifies what an action targets. OwnerID is the agent an
// intervention is recorded for, or the client a site belongs to; empty when
// the action is not owner-scoped.
type Resource struct {
	Kind    string
	ID      string
	OwnerID string
}

// Can is the single permission check for the API and the reconciler.
func Can(p Principal, action Action, res Resource) bool {
	if p.UserID == "" {
		return false
	}

	switch p.Role {
	case models.RoleAdmin:
		return true

	case models.RoleSupervisor:
		return action != ActionManageUsers

	case models.RoleAgent:
		switch action {
		case ActionSync, ActionReadSites, ActionReadInterventions:
			return true
		case ActionSubmitForAgent:
			return res.OwnerID == p.UserID
		}
		return false

	case models.RoleClient:
		// clients only see sites contracted to them
		return action == ActionReadSites && res.OwnerID != "" && res.OwnerID == p.UserID
	}
	return false
}
