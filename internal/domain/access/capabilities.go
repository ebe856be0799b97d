package access

import "metareview/internal/domain/projects"

func CapabilitiesFor(role projects.Role, canInvite bool) []Capability {
	base := []Capability{CapViewProject, CapExtract, CapUpload}
	switch role {
	case projects.RoleOwner:
		return append(base,
			CapEditProject, CapInvite, CapManageMembers, CapReviewJoinRequest, CapManageFields,
			CapManageTemplates, CapAssignFields, CapAssignArticles, CapReview, CapDeleteArticles,
		)
	case projects.RoleSupervisor:
		caps := append(base,
			CapReviewJoinRequest, CapManageTemplates, CapAssignArticles, CapReview, CapDeleteArticles, CapLeave,
		)
		if canInvite {
			caps = append(caps, CapInvite)
		}
		return caps
	case projects.RoleCollaborator:
		caps := append(base, CapLeave)
		if canInvite {
			caps = append(caps, CapInvite)
		}
		return caps
	default:
		return []Capability{}
	}
}

func Can(m projects.Membership, c Capability) bool {
	for _, got := range CapabilitiesFor(m.Role, m.CanInvite) {
		if got == c {
			return true
		}
	}
	return false
}
