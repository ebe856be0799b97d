package access

import (
	"metareview/internal/domain/articles"
	"metareview/internal/domain/projects"
)

type Policy struct {
	ProjectID    uint          `json:"project_id"`
	Role         projects.Role `json:"role"`
	CanInvite    bool          `json:"can_invite"`
	Capabilities []Capability  `json:"capabilities"`
}

func ComputePolicy(m projects.Membership) Policy {
	return Policy{
		ProjectID:    m.ProjectID,
		Role:         m.Role,
		CanInvite:    m.CanInvite,
		Capabilities: CapabilitiesFor(m.Role, m.CanInvite),
	}
}

// CanWorkOn reports whether m may enter values for a and submit it for review.
// Collaborators are limited to articles they are assigned to or uploaded.
func CanWorkOn(m projects.Membership, a articles.Article) bool {
	if m.ProjectID != a.ProjectID {
		return false
	}
	if m.Leads() {
		return true
	}
	return Can(m, CapExtract) && a.WorkedBy(m.UserID)
}

// CanDelete allows leads and the uploader to delete an article.
func CanDelete(m projects.Membership, a articles.Article) bool {
	if m.ProjectID != a.ProjectID {
		return false
	}
	return Can(m, CapDeleteArticles) || a.UploadedByID == m.UserID
}
