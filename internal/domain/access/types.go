package access

// Capability names an action a project member may perform.
type Capability string

const (
	CapViewProject       Capability = "view_project"
	CapEditProject       Capability = "edit_project"
	CapInvite            Capability = "invite"
	CapManageMembers     Capability = "manage_members"
	CapReviewJoinRequest Capability = "review_join_requests"
	CapManageFields      Capability = "manage_fields"
	CapManageTemplates   Capability = "manage_templates"
	CapAssignFields      Capability = "assign_fields"
	CapAssignArticles    Capability = "assign_articles"
	CapReview            Capability = "review"
	CapExtract           Capability = "extract"
	CapUpload            Capability = "upload"
	CapDeleteArticles    Capability = "delete_articles"
	CapLeave             Capability = "leave"
)
