package dto

import (
	"encoding/json"

	"metareview/internal/domain/access"
	"metareview/internal/domain/articles"
	"metareview/internal/domain/catalog"
	"metareview/internal/domain/notifications"
	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"
)

func BuildUser(u *users.User) UserDTO {
	out := UserDTO{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName(),
		Role:         string(u.RoleName()),
		AuthProvider: u.AuthProvider,
		IsVerified:   u.IsVerified,
		IsActive:     u.IsActive,
	}
	if u.Profile != nil {
		out.FirstName = u.Profile.FirstName
		out.LastName = u.Profile.LastName
	}
	if !u.CreatedAt.IsZero() {
		s := u.CreatedAt.Format("2006-01-02 15:04")
		out.CreatedAt = &s
	}
	return out
}

func BuildUsers(list []users.User) []UserDTO {
	out := make([]UserDTO, 0, len(list))
	for i := range list {
		out = append(out, BuildUser(&list[i]))
	}
	return out
}

func BuildUserLite(u *users.User) *UserLiteDTO {
	if u == nil {
		return nil
	}
	return &UserLiteDTO{ID: u.ID, Username: u.Username, FullName: u.FullName()}
}

func BuildRole(r users.Role) RoleDTO {
	perms := []string(r.Permissions)
	if perms == nil {
		perms = []string{}
	}
	return RoleDTO{ID: r.ID, Name: string(r.Name), Description: r.Description, Permissions: perms}
}

func BuildProject(p *projects.Project) ProjectDTO {
	return ProjectDTO{
		ID:             p.ID,
		Name:           p.Name,
		Category:       p.Category,
		Status:         p.Status,
		Description:    p.Description,
		OwnerID:        p.OwnerID,
		Owner:          BuildUserLite(p.Owner),
		TotalArticles:  p.TotalArticles,
		WorkedArticles: p.WorkedArticles,
		Progress:       p.Progress(),
		CreatedAt:      p.CreatedAt,
	}
}

func BuildMember(m projects.Membership) MemberDTO {
	return MemberDTO{
		UserID:       m.UserID,
		User:         BuildUserLite(m.User),
		Role:         m.Role,
		CanInvite:    m.CanInvite,
		JoinedAt:     m.JoinedAt,
		Capabilities: access.CapabilitiesFor(m.Role, m.CanInvite),
	}
}

func BuildMembers(ms []projects.Membership) []MemberDTO {
	out := make([]MemberDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, BuildMember(m))
	}
	return out
}

func BuildJoinRequest(r projects.JoinRequest) JoinRequestDTO {
	return JoinRequestDTO{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		User:        BuildUserLite(r.User),
		Status:      r.Status,
		Message:     r.Message,
		RespondedAt: r.RespondedAt,
		CreatedAt:   r.CreatedAt,
	}
}

func BuildJoinRequests(rs []projects.JoinRequest) []JoinRequestDTO {
	out := make([]JoinRequestDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, BuildJoinRequest(r))
	}
	return out
}

func BuildInvitation(i *projects.Invitation) *InvitationDTO {
	if i == nil {
		return nil
	}
	return &InvitationDTO{
		ID:        i.ID,
		ProjectID: i.ProjectID,
		Email:     i.Email,
		Role:      i.Role,
		Status:    i.Status,
		ExpiresAt: i.ExpiresAt,
	}
}

func BuildField(f *catalog.MetadataField) *FieldDTO {
	if f == nil {
		return nil
	}
	opts := []string(f.Options)
	if opts == nil {
		opts = []string{}
	}
	return &FieldDTO{
		ID:          f.ID,
		Name:        f.Name,
		Code:        f.Code,
		Category:    string(f.Category),
		DataType:    string(f.DataType),
		Description: f.Description,
		Options:     opts,
		Predefined:  f.Predefined,
		Global:      f.IsGlobal(),
		ProjectID:   f.ProjectID,
	}
}

func BuildFields(fs []catalog.MetadataField) []FieldDTO {
	out := make([]FieldDTO, 0, len(fs))
	for i := range fs {
		out = append(out, *BuildField(&fs[i]))
	}
	return out
}

func BuildTemplate(t *catalog.SearchTemplate) TemplateDTO {
	return TemplateDTO{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Name:        t.Name,
		Description: t.Description,
		IsDefault:   t.IsDefault,
		Fields:      BuildFields(t.Fields),
		CreatedAt:   t.CreatedAt,
	}
}

func BuildArticle(a *articles.Article) ArticleDTO {
	return ArticleDTO{
		ID:            a.ID,
		ProjectID:     a.ProjectID,
		CitationKey:   a.CitationKey,
		Title:         a.Title,
		DOI:           a.DOI,
		Status:        a.Status,
		UploadedByID:  a.UploadedByID,
		UploadedBy:    BuildUserLite(a.UploadedBy),
		AssigneeID:    a.AssigneeID,
		Assignee:      BuildUserLite(a.Assignee),
		SourceFile:    a.SourceFile,
		OriginalID:    a.OriginalID,
		ReviewComment: a.ReviewComment,
		UploadedAt:    a.CreatedAt,
		AssignedAt:    a.AssignedAt,
		WorkStartedAt: a.WorkStartedAt,
		SubmittedAt:   a.SubmittedAt,
		ApprovedAt:    a.ApprovedAt,
		ReviewedAt:    a.ReviewedAt,
	}
}

// BuildArticleWithProgress attaches derived progress from the loaded assignments.
func BuildArticleWithProgress(a *articles.Article, p articles.Progress) ArticleDTO {
	out := BuildArticle(a)
	out.Progress = &p
	return out
}

func BuildMetadata(a *articles.Article) map[string]any {
	out := map[string]any{}
	if len(a.Metadata) > 0 {
		_ = json.Unmarshal(a.Metadata, &out)
	}
	return out
}

func BuildAssignment(fa *articles.FieldAssignment) AssignmentDTO {
	return AssignmentDTO{
		ID:          fa.ID,
		ArticleID:   fa.ArticleID,
		FieldID:     fa.FieldID,
		Field:       BuildField(fa.Field),
		Value:       fa.Value,
		Completed:   fa.Completed,
		CompletedAt: fa.CompletedAt,
		Approved:    fa.Approved,
		ApprovedAt:  fa.ApprovedAt,
		Notes:       fa.Notes,
	}
}

func BuildAssignments(as []articles.FieldAssignment) []AssignmentDTO {
	out := make([]AssignmentDTO, 0, len(as))
	for i := range as {
		out = append(out, BuildAssignment(&as[i]))
	}
	return out
}

func BuildComments(cs []articles.ReviewComment) []CommentDTO {
	out := make([]CommentDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, CommentDTO{
			ID:        c.ID,
			Author:    BuildUserLite(c.Author),
			Kind:      c.Kind,
			Body:      c.Body,
			Read:      c.Read,
			CreatedAt: c.CreatedAt,
		})
	}
	return out
}

func BuildChanges(ls []articles.ChangeLog) []ChangeDTO {
	out := make([]ChangeDTO, 0, len(ls))
	for _, l := range ls {
		out = append(out, ChangeDTO{
			ID:        l.ID,
			ArticleID: l.ArticleID,
			Title:     l.ArticleTitle,
			ActorID:   l.ActorID,
			Kind:      l.Kind,
			Field:     l.Field,
			OldValue:  l.OldValue,
			NewValue:  l.NewValue,
			CreatedAt: l.CreatedAt,
		})
	}
	return out
}

func BuildUpload(u *articles.UploadedFile) UploadDTO {
	errs := []articles.ImportError(u.Errors)
	if errs == nil {
		errs = []articles.ImportError{}
	}
	return UploadDTO{
		ID:             u.ID,
		ProjectID:      u.ProjectID,
		FileName:       u.FileName,
		Kind:           u.Kind,
		ProcessedCount: u.ProcessedCount,
		ErrorList:      errs,
		CreatedAt:      u.CreatedAt,
	}
}

func BuildNotifications(ns []notifications.Notification) []NotificationDTO {
	out := make([]NotificationDTO, 0, len(ns))
	for _, n := range ns {
		out = append(out, NotificationDTO{
			ID:        n.ID,
			Kind:      string(n.Kind),
			Title:     n.Title,
			Message:   n.Message,
			Link:      n.Link,
			ProjectID: n.ProjectID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
