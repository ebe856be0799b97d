package review_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"metareview/internal/domain/articles"
	"metareview/internal/domain/catalog"
	"metareview/internal/domain/notifications"
	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/notify"
	"metareview/internal/services/review"
	"metareview/internal/testutil"

	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	svc    *review.Service
	rec    *notify.Recorder
	owner  *users.User
	sup    *users.User
	col    *users.User
	other  *users.User
	p      *projects.Project
	fields []catalog.MetadataField
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	rec := &notify.Recorder{}
	f := &fixture{db: db, rec: rec, svc: review.NewService(db, testutil.Logger(t), rec)}
	f.owner = testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	f.sup = testutil.SeedUser(t, db, "sup", users.RoleGuest)
	f.col = testutil.SeedUser(t, db, "col", users.RoleGuest)
	f.other = testutil.SeedUser(t, db, "other", users.RoleGuest)
	f.p = testutil.SeedProject(t, db, f.owner, "Effects of exercise")
	testutil.AddMember(t, db, f.p.ID, f.sup.ID, projects.RoleSupervisor)
	testutil.AddMember(t, db, f.p.ID, f.col.ID, projects.RoleCollaborator)
	testutil.AddMember(t, db, f.p.ID, f.other.ID, projects.RoleCollaborator)
	f.fields = []catalog.MetadataField{
		testutil.SeedField(t, db, "n_total", catalog.TypeNumber, nil),
		testutil.SeedField(t, db, "cohens_d", catalog.TypeNumber, nil),
		testutil.SeedField(t, db, "journal", catalog.TypeText, nil),
	}
	return f
}

func (f *fixture) article(t *testing.T, key string) *articles.Article {
	t.Helper()
	return testutil.SeedArticle(t, f.db, f.p.ID, f.col.ID, key)
}

func (f *fixture) attach(t *testing.T, a *articles.Article, fields ...catalog.MetadataField) *review.AttachResult {
	t.Helper()
	ids := make([]uint, 0, len(fields))
	for _, fl := range fields {
		ids = append(ids, fl.ID)
	}
	res, err := f.svc.AttachFields(context.Background(), f.owner.ID, f.p.ID, review.AttachInput{ArticleIDs: []uint{a.ID}, FieldIDs: ids})
	if err != nil {
		t.Fatalf("attach fields: %v", err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("attach errors: %+v", res.Errors)
	}
	return res
}

func (f *fixture) assignments(t *testing.T, a *articles.Article) []articles.FieldAssignment {
	t.Helper()
	var out []articles.FieldAssignment
	if err := f.db.Preload("Field").Where("article_id = ?", a.ID).Order("field_id").Find(&out).Error; err != nil {
		t.Fatalf("load assignments: %v", err)
	}
	return out
}

func (f *fixture) status(t *testing.T, a *articles.Article) articles.Status {
	t.Helper()
	return testutil.Reload[articles.Article](t, f.db, a.ID).Status
}

func (f *fixture) logs(t *testing.T, a *articles.Article, kind articles.ChangeKind) []articles.ChangeLog {
	t.Helper()
	var out []articles.ChangeLog
	f.db.Where("article_id = ? AND kind = ?", a.ID, kind).Order("id").Find(&out)
	return out
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apierr.Is(err, code) {
		t.Fatalf("unexpected error: got=%v want code=%s", err, code)
	}
}

func TestAttachMovesWaitingToAssigned(t *testing.T) {
	f := setup(t)
	a := f.article(t, "smith2020")

	res := f.attach(t, a, f.fields[0], f.fields[1])
	if res.AssignmentsCreated != 2 || res.ArticlesUpdated != 1 || res.Notified != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := testutil.Reload[articles.Article](t, f.db, a.ID)
	if got.Status != articles.StatusAssigned || got.AssignedAt == nil {
		t.Fatalf("unexpected article: status=%s assigned_at=%v", got.Status, got.AssignedAt)
	}
	if n := len(f.logs(t, a, articles.ChangeStatus)); n != 1 {
		t.Fatalf("expected one status change row, got %d", n)
	}
	evs := f.rec.OfKind(notifications.KindFieldsAssigned)
	if len(evs) != 1 || evs[0].Recipients[0] != f.col.ID {
		t.Fatalf("responsible user not notified: %+v", evs)
	}

	// re-attaching the same fields is a no-op
	res = f.attach(t, a, f.fields[0])
	if res.AssignmentsCreated != 0 || res.ArticlesUpdated != 0 {
		t.Fatalf("duplicate assignment created: %+v", res)
	}
}

func TestAttachLeavesInProgressUnchanged(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "doe2019")
	f.attach(t, a, f.fields[0])
	fa := f.assignments(t, a)[0]
	if _, err := f.svc.SetFieldValue(ctx, f.col.ID, fa.ID, review.ValueInput{Value: "120"}); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if st := f.status(t, a); st != articles.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", st)
	}

	f.attach(t, a, f.fields[1])
	if st := f.status(t, a); st != articles.StatusInProgress {
		t.Fatalf("attach changed IN_PROGRESS to %s", st)
	}
}

func TestAttachToApprovedReactivates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "lee2021")
	f.attach(t, a, f.fields[0])
	fa := f.assignments(t, a)[0]
	if _, err := f.svc.SetFieldValue(ctx, f.col.ID, fa.ID, review.ValueInput{Value: "64"}); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if _, err := f.svc.SubmitForReview(ctx, f.col.ID, a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.ApproveArticle(ctx, f.sup.ID, a.ID, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	approvedAt := testutil.Reload[articles.Article](t, f.db, a.ID).AssignedAt

	res := f.attach(t, a, f.fields[1])
	if res.Reactivated != 1 {
		t.Fatalf("expected one reactivation, got %+v", res)
	}
	got := testutil.Reload[articles.Article](t, f.db, a.ID)
	if got.Status != articles.StatusAssigned {
		t.Fatalf("expected ASSIGNED after reactivation, got %s", got.Status)
	}
	if !got.AssignedAt.Equal(*approvedAt) {
		t.Fatalf("assigned-at overwritten on reactivation")
	}
	if n := len(f.logs(t, a, articles.ChangeReactivated)); n != 1 {
		t.Fatalf("expected exactly one REACTIVATED row, got %d", n)
	}
}

func TestAttachValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "k1")
	foreign := testutil.SeedProject(t, f.db, f.other, "Other project")
	foreignField := testutil.SeedField(t, f.db, "foreign_only", catalog.TypeText, &foreign.ID)

	_, err := f.svc.AttachFields(ctx, f.owner.ID, f.p.ID, review.AttachInput{FieldIDs: []uint{f.fields[0].ID}})
	wantCode(t, err, apierr.CodeValidation)

	_, err = f.svc.AttachFields(ctx, f.owner.ID, f.p.ID, review.AttachInput{ArticleIDs: []uint{a.ID}})
	wantCode(t, err, apierr.CodeValidation)

	_, err = f.svc.AttachFields(ctx, f.owner.ID, f.p.ID, review.AttachInput{ArticleIDs: []uint{a.ID}, FieldIDs: []uint{foreignField.ID}})
	wantCode(t, err, apierr.CodeValidation)

	_, err = f.svc.AttachFields(ctx, f.sup.ID, f.p.ID, review.AttachInput{ArticleIDs: []uint{a.ID}, FieldIDs: []uint{f.fields[0].ID}})
	wantCode(t, err, apierr.CodeForbidden)

	outsider := testutil.SeedUser(t, f.db, "outsider", users.RoleResearcher)
	_, err = f.svc.AttachFields(ctx, outsider.ID, f.p.ID, review.AttachInput{ArticleIDs: []uint{a.ID}, FieldIDs: []uint{f.fields[0].ID}})
	wantCode(t, err, apierr.CodeForbidden)
}

func TestAttachBulkContinuesPastMissingArticles(t *testing.T) {
	f := setup(t)
	a := f.article(t, "k1")
	b := f.article(t, "k2")

	res, err := f.svc.AttachFields(context.Background(), f.owner.ID, f.p.ID, review.AttachInput{
		ArticleIDs: []uint{a.ID, 9999, b.ID},
		FieldIDs:   []uint{f.fields[0].ID, f.fields[2].ID},
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if res.AssignmentsCreated != 4 || res.ArticlesUpdated != 2 || len(res.Errors) != 1 || res.Errors[0].ArticleID != 9999 {
		t.Fatalf("unexpected bulk result: %+v", res)
	}
	if res.Notified != 1 {
		t.Fatalf("notifications must be grouped per user, got %d", res.Notified)
	}
}

func TestApplyTemplateToWaitingArticles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "k1")
	b := f.article(t, "k2")
	tpl := catalog.SearchTemplate{ProjectID: f.p.ID, Name: "Effects", CreatedByID: f.owner.ID, Fields: f.fields[:2]}
	if err := f.db.Create(&tpl).Error; err != nil {
		t.Fatalf("create template: %v", err)
	}
	f.attach(t, b, f.fields[2]) // b is no longer WAITING

	res, err := f.svc.ApplyTemplate(ctx, f.owner.ID, f.p.ID, tpl.ID, review.TemplateFilter{})
	if err != nil {
		t.Fatalf("apply template: %v", err)
	}
	if res.ArticlesUpdated != 1 || res.AssignmentsCreated != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(f.assignments(t, a)) != 2 || len(f.assignments(t, b)) != 1 {
		t.Fatalf("template applied to the wrong articles")
	}
}

func TestDetachFields(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "k1")
	f.attach(t, a, f.fields[0], f.fields[1])

	res, err := f.svc.DetachFields(ctx, f.owner.ID, f.p.ID, review.DetachInput{ArticleIDs: []uint{a.ID}, FieldIDs: []uint{f.fields[0].ID}})
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if res.Removed != 1 || res.Reset != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if st := f.status(t, a); st != articles.StatusAssigned {
		t.Fatalf("partial detach changed status to %s", st)
	}

	res, err = f.svc.DetachFields(ctx, f.owner.ID, f.p.ID, review.DetachInput{ArticleIDs: []uint{a.ID}, FieldIDs: []uint{f.fields[1].ID}})
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if res.Removed != 1 || res.Reset != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if st := f.status(t, a); st != articles.StatusWaiting {
		t.Fatalf("detaching everything must return to WAITING, got %s", st)
	}
}

func TestDetachNeverRemovesApprovedAssignments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "k1")
	f.attach(t, a, f.fields[0], f.fields[1])
	fas := f.assignments(t, a)
	if _, err := f.svc.SetFieldValue(ctx, f.col.ID, fas[0].ID, review.ValueInput{Value: "10"}); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if _, err := f.svc.ApproveField(ctx, f.sup.ID, fas[0].ID); err != nil {
		t.Fatalf("approve field: %v", err)
	}

	res, err := f.svc.DetachFields(ctx, f.owner.ID, f.p.ID, review.DetachInput{
		ArticleIDs: []uint{a.ID},
		FieldIDs:   []uint{f.fields[0].ID, f.fields[1].ID},
	})
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if res.Removed != 1 || res.Protected != 1 || res.Reset != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	left := f.assignments(t, a)
	if len(left) != 1 || !left[0].Approved {
		t.Fatalf("approved assignment removed: %+v", left)
	}
}

func TestDetachCountsOnlyCommittedArticles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "k1")
	b := f.article(t, "k2")
	f.attach(t, a, f.fields[0], f.fields[1])
	f.attach(t, b, f.fields[0], f.fields[1])
	fas := f.assignments(t, a)
	if _, err := f.svc.SetFieldValue(ctx, f.col.ID, fas[0].ID, review.ValueInput{Value: "10"}); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if _, err := f.svc.ApproveField(ctx, f.sup.ID, fas[0].ID); err != nil {
		t.Fatalf("approve field: %v", err)
	}

	// The change row for article a fails after its protected count is known.
	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_change", func(tx *gorm.DB) {
		if cl, ok := tx.Statement.Dest.(*articles.ChangeLog); ok && cl.ArticleID == a.ID && cl.Kind == articles.ChangeAssignment {
			_ = tx.AddError(errors.New("log unavailable"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	res, err := f.svc.DetachFields(ctx, f.owner.ID, f.p.ID, review.DetachInput{
		ArticleIDs: []uint{a.ID, b.ID},
		FieldIDs:   []uint{f.fields[0].ID, f.fields[1].ID},
	})
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if res.Removed != 2 || res.Protected != 0 || res.Reset != 1 {
		t.Fatalf("rolled back article counted: %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].ArticleID != a.ID {
		t.Fatalf("unexpected errors: %+v", res.Errors)
	}
	if left := f.assignments(t, a); len(left) != 2 {
		t.Fatalf("rolled back article lost assignments: %d left", len(left))
	}
	if st := f.status(t, b); st != articles.StatusWaiting {
		t.Fatalf("fully detached article should be WAITING, got %s", st)
	}
}

func TestSetFieldValueRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	now := t0
	f.svc.Now = func() time.Time { return now }
	a := f.article(t, "k1")
	f.attach(t, a, f.fields[0])
	fa := f.assignments(t, a)[0]

	_, err := f.svc.SetFieldValue(ctx, f.other.ID, fa.ID, review.ValueInput{Value: "5"})
	wantCode(t, err, apierr.CodeForbidden)

	_, err = f.svc.SetFieldValue(ctx, f.col.ID, fa.ID, review.ValueInput{Value: "many"})
	wantCode(t, err, apierr.CodeValidation)

	res, err := f.svc.SetFieldValue(ctx, f.col.ID, fa.ID, review.ValueInput{Value: "42"})
	if err != nil {
		t.Fatalf("set value: %v", err)
	}
	if !res.Assignment.Completed || res.ArticleStatus != articles.StatusInProgress || res.Progress.CompletionPct != 100 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := testutil.Reload[articles.Article](t, f.db, a.ID); got.WorkStartedAt == nil || !got.WorkStartedAt.Equal(t0) {
		t.Fatalf("work-started not stamped: %v", got.WorkStartedAt)
	}

	now = t0.Add(time.Hour)
	if _, err := f.svc.SetFieldValue(ctx, f.col.ID, fa.ID, review.ValueInput{Value: "42"}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if got := testutil.Reload[articles.FieldAssignment](t, f.db, fa.ID); !got.CompletedAt.Equal(t0) {
		t.Fatalf("identical value refreshed completed-at: %v", got.CompletedAt)
	}

	res, err = f.svc.SetFieldValue(ctx, f.col.ID, fa.ID, review.ValueInput{Value: ""})
	if err != nil {
		t.Fatalf("clear value: %v", err)
	}
	if res.Assignment.Completed || res.Assignment.CompletedAt != nil {
		t.Fatalf("empty value must clear completion: %+v", res.Assignment)
	}
	if n := len(f.logs(t, a, articles.ChangeMetadataEdit)); n != 2 {
		t.Fatalf("expected 2 metadata edits, got %d", n)
	}
}

func TestSubmitForReview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	waiting := f.article(t, "k1")
	a := f.article(t, "k2")
	f.attach(t, a, f.fields[0])

	_, err := f.svc.SubmitForReview(ctx, f.col.ID, waiting.ID)
	wantCode(t, err, apierr.CodeInvalidState)

	_, err = f.svc.SubmitForReview(ctx, f.other.ID, a.ID)
	wantCode(t, err, apierr.CodeForbidden)

	st, err := f.svc.SubmitForReview(ctx, f.col.ID, a.ID)
	if err != nil || st != articles.StatusInReview {
		t.Fatalf("submit: %v %s", err, st)
	}
	if len(f.rec.OfKind(notifications.KindArticleSubmitted)) != 1 {
		t.Fatalf("leads not notified")
	}
	_, err = f.svc.SubmitForReview(ctx, f.col.ID, a.ID)
	wantCode(t, err, apierr.CodeInvalidState)
}

func TestSubmitMany(t *testing.T) {
	f := setup(t)
	a := f.article(t, "k1")
	b := f.article(t, "k2")
	f.attach(t, a, f.fields[0])

	res, err := f.svc.SubmitMany(context.Background(), f.col.ID, f.p.ID, []uint{a.ID, b.ID})
	if err != nil {
		t.Fatalf("submit many: %v", err)
	}
	if res.Submitted != 1 || len(res.Errors) != 1 || res.Errors[0].ArticleID != b.ID {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestApproveArticleApprovesCompletedFields(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "k1")
	f.attach(t, a, f.fields...)
	fas := f.assignments(t, a)
	for _, fa := range fas[:2] {
		if _, err := f.svc.SetFieldValue(ctx, f.col.ID, fa.ID, review.ValueInput{Value: "1"}); err != nil {
			t.Fatalf("set value: %v", err)
		}
	}

	_, err := f.svc.ApproveArticle(ctx, f.sup.ID, a.ID, "")
	wantCode(t, err, apierr.CodeInvalidState)

	if _, err := f.svc.SubmitForReview(ctx, f.col.ID, a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = f.svc.ApproveArticle(ctx, f.col.ID, a.ID, "")
	wantCode(t, err, apierr.CodeForbidden)

	n, err := f.svc.ApproveArticle(ctx, f.sup.ID, a.ID, "Looks good")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 fields auto-approved, got %d", n)
	}
	if f.status(t, a) != articles.StatusApproved {
		t.Fatalf("article not approved")
	}
	for _, fa := range f.assignments(t, a) {
		if fa.Completed && !fa.Approved {
			t.Fatalf("completed field left unapproved: %+v", fa)
		}
	}
	var comments []articles.ReviewComment
	f.db.Where("article_id = ?", a.ID).Find(&comments)
	if len(comments) != 1 || comments[0].Kind != articles.CommentApproval {
		t.Fatalf("approval comment missing: %+v", comments)
	}
	p := testutil.Reload[projects.Project](t, f.db, f.p.ID)
	if p.WorkedArticles != 1 {
		t.Fatalf("project counters not refreshed: %+v", p)
	}

	fa := fas[2]
	_, err = f.svc.SetFieldValue(ctx, f.col.ID, fa.ID, review.ValueInput{Value: "x"})
	wantCode(t, err, apierr.CodeInvalidState)
}

func TestApproveFieldRequiresValue(t *testing.T) {
	f := setup(t)
	a := f.article(t, "k1")
	f.attach(t, a, f.fields[0])
	fa := f.assignments(t, a)[0]

	_, err := f.svc.ApproveField(context.Background(), f.sup.ID, fa.ID)
	wantCode(t, err, apierr.CodeInvalidState)
}

func TestFieldCorrection(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "k1")
	f.attach(t, a, f.fields[0])
	fa := f.assignments(t, a)[0]
	if _, err := f.svc.SetFieldValue(ctx, f.col.ID, fa.ID, review.ValueInput{Value: "12"}); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if _, err := f.svc.SubmitForReview(ctx, f.col.ID, a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	fully, err := f.svc.ApproveField(ctx, f.sup.ID, fa.ID)
	if err != nil || !fully {
		t.Fatalf("approve field: fully=%v err=%v", fully, err)
	}

	wantCode(t, f.svc.RequestFieldCorrection(ctx, f.sup.ID, fa.ID, "  "), apierr.CodeValidation)

	if err := f.svc.RequestFieldCorrection(ctx, f.sup.ID, fa.ID, "n is 120 per table 2"); err != nil {
		t.Fatalf("field correction: %v", err)
	}
	got := testutil.Reload[articles.FieldAssignment](t, f.db, fa.ID)
	if got.Approved || got.Notes != "Correction requested: n is 120 per table 2" {
		t.Fatalf("unexpected assignment: %+v", got)
	}
	if st := f.status(t, a); st != articles.StatusInReview {
		t.Fatalf("approved article must return to IN_REVIEW, got %s", st)
	}
	if len(f.rec.OfKind(notifications.KindCorrectionRequested)) != 1 {
		t.Fatalf("correction not notified")
	}
}

func TestArticleCorrection(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "k1")
	f.attach(t, a, f.fields[0])

	wantCode(t, f.svc.RequestArticleCorrection(ctx, f.sup.ID, a.ID, "redo"), apierr.CodeInvalidState)

	if _, err := f.svc.SubmitForReview(ctx, f.col.ID, a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	wantCode(t, f.svc.RequestArticleCorrection(ctx, f.sup.ID, a.ID, ""), apierr.CodeValidation)
	wantCode(t, f.svc.RequestArticleCorrection(ctx, f.col.ID, a.ID, "redo"), apierr.CodeForbidden)

	if err := f.svc.RequestArticleCorrection(ctx, f.sup.ID, a.ID, "missing effect sizes"); err != nil {
		t.Fatalf("correction: %v", err)
	}
	got := testutil.Reload[articles.Article](t, f.db, a.ID)
	if got.Status != articles.StatusAssigned || got.ReviewComment != "missing effect sizes" {
		t.Fatalf("unexpected article: %s %q", got.Status, got.ReviewComment)
	}
	if n, err := f.svc.MarkCommentsRead(ctx, f.col.ID, a.ID); err != nil || n != 1 {
		t.Fatalf("mark read: n=%d err=%v", n, err)
	}
}

func TestEveryTransitionIsLogged(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "k1")
	f.attach(t, a, f.fields[0])
	fa := f.assignments(t, a)[0]
	f.svc.SetFieldValue(ctx, f.col.ID, fa.ID, review.ValueInput{Value: "3"})
	f.svc.SubmitForReview(ctx, f.col.ID, a.ID)
	f.svc.RequestArticleCorrection(ctx, f.sup.ID, a.ID, "check")
	f.svc.SubmitForReview(ctx, f.col.ID, a.ID)
	f.svc.ApproveArticle(ctx, f.owner.ID, a.ID, "")

	rows := f.logs(t, a, articles.ChangeStatus)
	want := [][2]articles.Status{
		{articles.StatusWaiting, articles.StatusAssigned},
		{articles.StatusAssigned, articles.StatusInProgress},
		{articles.StatusInProgress, articles.StatusInReview},
		{articles.StatusInReview, articles.StatusAssigned},
		{articles.StatusAssigned, articles.StatusInReview},
		{articles.StatusInReview, articles.StatusApproved},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d status rows, got %d", len(want), len(rows))
	}
	for i, w := range want {
		if rows[i].OldValue != string(w[0]) || rows[i].NewValue != string(w[1]) {
			t.Fatalf("row %d: got %s->%s want %s->%s", i, rows[i].OldValue, rows[i].NewValue, w[0], w[1])
		}
	}
}

// Owner attaches two fields, the collaborator fills both and submits, the
// supervisor approves one field and then the other; the article ends APPROVED.
func TestEndToEndReview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "garcia2022")

	f.attach(t, a, f.fields[0], f.fields[1])
	if st := f.status(t, a); st != articles.StatusAssigned {
		t.Fatalf("after attach: %s", st)
	}
	fas := f.assignments(t, a)
	if _, err := f.svc.SetFieldValue(ctx, f.col.ID, fas[0].ID, review.ValueInput{Value: "250"}); err != nil {
		t.Fatalf("fill n_total: %v", err)
	}
	if st := f.status(t, a); st != articles.StatusInProgress {
		t.Fatalf("after first value: %s", st)
	}
	if _, err := f.svc.SetFieldValue(ctx, f.col.ID, fas[1].ID, review.ValueInput{Value: "0.35"}); err != nil {
		t.Fatalf("fill cohens_d: %v", err)
	}
	if _, err := f.svc.SubmitForReview(ctx, f.col.ID, a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if st := f.status(t, a); st != articles.StatusInReview {
		t.Fatalf("after submit: %s", st)
	}

	fully, err := f.svc.ApproveField(ctx, f.sup.ID, fas[0].ID)
	if err != nil || fully {
		t.Fatalf("first approval: fully=%v err=%v", fully, err)
	}
	if st := f.status(t, a); st != articles.StatusInReview {
		t.Fatalf("after first approval: %s", st)
	}
	fully, err = f.svc.ApproveField(ctx, f.sup.ID, fas[1].ID)
	if err != nil || !fully {
		t.Fatalf("second approval: fully=%v err=%v", fully, err)
	}
	if st := f.status(t, a); st != articles.StatusApproved {
		t.Fatalf("after last approval: %s", st)
	}
	if len(f.rec.OfKind(notifications.KindArticleApproved)) != 1 {
		t.Fatalf("approval not notified")
	}

	d, err := f.svc.GetArticle(ctx, f.col.ID, a.ID)
	if err != nil {
		t.Fatalf("get article: %v", err)
	}
	if d.Progress.ApprovalPct != 100 || !d.Progress.CanApprove || len(d.History) == 0 {
		t.Fatalf("unexpected detail: %+v", d.Progress)
	}
}

func TestAssignArticleAndTasks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "k1")

	_, err := f.svc.AssignArticle(ctx, f.owner.ID, a.ID, ptr(uint(424242)))
	wantCode(t, err, apierr.CodeValidation)

	_, err = f.svc.AssignArticle(ctx, f.col.ID, a.ID, &f.other.ID)
	wantCode(t, err, apierr.CodeForbidden)

	if _, err := f.svc.AssignArticle(ctx, f.sup.ID, a.ID, &f.other.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(f.rec.OfKind(notifications.KindArticleAssigned)) != 1 {
		t.Fatalf("assignee not notified")
	}

	tasks, err := f.svc.Tasks(ctx, f.other.ID, f.p.ID, f.other.ID)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("tasks: %v %d", err, len(tasks))
	}
	_, err = f.svc.Tasks(ctx, f.col.ID, f.p.ID, f.other.ID)
	wantCode(t, err, apierr.CodeForbidden)

	// the assignee can now edit values
	f.attach(t, a, f.fields[0])
	fa := f.assignments(t, a)[0]
	if _, err := f.svc.SetFieldValue(ctx, f.other.ID, fa.ID, review.ValueInput{Value: "9"}); err != nil {
		t.Fatalf("assignee edit: %v", err)
	}
}

func TestListArticles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.article(t, "alpha2020")
	f.article(t, "beta2021")
	f.attach(t, a, f.fields[0])

	page, err := f.svc.ListArticles(ctx, f.col.ID, f.p.ID, review.ArticleFilter{Status: articles.StatusAssigned})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Items[0].Article.ID != a.ID || page.Items[0].Progress.Total != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.StatusCounts[articles.StatusWaiting] != 1 || page.StatusCounts[articles.StatusAssigned] != 1 {
		t.Fatalf("unexpected counts: %+v", page.StatusCounts)
	}
	page, _ = f.svc.ListArticles(ctx, f.col.ID, f.p.ID, review.ArticleFilter{Query: "BETA"})
	if page.Total != 1 {
		t.Fatalf("query filter failed: %+v", page)
	}
}

func ptr[T any](v T) *T { return &v }
