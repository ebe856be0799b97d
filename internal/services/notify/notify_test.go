package notify_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"metareview/internal/domain/notifications"
	"metareview/internal/domain/users"
	"metareview/internal/infra/mail"
	"metareview/internal/services/notify"
	"metareview/internal/testutil"
)

type countingSink struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
	panics bool
}

func (s *countingSink) Name() string { return "counting" }

func (s *countingSink) Deliver(_ context.Context, ev notify.Event) error {
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fakeMailer struct {
	sent []mail.Message
	fail string
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if msg.To == m.fail {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestUnique(t *testing.T) {
	got := notify.Unique([]uint{3, 0, 1, 3, 2, 1}, 2)
	want := []uint{3, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected ids: got=%v want=%v", got, want)
	}
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	bad := &countingSink{panics: true}
	failing := &countingSink{err: errors.New("down")}
	good := &countingSink{}
	d := notify.NewDispatcher(testutil.Logger(t), 8, bad, failing, good)
	d.Start(context.Background())

	d.Publish(
		notify.Event{Kind: notifications.KindGeneral, Recipients: []uint{1}},
		notify.Event{Kind: notifications.KindGeneral}, // no audience
		notify.Event{Kind: notifications.KindGeneral, Emails: []string{"a@example.org"}},
	)
	d.Close()

	if good.count() != 2 || failing.count() != 2 {
		t.Fatalf("unexpected deliveries: good=%d failing=%d", good.count(), failing.count())
	}

	d.Publish(notify.Event{Kind: notifications.KindGeneral, Recipients: []uint{1}})
	if good.count() != 2 {
		t.Fatalf("event delivered after close")
	}
	d.Close()
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &countingSink{}
	d := notify.NewDispatcher(testutil.Logger(t), 1, sink)
	ev := notify.Event{Kind: notifications.KindGeneral, Recipients: []uint{1}}
	d.Publish(ev, ev, ev)
	d.Start(context.Background())
	d.Close()

	if sink.count() != 1 {
		t.Fatalf("expected overflow to be dropped, delivered %d", sink.count())
	}
}

func TestStoreSink(t *testing.T) {
	db := testutil.DB(t)
	a := testutil.SeedUser(t, db, "alice", users.RoleGuest)
	b := testutil.SeedUser(t, db, "bob", users.RoleGuest)
	pid := uint(7)

	err := notify.NewStoreSink(db).Deliver(context.Background(), notify.Event{
		Kind:       notifications.KindArticleApproved,
		Recipients: []uint{a.ID, b.ID},
		Title:      strings.Repeat("t", 300),
		Message:    "approved",
		ProjectID:  &pid,
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	var rows []notifications.Notification
	db.Order("user_id").Find(&rows)
	if len(rows) != 2 || rows[0].UserID != a.ID || rows[0].Read || len(rows[0].Title) != 200 || *rows[1].ProjectID != pid {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestEmailSink(t *testing.T) {
	db := testutil.DB(t)
	a := testutil.SeedUser(t, db, "alice", users.RoleGuest)
	b := testutil.SeedUser(t, db, "bob", users.RoleGuest)
	db.Model(b).Update("is_active", false)
	m := &fakeMailer{}
	sink := notify.NewEmailSink(db, m, "https://app.example.org/")

	ev := notify.Event{
		Kind:       notifications.KindCorrectionRequested,
		Recipients: []uint{a.ID, b.ID},
		Emails:     []string{"guest@example.org"},
		Title:      "Correction requested",
		Message:    "Please fix n_total",
		Link:       "/articles/4",
	}
	if err := sink.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("deliver without flag: %v", err)
	}
	if len(m.sent) != 0 {
		t.Fatalf("mailed an event without SendEmail")
	}

	ev.SendEmail = true
	if err := sink.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(m.sent) != 2 {
		t.Fatalf("expected 2 mails (inactive user skipped), got %d", len(m.sent))
	}
	if m.sent[1].To != a.Email || !strings.HasSuffix(m.sent[1].Body, "https://app.example.org/articles/4") {
		t.Fatalf("unexpected mail: %+v", m.sent[1])
	}

	m.fail = "guest@example.org"
	if err := sink.Deliver(context.Background(), ev); err == nil {
		t.Fatalf("expected mailer failure to surface")
	}
}

func TestInbox(t *testing.T) {
	db := testutil.DB(t)
	u := testutil.SeedUser(t, db, "reader", users.RoleGuest)
	other := testutil.SeedUser(t, db, "other", users.RoleGuest)
	ctx := context.Background()

	sink := notify.NewStoreSink(db)
	for _, title := range []string{"first", "second", "third"} {
		if err := sink.Deliver(ctx, notify.Event{
			Kind:       notifications.KindGeneral,
			Recipients: []uint{u.ID},
			Title:      title,
		}); err != nil {
			t.Fatal(err)
		}
	}
	inbox := notify.NewInbox(db)

	all, err := inbox.List(ctx, u.ID, false, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("List = %d, %v", len(all), err)
	}
	if err := inbox.MarkRead(ctx, other.ID, all[0].ID); err == nil {
		t.Fatal("marking another user's notification must fail")
	}
	if err := inbox.MarkRead(ctx, u.ID, all[0].ID); err != nil {
		t.Fatal(err)
	}
	if n, _ := inbox.UnreadCount(ctx, u.ID); n != 2 {
		t.Fatalf("unread = %d, want 2", n)
	}
	unread, _ := inbox.List(ctx, u.ID, true, 10)
	if len(unread) != 2 {
		t.Fatalf("unread list = %d, want 2", len(unread))
	}
	if n, err := inbox.MarkAllRead(ctx, u.ID); err != nil || n != 2 {
		t.Fatalf("MarkAllRead = %d, %v", n, err)
	}
	if n, _ := inbox.UnreadCount(ctx, u.ID); n != 0 {
		t.Fatalf("unread after mark all = %d", n)
	}
}
