package activitymap_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/savvyindians/go-lms-auth"
	"github.com/savvyindians/go-lms-auth/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		UserID:    "user-100",
		Metadata: map[string]any{
			"identifier_kind": "phone",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != "login.success" {
		t.Fatalf("expected verb login.success, got %q", out.Verb)
	}
	if out.ObjectType != "user" {
		t.Fatalf("expected object_type user, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata["identifier_kind"] != "phone" {
		t.Fatalf("expected metadata identifier_kind phone, got %#v", out.Metadata["identifier_kind"])
	}
	if out.Metadata[activitymap.MetadataKeyEventType] != string(auth.ActivityEventLoginSuccess) {
		t.Fatalf("expected metadata event_type, got %#v", out.Metadata[activitymap.MetadataKeyEventType])
	}
	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeActorFromMetadata(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventAccountDeleted,
		UserID:    "user-200",
		Metadata:  map[string]any{activitymap.MetadataKeyActorID: "admin-1"},
	})

	if out.ActorID != "admin-1" {
		t.Fatalf("expected actor_id admin-1, got %q", out.ActorID)
	}
	if out.ObjectID != "user-200" {
		t.Fatalf("expected object_id user-200, got %q", out.ObjectID)
	}
	if _, ok := out.Metadata[activitymap.MetadataKeyActorID]; ok {
		t.Fatalf("actor id must not be repeated in metadata, got %+v", out.Metadata)
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be filled")
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(
		auth.ActivityEvent{EventType: auth.ActivityEventPasswordResetRequest},
		activitymap.WithDefaultChannel("lms"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithActorFallback("anonymous"),
	)

	if out.ActorID != "anonymous" {
		t.Fatalf("expected actor fallback, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventPasswordResetRequest) {
		t.Fatalf("verb keeps foreign prefixes, got %q", out.Verb)
	}
	if out.Channel != "lms" || out.ObjectType != "account" {
		t.Fatalf("expected overrides, got channel=%q object_type=%q", out.Channel, out.ObjectType)
	}
}

func TestSink(t *testing.T) {
	t.Parallel()

	var got []activitymap.Normalized
	sink := activitymap.Sink(func(_ context.Context, n activitymap.Normalized) error {
		got = append(got, n)
		return nil
	})

	if err := sink.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventLogout, UserID: "u"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Verb != "logout" {
		t.Fatalf("expected one logout record, got %+v", got)
	}

	if err := activitymap.Sink(nil).Record(context.Background(), auth.ActivityEvent{}); err != nil {
		t.Fatalf("nil consumer must be a no-op, got %v", err)
	}
}
