package registry

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"personahub/pkg/domain"
	"personahub/pkg/mirror"
	"personahub/pkg/personaclient"
)

type fakeService struct {
	listFn   func(ctx context.Context) ([]domain.Persona, error)
	getFn    func(ctx context.Context, uniqueID string) (domain.Persona, error)
	createFn func(ctx context.Context, p domain.Persona) (domain.Persona, error)
	updateFn func(ctx context.Context, uniqueID string, p domain.Persona) (domain.Persona, error)
	deleteFn func(ctx context.Context, uniqueID string) error
}

func (f *fakeService) ListPersonas(ctx context.Context) ([]domain.Persona, error) {
	return f.listFn(ctx)
}

func (f *fakeService) GetPersona(ctx context.Context, uniqueID string) (domain.Persona, error) {
	return f.getFn(ctx, uniqueID)
}

func (f *fakeService) CreatePersona(ctx context.Context, p domain.Persona) (domain.Persona, error) {
	return f.createFn(ctx, p)
}

func (f *fakeService) UpdatePersona(ctx context.Context, uniqueID string, p domain.Persona) (domain.Persona, error) {
	return f.updateFn(ctx, uniqueID, p)
}

func (f *fakeService) DeletePersona(ctx context.Context, uniqueID string) error {
	return f.deleteFn(ctx, uniqueID)
}

func notFoundGet(ctx context.Context, uniqueID string) (domain.Persona, error) {
	return domain.Persona{}, personaclient.ErrNotFound
}

func testRegistry(svc Service) (*Registry, *mirror.Adapter) {
	mir := mirror.NewAdapter(mirror.NewMemKV(), mirror.NewMemKV())
	return New(svc, mir, slog.Default()), mir
}

func named(name, uniqueID string) domain.Persona {
	return domain.Persona{
		ID:          "id-" + uniqueID,
		UniqueID:    uniqueID,
		Name:        name,
		WelcomeText: "hi",
		APIKey:      "app-abcdefghijklmnopqrstuvwx",
	}
}

func TestRefreshReplacesListAndMirrors(t *testing.T) {
	want := []domain.Persona{named("alpha", "aaaaaaaaaa"), named("beta", "bbbbbbbbbb")}
	svc := &fakeService{
		listFn: func(ctx context.Context) ([]domain.Persona, error) { return want, nil },
	}
	reg, mir := testRegistry(svc)

	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	got := reg.Personas()
	if len(got) != 2 || got[0].Name != "alpha" || got[1].Name != "beta" {
		t.Fatalf("unexpected personas: %+v", got)
	}
	if reg.Stale() {
		t.Fatal("fresh list marked stale")
	}

	var mirrored []domain.Persona
	if err := mir.Load(mirror.PersonaListKey, &mirrored); err != nil {
		t.Fatalf("mirror load: %v", err)
	}
	if len(mirrored) != 2 {
		t.Fatalf("mirror has %d personas, want 2", len(mirrored))
	}
	var ts int64
	if err := mir.Load(mirror.ListTimestampKey, &ts); err != nil || ts == 0 {
		t.Fatalf("timestamp not mirrored: ts=%d err=%v", ts, err)
	}
}

func TestRefreshFallsBackToMirror(t *testing.T) {
	cached := []domain.Persona{named("gamma", "cccccccccc"), named("delta", "dddddddddd")}
	svc := &fakeService{
		listFn: func(ctx context.Context) ([]domain.Persona, error) {
			return nil, &personaclient.TransportError{Op: "list", Err: errors.New("refused")}
		},
	}
	reg, mir := testRegistry(svc)
	if err := mir.Save(mirror.PersonaListKey, cached); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}

	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh with mirror should not error, got %v", err)
	}
	got := reg.Personas()
	if len(got) != 2 || got[0].Name != "gamma" || got[1].Name != "delta" {
		t.Fatalf("mirror order not preserved: %+v", got)
	}
	if !reg.Stale() {
		t.Fatal("mirrored list should be marked stale")
	}
}

func TestRefreshWithoutMirrorEmptiesAndErrors(t *testing.T) {
	remoteErr := &personaclient.TransportError{Op: "list", Err: errors.New("refused")}
	svc := &fakeService{
		listFn: func(ctx context.Context) ([]domain.Persona, error) { return nil, remoteErr },
	}
	reg, _ := testRegistry(svc)

	err := reg.Refresh(context.Background())
	var te *personaclient.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("want transport error, got %v", err)
	}
	if got := reg.Personas(); len(got) != 0 {
		t.Fatalf("list should be empty, got %+v", got)
	}
}

func TestUpsertRejectsBadAPIKey(t *testing.T) {
	reg, _ := testRegistry(&fakeService{})

	p := named("bad", "eeeeeeeeee")
	p.APIKey = "sk-wrong-prefix"
	_, err := reg.Upsert(context.Background(), p)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if len(reg.Personas()) != 0 {
		t.Fatal("validation failure must not touch the list")
	}
}

func TestUpsertCreateAssignsIdentifiers(t *testing.T) {
	var created domain.Persona
	svc := &fakeService{
		createFn: func(ctx context.Context, p domain.Persona) (domain.Persona, error) {
			created = p
			return p, nil
		},
	}
	reg, _ := testRegistry(svc)

	p := named("fresh", "")
	p.ID = ""
	got, err := reg.Upsert(context.Background(), p)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got.ID == "" || len(got.UniqueID) != 10 {
		t.Fatalf("identifiers not assigned: %+v", got)
	}
	if created.UniqueID != got.UniqueID {
		t.Fatalf("remote create saw %q, local has %q", created.UniqueID, got.UniqueID)
	}
	if list := reg.Personas(); len(list) != 1 || list[0].UniqueID != got.UniqueID {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestUpsertKeepsChangeWhenRemoteErrorButPersisted(t *testing.T) {
	p := named("flaky", "ffffffffff")
	svc := &fakeService{
		updateFn: func(ctx context.Context, uniqueID string, q domain.Persona) (domain.Persona, error) {
			return domain.Persona{}, &personaclient.APIError{Status: 500, Message: "boom"}
		},
		getFn: func(ctx context.Context, uniqueID string) (domain.Persona, error) {
			return p, nil
		},
	}
	reg, _ := testRegistry(svc)

	got, err := reg.Upsert(context.Background(), p)
	if err != nil {
		t.Fatalf("persisted change should be confirmed, got %v", err)
	}
	if got.UniqueID != p.UniqueID {
		t.Fatalf("unexpected persona: %+v", got)
	}
	if list := reg.Personas(); len(list) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestUpsertRevertsWhenRemoteRejects(t *testing.T) {
	existing := named("keep", "gggggggggg")
	svc := &fakeService{
		listFn: func(ctx context.Context) ([]domain.Persona, error) {
			return []domain.Persona{existing}, nil
		},
		createFn: func(ctx context.Context, p domain.Persona) (domain.Persona, error) {
			return domain.Persona{}, &personaclient.APIError{Status: 500, Message: "boom"}
		},
		getFn: notFoundGet,
	}
	reg, mir := testRegistry(svc)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	p := named("doomed", "")
	p.ID = ""
	_, err := reg.Upsert(context.Background(), p)
	var se *SyncError
	if !errors.As(err, &se) {
		t.Fatalf("want SyncError, got %v", err)
	}
	if se.Op != "create" {
		t.Fatalf("op = %q, want create", se.Op)
	}
	list := reg.Personas()
	if len(list) != 1 || list[0].UniqueID != existing.UniqueID {
		t.Fatalf("snapshot not restored: %+v", list)
	}
	var mirrored []domain.Persona
	if err := mir.Load(mirror.PersonaListKey, &mirrored); err != nil || len(mirrored) != 1 {
		t.Fatalf("mirror not restored: %+v err=%v", mirrored, err)
	}
}

func TestRemoveConfirmedWhenGone(t *testing.T) {
	target := named("gone", "hhhhhhhhhh")
	svc := &fakeService{
		listFn: func(ctx context.Context) ([]domain.Persona, error) {
			return []domain.Persona{target}, nil
		},
		deleteFn: func(ctx context.Context, uniqueID string) error { return nil },
		getFn:    notFoundGet,
	}
	reg, _ := testRegistry(svc)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if err := reg.Remove(context.Background(), target.ID, target.UniqueID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if list := reg.Personas(); len(list) != 0 {
		t.Fatalf("persona not removed: %+v", list)
	}
}

func TestRemoveStaysRemovedWhenDeleteErrsButGone(t *testing.T) {
	target := named("half", "iiiiiiiiii")
	svc := &fakeService{
		listFn: func(ctx context.Context) ([]domain.Persona, error) {
			return []domain.Persona{target}, nil
		},
		deleteFn: func(ctx context.Context, uniqueID string) error {
			return &personaclient.TransportError{Op: "delete", Err: errors.New("reset")}
		},
		getFn: notFoundGet,
	}
	reg, _ := testRegistry(svc)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if err := reg.Remove(context.Background(), target.ID, target.UniqueID); err != nil {
		t.Fatalf("delete error with confirmed absence should succeed, got %v", err)
	}
	if list := reg.Personas(); len(list) != 0 {
		t.Fatalf("persona restored although gone remotely: %+v", list)
	}
}

func TestRemoveRestoresWhenStillPresent(t *testing.T) {
	target := named("stuck", "jjjjjjjjjj")
	svc := &fakeService{
		listFn: func(ctx context.Context) ([]domain.Persona, error) {
			return []domain.Persona{target}, nil
		},
		deleteFn: func(ctx context.Context, uniqueID string) error {
			return &personaclient.APIError{Status: 500, Message: "boom"}
		},
		getFn: func(ctx context.Context, uniqueID string) (domain.Persona, error) {
			return target, nil
		},
	}
	reg, _ := testRegistry(svc)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	err := reg.Remove(context.Background(), target.ID, target.UniqueID)
	var se *SyncError
	if !errors.As(err, &se) {
		t.Fatalf("want SyncError, got %v", err)
	}
	list := reg.Personas()
	if len(list) != 1 || list[0].UniqueID != target.UniqueID {
		t.Fatalf("persona not restored: %+v", list)
	}
}

func TestMutationSettlesOnce(t *testing.T) {
	m := NewMutation([]domain.Persona{named("snap", "kkkkkkkkkk")})
	if m.State() != MutationApplied {
		t.Fatalf("state = %v, want applied", m.State())
	}
	if err := m.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := m.Revert(); !errors.Is(err, ErrMutationSettled) {
		t.Fatalf("second settle should fail, got %v", err)
	}
	if m.State() != MutationConfirmed {
		t.Fatalf("state = %v, want confirmed", m.State())
	}
}
