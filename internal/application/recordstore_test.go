package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/cookiesync/internal/application"
	"github.com/ericfisherdev/cookiesync/internal/domain/model"
	"github.com/ericfisherdev/cookiesync/internal/domain/port/driven"
)

func newSettingsStore(t *testing.T, repo *fakeSettingsRepo) *application.SettingsStore {
	t.Helper()
	store := application.NewSettingsStore(repo, nil)
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestRecordStore_GetReturnsDefaultWhenNothingStored(t *testing.T) {
	store := newSettingsStore(t, &fakeSettingsRepo{})

	got := store.Get()
	assert.Equal(t, model.DefaultSettings(), got)
	assert.Equal(t, model.DefaultStorageKey, got.StorageKey)
	assert.False(t, got.ProtobufEncoding)
	assert.Empty(t, store.Revision())
}

func TestRecordStore_GetBeforeInitReturnsDefault(t *testing.T) {
	store := application.NewCredentialStore(&fakeCredentialRepo{}, nil)

	assert.Equal(t, model.Credential{}, store.Get())
}

func TestRecordStore_InitLoadsStoredValue(t *testing.T) {
	repo := &fakeSettingsRepo{}
	repo.put(model.Settings{StorageKey: "teamA", ProtobufEncoding: true})

	store := newSettingsStore(t, repo)

	assert.Equal(t, model.Settings{StorageKey: "teamA", ProtobufEncoding: true}, store.Get())
	assert.Equal(t, "1", store.Revision())
}

func TestRecordStore_InitFailureIsRetryable(t *testing.T) {
	repo := &fakeSettingsRepo{loadErr: errDiskFull}
	store := application.NewSettingsStore(repo, nil)
	ctx := context.Background()

	err := store.Init(ctx)
	var perr *application.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, application.RecordSettings, perr.Record)
	assert.ErrorIs(t, err, errDiskFull)

	select {
	case <-store.Ready():
		t.Fatal("ready must not close after a failed load")
	default:
	}

	repo.mu.Lock()
	repo.loadErr = nil
	repo.mu.Unlock()

	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Wait(ctx))
}

func TestRecordStore_WaitHonoursContext(t *testing.T) {
	store := application.NewSettingsStore(&fakeSettingsRepo{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, store.Wait(ctx), context.DeadlineExceeded)
}

func TestRecordStore_UpdateMergesPatch(t *testing.T) {
	repo := &fakeCredentialRepo{}
	repo.put(model.Credential{Token: "tok", AccountID: "acct", NamespaceID: "ns"})
	store := application.NewCredentialStore(repo, nil)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	err := store.Update(ctx, model.CredentialPatch{AccountID: ptr("acct-2")})
	require.NoError(t, err)

	want := model.Credential{Token: "tok", AccountID: "acct-2", NamespaceID: "ns"}
	assert.Equal(t, want, store.Get())
	assert.Equal(t, want, repo.current(), "value must be written through")
}

func TestRecordStore_EmptyPatchKeepsValueAndNotifies(t *testing.T) {
	repo := &fakeSettingsRepo{}
	repo.put(model.Settings{StorageKey: "teamA", ProtobufEncoding: true})
	store := newSettingsStore(t, repo)

	var seen []model.Settings
	unsubscribe := store.Subscribe(func(s model.Settings) { seen = append(seen, s) })
	defer unsubscribe()

	require.NoError(t, store.Update(context.Background(), model.SettingsPatch{}))

	require.Len(t, seen, 2, "initial value plus one commit")
	assert.Equal(t, seen[0], seen[1])
	assert.Equal(t, model.Settings{StorageKey: "teamA", ProtobufEncoding: true}, store.Get())
	assert.Equal(t, 1, repo.saveCount())
}

func TestRecordStore_UpdateNotifiesBeforeReturning(t *testing.T) {
	store := newSettingsStore(t, &fakeSettingsRepo{})

	var got model.Settings
	store.Subscribe(func(s model.Settings) { got = s })

	require.NoError(t, store.Update(context.Background(), model.SettingsPatch{ProtobufEncoding: ptr(true)}))
	assert.True(t, got.ProtobufEncoding)
}

func TestRecordStore_FailedWriteLeavesValueUntouched(t *testing.T) {
	repo := &fakeSettingsRepo{}
	repo.put(model.Settings{StorageKey: "teamA"})
	store := newSettingsStore(t, repo)
	repo.setSaveErr(errDiskFull)

	notified := 0
	store.Subscribe(func(model.Settings) { notified++ })

	err := store.Update(context.Background(), model.SettingsPatch{StorageKey: ptr("teamB")})
	var perr *application.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "update", perr.Op)
	assert.ErrorIs(t, err, errDiskFull)

	err = store.Reset(context.Background())
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "reset", perr.Op)

	assert.Equal(t, "teamA", store.Get().StorageKey)
	assert.Equal(t, 1, notified, "only the initial subscribe notification")
}

func TestRecordStore_ResetRestoresDefault(t *testing.T) {
	repo := &fakeDomainConfigRepo{}
	repo.put(model.DomainConfigs{"example.com": json.RawMessage(`{"autoPush":true}`)})
	store := application.NewDomainConfigStore(repo, nil)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))
	require.Len(t, store.Get(), 1)

	require.NoError(t, store.Reset(ctx))
	assert.Empty(t, store.Get())

	var first model.DomainConfigs
	calls := 0
	store.Subscribe(func(d model.DomainConfigs) {
		if calls == 0 {
			first = d
		}
		calls++
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, model.DefaultDomainConfigs(), first)
}

func TestRecordStore_ResetIsIdempotent(t *testing.T) {
	repo := &fakeDomainConfigRepo{}
	store := application.NewDomainConfigStore(repo, nil)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	require.NoError(t, store.Reset(ctx))
	require.NoError(t, store.Reset(ctx))

	assert.Empty(t, store.Get())
	assert.Empty(t, repo.current())
}

func TestRecordStore_DomainPatchSetsAndRemovesEntries(t *testing.T) {
	store := application.NewDomainConfigStore(&fakeDomainConfigRepo{}, nil)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	require.NoError(t, store.Update(ctx, model.DomainConfigPatch{
		"a.example": json.RawMessage(`1`),
		"b.example": json.RawMessage(`2`),
	}))
	require.NoError(t, store.Update(ctx, model.DomainConfigPatch{"a.example": nil}))

	got := store.Get()
	assert.Equal(t, []string{"b.example"}, got.Domains())
	assert.JSONEq(t, `2`, string(got["b.example"]))
}

func TestRecordStore_GetReturnsCopy(t *testing.T) {
	store := application.NewDomainConfigStore(&fakeDomainConfigRepo{}, nil)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Update(ctx, model.DomainConfigPatch{"a.example": json.RawMessage(`1`)}))

	got := store.Get()
	got["b.example"] = json.RawMessage(`2`)

	assert.Equal(t, []string{"a.example"}, store.Get().Domains())
}

func TestRecordStore_Unsubscribe(t *testing.T) {
	store := newSettingsStore(t, &fakeSettingsRepo{})
	ctx := context.Background()

	calls := 0
	unsubscribe := store.Subscribe(func(model.Settings) { calls++ })
	require.NoError(t, store.Update(ctx, model.SettingsPatch{ProtobufEncoding: ptr(true)}))
	unsubscribe()
	unsubscribe()
	require.NoError(t, store.Update(ctx, model.SettingsPatch{ProtobufEncoding: ptr(false)}))

	assert.Equal(t, 2, calls)
}

func TestRecordStore_RefreshPicksUpExternalWrites(t *testing.T) {
	repo := &fakeSettingsRepo{}
	store := newSettingsStore(t, repo)
	ctx := context.Background()

	var seen []string
	store.Subscribe(func(s model.Settings) { seen = append(seen, s.StorageKey) })

	changed, err := store.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	repo.put(model.Settings{StorageKey: "teamB"})

	changed, err = store.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "teamB", store.Get().StorageKey)

	changed, err = store.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, []string{model.DefaultStorageKey, "teamB"}, seen)
}

func TestRecordStore_RefreshFailure(t *testing.T) {
	repo := &fakeSettingsRepo{}
	store := newSettingsStore(t, repo)

	repo.mu.Lock()
	repo.loadErr = errors.New("locked")
	repo.mu.Unlock()

	_, err := store.Refresh(context.Background())
	var perr *application.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "refresh", perr.Op)
}

func TestRecordStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	repo := &fakeCredentialRepo{}
	store := application.NewCredentialStore(repo, nil)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers * 2)
	for i := range writers {
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Update(ctx, model.CredentialPatch{Token: ptr(string(rune('a' + i%26)))}))
		}()
		go func() {
			defer wg.Done()
			_ = store.Get()
		}()
	}
	wg.Wait()

	assert.Equal(t, writers, repo.saveCount())
	assert.Equal(t, repo.current(), store.Get(), "memory must match the last durable write")
}

func TestRecordStore_LastWriteWinsPerField(t *testing.T) {
	store := application.NewCredentialStore(&fakeCredentialRepo{}, nil)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	require.NoError(t, store.Update(ctx, model.CredentialPatch{Token: ptr("one"), AccountID: ptr("acct")}))
	require.NoError(t, store.Update(ctx, model.CredentialPatch{Token: ptr("two")}))

	assert.Equal(t, model.Credential{Token: "two", AccountID: "acct"}, store.Get())
}

func TestRecordStore_UpdateRebuildsOnExternalWrite(t *testing.T) {
	repo := &fakeSettingsRepo{}
	repo.put(model.Settings{StorageKey: "teamA"})
	store := newSettingsStore(t, repo)

	var seen []model.Settings
	store.Subscribe(func(s model.Settings) { seen = append(seen, s) })

	repo.put(model.Settings{StorageKey: "teamB"})

	require.NoError(t, store.Update(context.Background(), model.SettingsPatch{ProtobufEncoding: ptr(true)}))

	want := model.Settings{StorageKey: "teamB", ProtobufEncoding: true}
	assert.Equal(t, want, store.Get())
	assert.Equal(t, want, repo.current(), "the other writer's key must survive")
	assert.Equal(t, 1, repo.saveCount())
	assert.Equal(t, []model.Settings{
		{StorageKey: "teamA"},
		{StorageKey: "teamB"},
		want,
	}, seen)
}

func TestRecordStore_StaleDomainsAreNotResurrected(t *testing.T) {
	repo := &fakeDomainConfigRepo{}
	repo.put(model.DomainConfigs{"a.example": json.RawMessage(`1`)})
	store := application.NewDomainConfigStore(repo, nil)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	// Another process emptied the collection after a key change.
	repo.put(model.DomainConfigs{})

	require.NoError(t, store.Update(ctx, model.DomainConfigPatch{"b.example": json.RawMessage(`2`)}))

	assert.Equal(t, []string{"b.example"}, repo.current().Domains())
	assert.Equal(t, []string{"b.example"}, store.Get().Domains())
}

func TestRecordStore_ResetAfterExternalWrite(t *testing.T) {
	repo := &fakeDomainConfigRepo{}
	store := application.NewDomainConfigStore(repo, nil)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	repo.put(model.DomainConfigs{"a.example": json.RawMessage(`1`)})

	require.NoError(t, store.Reset(ctx))
	assert.Empty(t, repo.current())
	assert.Empty(t, store.Get())
}

// conflictingRepo rejects every save as if another writer always got there
// first.
type conflictingRepo struct {
	fakeSettingsRepo
	attempts int
}

func (r *conflictingRepo) Save(context.Context, model.Settings, string) (string, error) {
	r.attempts++
	return "", driven.ErrRevisionConflict
}

func TestRecordStore_ConflictRetriesAreBounded(t *testing.T) {
	repo := &conflictingRepo{}
	store := application.NewSettingsStore(repo, nil)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	err := store.Update(ctx, model.SettingsPatch{StorageKey: ptr("teamB")})

	var perr *application.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "update", perr.Op)
	assert.ErrorIs(t, err, driven.ErrRevisionConflict)
	assert.Equal(t, 3, repo.attempts)
	assert.Equal(t, model.DefaultStorageKey, store.Get().StorageKey)
}

func TestRecordStore_ConflictReloadFailure(t *testing.T) {
	repo := &fakeSettingsRepo{}
	store := newSettingsStore(t, repo)

	repo.put(model.Settings{StorageKey: "teamB"})
	repo.setLoadErr(errDiskFull)

	err := store.Update(context.Background(), model.SettingsPatch{ProtobufEncoding: ptr(true)})
	assert.ErrorIs(t, err, driven.ErrRevisionConflict)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 0, repo.saveCount())
	assert.Equal(t, "teamB", repo.current().StorageKey)
}

func TestRecordStore_RefreshWithRunsPrepareBeforePublishing(t *testing.T) {
	repo := &fakeSettingsRepo{}
	store := newSettingsStore(t, repo)
	ctx := context.Background()

	log := &callLog{}
	store.Subscribe(func(s model.Settings) { log.add("notify:" + s.StorageKey) })
	prepare := func(context.Context) error {
		log.add("prepare:" + store.Get().StorageKey)
		return nil
	}

	changed, err := store.RefreshWith(ctx, prepare)
	require.NoError(t, err)
	assert.False(t, changed)

	repo.put(model.Settings{StorageKey: "teamB"})
	changed, err = store.RefreshWith(ctx, prepare)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, []string{
		"notify:" + model.DefaultStorageKey,
		"prepare:" + model.DefaultStorageKey,
		"notify:teamB",
	}, log.list())
}

func TestRecordStore_RefreshWithPrepareFailureKeepsValue(t *testing.T) {
	repo := &fakeSettingsRepo{}
	store := newSettingsStore(t, repo)
	ctx := context.Background()

	repo.put(model.Settings{StorageKey: "teamB"})

	_, err := store.RefreshWith(ctx, func(context.Context) error { return errDiskFull })
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, model.DefaultStorageKey, store.Get().StorageKey)

	changed, err := store.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed, "the unpublished value is read again")
	assert.Equal(t, "teamB", store.Get().StorageKey)
}

func TestRecordStore_RefreshReadiesUnloadedStore(t *testing.T) {
	repo := &fakeSettingsRepo{loadErr: errDiskFull}
	store := application.NewSettingsStore(repo, nil)
	ctx := context.Background()
	require.Error(t, store.Init(ctx))

	repo.setLoadErr(nil)
	_, err := store.Refresh(ctx)
	require.NoError(t, err)

	select {
	case <-store.Ready():
	default:
		t.Fatal("store must be ready after a successful refresh")
	}
}
