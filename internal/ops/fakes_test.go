package ops

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pawhaven/api/internal/config"
	"pawhaven/api/internal/store"
)

// fakeStore implements documentStore with overridable hooks and a call
// journal so tests can assert that rejected operations touched nothing.
type fakeStore struct {
	calls []string

	profileExistsFn        func(ctx context.Context, handle string) (bool, error)
	profileExistsForUserFn func(ctx context.Context, userID string) (bool, error)
	insertProfileFn        func(ctx context.Context, profile store.Profile) error
	addPetWatchedFn        func(ctx context.Context, handle, petID string) error
	removePetWatchedFn     func(ctx context.Context, handle, petID string) error
	insertPetFn            func(ctx context.Context, pet store.Pet) error
	updatePetFn            func(ctx context.Context, petID string, patch map[string]any) error
	deletePetFn            func(ctx context.Context, petID string) error
	upsertInstitutionFn    func(ctx context.Context, institution store.Institution) error
}

func (f *fakeStore) ProfileExists(ctx context.Context, handle string) (bool, error) {
	f.calls = append(f.calls, "ProfileExists")
	if f.profileExistsFn != nil {
		return f.profileExistsFn(ctx, handle)
	}
	return false, nil
}

func (f *fakeStore) ProfileExistsForUser(ctx context.Context, userID string) (bool, error) {
	f.calls = append(f.calls, "ProfileExistsForUser")
	if f.profileExistsForUserFn != nil {
		return f.profileExistsForUserFn(ctx, userID)
	}
	return false, nil
}

func (f *fakeStore) InsertProfile(ctx context.Context, profile store.Profile) error {
	f.calls = append(f.calls, "InsertProfile")
	if f.insertProfileFn != nil {
		return f.insertProfileFn(ctx, profile)
	}
	return nil
}

func (f *fakeStore) AddPetWatched(ctx context.Context, handle, petID string) error {
	f.calls = append(f.calls, "AddPetWatched")
	if f.addPetWatchedFn != nil {
		return f.addPetWatchedFn(ctx, handle, petID)
	}
	return nil
}

func (f *fakeStore) RemovePetWatched(ctx context.Context, handle, petID string) error {
	f.calls = append(f.calls, "RemovePetWatched")
	if f.removePetWatchedFn != nil {
		return f.removePetWatchedFn(ctx, handle, petID)
	}
	return nil
}

func (f *fakeStore) InsertPet(ctx context.Context, pet store.Pet) error {
	f.calls = append(f.calls, "InsertPet")
	if f.insertPetFn != nil {
		return f.insertPetFn(ctx, pet)
	}
	return nil
}

func (f *fakeStore) UpdatePet(ctx context.Context, petID string, patch map[string]any) error {
	f.calls = append(f.calls, "UpdatePet")
	if f.updatePetFn != nil {
		return f.updatePetFn(ctx, petID, patch)
	}
	return nil
}

func (f *fakeStore) DeletePet(ctx context.Context, petID string) error {
	f.calls = append(f.calls, "DeletePet")
	if f.deletePetFn != nil {
		return f.deletePetFn(ctx, petID)
	}
	return nil
}

func (f *fakeStore) UpsertInstitution(ctx context.Context, institution store.Institution) error {
	f.calls = append(f.calls, "UpsertInstitution")
	if f.upsertInstitutionFn != nil {
		return f.upsertInstitutionFn(ctx, institution)
	}
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

// fakeIdentity keeps users in memory keyed by id and email.
type fakeIdentity struct {
	usersByID    map[string]store.User
	usersByEmail map[string]store.User
	setClaims    []map[string]bool
	setClaimsIDs []string
}

func newFakeIdentity(users ...store.User) *fakeIdentity {
	f := &fakeIdentity{
		usersByID:    map[string]store.User{},
		usersByEmail: map[string]store.User{},
	}
	for _, user := range users {
		f.usersByID[user.ID] = user
		f.usersByEmail[user.Email] = user
	}
	return f
}

func (f *fakeIdentity) SignUp(_ context.Context, email, _, displayName string) (store.User, error) {
	if _, ok := f.usersByEmail[email]; ok {
		return store.User{}, errors.New("email already registered")
	}
	user := store.User{ID: "user-" + email, Email: email, DisplayName: displayName, Claims: map[string]bool{}}
	f.usersByID[user.ID] = user
	f.usersByEmail[email] = user
	return user, nil
}

func (f *fakeIdentity) SignIn(_ context.Context, email, _ string) (store.User, error) {
	user, ok := f.usersByEmail[email]
	if !ok {
		return store.User{}, errors.New("invalid credentials")
	}
	return user, nil
}

func (f *fakeIdentity) GetByID(_ context.Context, id string) (store.User, error) {
	user, ok := f.usersByID[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeIdentity) GetByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.usersByEmail[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeIdentity) SetClaims(_ context.Context, id string, claims map[string]bool) error {
	f.setClaimsIDs = append(f.setClaimsIDs, id)
	f.setClaims = append(f.setClaims, claims)
	user, ok := f.usersByID[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Claims = claims
	f.usersByID[id] = user
	f.usersByEmail[user.Email] = user
	return nil
}

func (f *fakeIdentity) ClaimsFor(_ context.Context, id string) (map[string]bool, error) {
	user, ok := f.usersByID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if user.Claims == nil {
		return map[string]bool{}, nil
	}
	return user.Claims, nil
}

// fakeBlobs records saved objects and signs predictable URLs.
type fakeBlobs struct {
	saved        map[string][]byte
	contentTypes map[string]string
	saveErr      error
	signErr      error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{
		saved:        map[string][]byte{},
		contentTypes: map[string]string{},
	}
}

func (f *fakeBlobs) Save(_ context.Context, key string, data []byte, contentType string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[key] = data
	f.contentTypes[key] = contentType
	return nil
}

func (f *fakeBlobs) SignedURL(_ context.Context, key string) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://blobs.test/" + key + "?sig=abc", nil
}

type fakeNotifier struct {
	notified int
}

func (f *fakeNotifier) Notify() { f.notified++ }

func newTestService(documents documentStore, ids identityProvider, blobs blobStore, builds notifier) *Service {
	if documents == nil {
		documents = &fakeStore{}
	}
	if ids == nil {
		ids = newFakeIdentity()
	}
	if blobs == nil {
		blobs = newFakeBlobs()
	}
	cfg := config.Config{
		TokenSecret: "test-secret",
		AccessTTL:   time.Hour,
		AdminEmail:  "owner@pawhaven.dev",
	}
	svc := NewService(cfg, documents, ids, blobs, builds)
	// deterministic storage keys in tests
	svc.keyFor = func(baseName, ext string) string {
		return "petImages/" + baseName + "1." + ext
	}
	return svc
}
