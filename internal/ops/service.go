package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pawhaven/api/internal/auth"
	"pawhaven/api/internal/config"
	"pawhaven/api/internal/store"
	"pawhaven/api/internal/util"
)

// ErrUnknownOperation is returned by Call when no catalog entry matches the
// requested name.
var ErrUnknownOperation = errors.New("unknown operation")

type documentStore interface {
	ProfileExists(ctx context.Context, handle string) (bool, error)
	ProfileExistsForUser(ctx context.Context, userID string) (bool, error)
	InsertProfile(ctx context.Context, profile store.Profile) error
	AddPetWatched(ctx context.Context, handle, petID string) error
	RemovePetWatched(ctx context.Context, handle, petID string) error
	InsertPet(ctx context.Context, pet store.Pet) error
	UpdatePet(ctx context.Context, petID string, patch map[string]any) error
	DeletePet(ctx context.Context, petID string) error
	UpsertInstitution(ctx context.Context, institution store.Institution) error
	Ping(ctx context.Context) error
}

type identityProvider interface {
	SignUp(ctx context.Context, email, password, displayName string) (store.User, error)
	SignIn(ctx context.Context, email, password string) (store.User, error)
	GetByID(ctx context.Context, id string) (store.User, error)
	GetByEmail(ctx context.Context, email string) (store.User, error)
	SetClaims(ctx context.Context, id string, claims map[string]bool) error
	ClaimsFor(ctx context.Context, id string) (map[string]bool, error)
}

type blobStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string) (string, error)
}

type notifier interface {
	Notify()
}

// operation is one catalog entry: fixed authorization flags, a declared
// envelope schema, and the body that runs once both checks pass. The
// schema is computed per call only where the source did so (updatePet's
// nullable image).
type operation struct {
	gated              bool
	requireAdmin       bool
	requireInstitution bool
	schemaFor          func(Envelope) Schema
	handler            func(context.Context, *Caller, Envelope) (any, error)
}

func staticSchema(schema Schema) func(Envelope) Schema {
	return func(Envelope) Schema { return schema }
}

type Service struct {
	cfg     config.Config
	store   documentStore
	ids     identityProvider
	blobs   blobStore
	builds  notifier
	keyFor  blobKeyFunc
	catalog map[string]operation
}

func NewService(cfg config.Config, documents documentStore, ids identityProvider, blobs blobStore, builds notifier) *Service {
	s := &Service{
		cfg:    cfg,
		store:  documents,
		ids:    ids,
		blobs:  blobs,
		builds: builds,
		keyFor: randomImageKey,
	}
	s.catalog = map[string]operation{
		"checkLogin": {
			schemaFor: staticSchema(Schema{"userName": TypeString}),
			handler:   s.checkLogin,
		},
		"createPublicProfile": {
			gated:     true,
			schemaFor: staticSchema(Schema{"userName": TypeString}),
			handler:   s.createPublicProfile,
		},
		"addToPetsWatched": {
			gated:     true,
			schemaFor: staticSchema(Schema{"petId": TypeString, "userName": TypeString}),
			handler:   s.addToPetsWatched,
		},
		"removeFromPetsWatched": {
			gated:     true,
			schemaFor: staticSchema(Schema{"petId": TypeString, "userName": TypeString}),
			handler:   s.removeFromPetsWatched,
		},
		"addPet": {
			gated:              true,
			requireInstitution: true,
			schemaFor: staticSchema(Schema{
				"species":       TypeString,
				"name":          TypeString,
				"lead":          TypeString,
				"description":   TypeString,
				"institutionId": TypeString,
				"filters":       TypeObject,
				"petImage":      TypeString,
			}),
			handler: s.addPet,
		},
		"updatePet": {
			gated:              true,
			requireInstitution: true,
			schemaFor:          updatePetSchema,
			handler:            s.updatePet,
		},
		"removePet": {
			gated:              true,
			requireInstitution: true,
			schemaFor:          staticSchema(Schema{"petId": TypeString}),
			handler:            s.removePet,
		},
		"addInstitutionRole": {
			gated:        true,
			requireAdmin: true,
			schemaFor:    staticSchema(Schema{"email": TypeString}),
			handler:      s.addInstitutionRole,
		},
		"addToInstitutions": {
			gated:        true,
			requireAdmin: true,
			schemaFor: staticSchema(Schema{
				"name":  TypeString,
				"email": TypeString,
				"city":  TypeString,
			}),
			handler: s.addToInstitutions,
		},
	}
	return s
}

// updatePet accepts either a fresh encoded image or an explicit null to
// keep the current one, so the declared type of petImage flips per call.
func updatePetSchema(envelope Envelope) Schema {
	imageType := TypeString
	if envelope["petImage"] == nil {
		imageType = TypeObject
	}
	return Schema{
		"petId":           TypeString,
		"petDataToUpdate": TypeObject,
		"petImage":        imageType,
	}
}

// Call dispatches a named operation: authorization gate first, then schema
// validation, then the body. Every failure on the first two steps aborts
// before any store mutation.
func (s *Service) Call(ctx context.Context, name string, caller *Caller, envelope Envelope) (any, error) {
	op, ok := s.catalog[name]
	if !ok {
		return nil, ErrUnknownOperation
	}
	if op.gated {
		if err := Authorize(caller, op.requireAdmin, op.requireInstitution); err != nil {
			return nil, err
		}
	}
	if envelope == nil {
		envelope = Envelope{}
	}
	if err := Validate(envelope, op.schemaFor(envelope)); err != nil {
		return nil, err
	}
	return op.handler(ctx, caller, envelope)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── operation bodies ──

func (s *Service) checkLogin(ctx context.Context, _ *Caller, envelope Envelope) (any, error) {
	handle := envelope["userName"].(string)
	taken, err := s.store.ProfileExists(ctx, handle)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, failAlreadyExists("this login is already taken")
	}
	return map[string]any{"available": true}, nil
}

func (s *Service) createPublicProfile(ctx context.Context, caller *Caller, envelope Envelope) (any, error) {
	handle := envelope["userName"].(string)

	owned, err := s.store.ProfileExistsForUser(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, failAlreadyExists("this user already has a public profile")
	}

	user, err := s.ids.GetByID(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	if s.cfg.AdminEmail != "" && strings.EqualFold(user.Email, s.cfg.AdminEmail) {
		claims := cloneClaims(user.Claims)
		claims[ClaimAdmin] = true
		if err := s.ids.SetClaims(ctx, caller.ID, claims); err != nil {
			return nil, err
		}
	}

	if err := s.store.InsertProfile(ctx, store.Profile{Handle: handle, UserID: caller.ID}); err != nil {
		return nil, err
	}
	return map[string]any{"userName": handle}, nil
}

func (s *Service) addToPetsWatched(ctx context.Context, _ *Caller, envelope Envelope) (any, error) {
	handle := envelope["userName"].(string)
	petID := envelope["petId"].(string)
	if err := s.store.AddPetWatched(ctx, handle, petID); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) removeFromPetsWatched(ctx context.Context, _ *Caller, envelope Envelope) (any, error) {
	handle := envelope["userName"].(string)
	petID := envelope["petId"].(string)
	if err := s.store.RemovePetWatched(ctx, handle, petID); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) addPet(ctx context.Context, _ *Caller, envelope Envelope) (any, error) {
	name := envelope["name"].(string)

	imageURL, err := s.ingestImage(ctx, envelope["petImage"].(string), name)
	if err != nil {
		return nil, err
	}

	pet := store.Pet{
		ID:            util.NewID("pet"),
		Species:       envelope["species"].(string),
		Name:          name,
		Lead:          envelope["lead"].(string),
		Description:   envelope["description"].(string),
		Filters:       objectField(envelope, "filters"),
		ImageURL:      imageURL,
		InstitutionID: envelope["institutionId"].(string),
	}
	if err := s.store.InsertPet(ctx, pet); err != nil {
		return nil, err
	}

	if s.builds != nil {
		s.builds.Notify()
	}
	return map[string]any{"petId": pet.ID}, nil
}

func (s *Service) updatePet(ctx context.Context, _ *Caller, envelope Envelope) (any, error) {
	petID := envelope["petId"].(string)
	patch := cloneObject(objectField(envelope, "petDataToUpdate"))

	if encoded, ok := envelope["petImage"].(string); ok {
		imageURL, err := s.ingestImage(ctx, encoded, petID)
		if err != nil {
			return nil, err
		}
		patch["imageUrl"] = imageURL
	}

	if err := s.store.UpdatePet(ctx, petID, patch); err != nil {
		return nil, err
	}
	return map[string]any{"petId": petID}, nil
}

func (s *Service) removePet(ctx context.Context, _ *Caller, envelope Envelope) (any, error) {
	petID := envelope["petId"].(string)
	if err := s.store.DeletePet(ctx, petID); err != nil {
		return nil, err
	}
	return map[string]any{"petId": petID}, nil
}

func (s *Service) addInstitutionRole(ctx context.Context, _ *Caller, envelope Envelope) (any, error) {
	email := envelope["email"].(string)
	user, err := s.ids.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	claims := cloneClaims(user.Claims)
	claims[ClaimInstitution] = true
	if err := s.ids.SetClaims(ctx, user.ID, claims); err != nil {
		return nil, err
	}
	return map[string]any{"userId": user.ID}, nil
}

func (s *Service) addToInstitutions(ctx context.Context, _ *Caller, envelope Envelope) (any, error) {
	email := envelope["email"].(string)
	user, err := s.ids.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	institution := store.Institution{
		ID:    user.ID,
		Name:  strings.ToLower(envelope["name"].(string)),
		Email: email,
		City:  strings.ToLower(envelope["city"].(string)),
	}
	if err := s.store.UpsertInstitution(ctx, institution); err != nil {
		return nil, err
	}
	return map[string]any{"institutionId": institution.ID}, nil
}

// ── authentication surface ──

// AuthSession is the value handed back by signup/signin: a bearer token
// carrying only the subject id. Claims are re-read from the identity
// provider on every gated call, so grants take effect without re-login.
type AuthSession struct {
	Token       string
	UserID      string
	DisplayName string
	ExpiresAt   time.Time
}

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (AuthSession, error) {
	user, err := s.ids.SignUp(ctx, email, password, displayName)
	if err != nil {
		return AuthSession{}, err
	}
	return s.issueSession(user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (AuthSession, error) {
	user, err := s.ids.SignIn(ctx, email, password)
	if err != nil {
		return AuthSession{}, err
	}
	return s.issueSession(user)
}

func (s *Service) issueSession(user store.User) (AuthSession, error) {
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub: user.ID,
		JTI: util.NewID("jti"),
		Exp: expiresAt.Unix(),
	})
	if err != nil {
		return AuthSession{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthSession{
		Token:       token,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		ExpiresAt:   expiresAt,
	}, nil
}

// CallerFromToken resolves a bearer token into the immutable caller value
// handed to operations: subject id from the token, claim flags read through
// the identity provider at call time.
func (s *Service) CallerFromToken(ctx context.Context, token string) (*Caller, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return nil, err
	}
	flags, err := s.ids.ClaimsFor(ctx, claims.Sub)
	if err != nil {
		return nil, err
	}
	return &Caller{ID: claims.Sub, Claims: flags}, nil
}

func objectField(envelope Envelope, key string) map[string]any {
	value, _ := envelope[key].(map[string]any)
	return value
}

func cloneObject(value map[string]any) map[string]any {
	cloned := make(map[string]any, len(value))
	for key, item := range value {
		cloned[key] = item
	}
	return cloned
}

func cloneClaims(claims map[string]bool) map[string]bool {
	cloned := make(map[string]bool, len(claims))
	for name, granted := range claims {
		cloned[name] = granted
	}
	return cloned
}
