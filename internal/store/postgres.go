package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── profiles ──

func (s *PostgresStore) ProfileExists(ctx context.Context, handle string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE handle=$1)`, handle).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check profile: %w", err)
	}
	return exists, nil
}

// ProfileExistsForUser answers the "does this caller already own a profile"
// pre-check with a query-by-field, limit 1.
func (s *PostgresStore) ProfileExistsForUser(ctx context.Context, userID string) (bool, error) {
	var handle string
	err := s.db.QueryRowContext(ctx, `SELECT handle FROM profiles WHERE user_id=$1 LIMIT 1`, userID).Scan(&handle)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check profile owner: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, handle string) (Profile, error) {
	var profile Profile
	var watched string
	err := s.db.QueryRowContext(ctx, `
		SELECT handle, user_id, array_to_json(pets_watched)::text, created_at
		FROM profiles
		WHERE handle=$1
	`, handle).Scan(&profile.Handle, &profile.UserID, &watched, &profile.CreatedAt)
	if err != nil {
		return Profile{}, err
	}
	if err := json.Unmarshal([]byte(watched), &profile.PetsWatched); err != nil {
		return Profile{}, fmt.Errorf("decode watch list: %w", err)
	}
	return profile, nil
}

func (s *PostgresStore) InsertProfile(ctx context.Context, profile Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (handle, user_id, pets_watched)
		VALUES ($1, $2, '{}')
	`, profile.Handle, profile.UserID)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// AddPetWatched unions a pet id into the named profile's watch list. The
// append and the duplicate guard happen in one statement, so the update is
// atomic at the document level. A missing profile surfaces as
// sql.ErrNoRows, matching the store's get-by-key behavior.
func (s *PostgresStore) AddPetWatched(ctx context.Context, handle, petID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET pets_watched = array_append(pets_watched, $2)
		WHERE handle=$1 AND NOT ($2 = ANY(pets_watched))
	`, handle, petID)
	if err != nil {
		return fmt.Errorf("add watched pet: %w", err)
	}
	return s.watchTouched(ctx, result, handle)
}

func (s *PostgresStore) RemovePetWatched(ctx context.Context, handle, petID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET pets_watched = array_remove(pets_watched, $2)
		WHERE handle=$1
	`, handle, petID)
	if err != nil {
		return fmt.Errorf("remove watched pet: %w", err)
	}
	return s.watchTouched(ctx, result, handle)
}

// watchTouched distinguishes "already in the desired state" from "profile
// does not exist" when an array update matched no rows.
func (s *PostgresStore) watchTouched(ctx context.Context, result sql.Result, handle string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("watch list rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	exists, err := s.ProfileExists(ctx, handle)
	if err != nil {
		return err
	}
	if !exists {
		return sql.ErrNoRows
	}
	return nil
}

// ── pets ──

func (s *PostgresStore) GetPet(ctx context.Context, petID string) (Pet, error) {
	var pet Pet
	var filters []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, species, name, lead, description, filters, image_url, institution_id, created_at, updated_at
		FROM pets
		WHERE id=$1
	`, petID).Scan(&pet.ID, &pet.Species, &pet.Name, &pet.Lead, &pet.Description, &filters, &pet.ImageURL, &pet.InstitutionID, &pet.CreatedAt, &pet.UpdatedAt)
	if err != nil {
		return Pet{}, err
	}
	if err := json.Unmarshal(filters, &pet.Filters); err != nil {
		return Pet{}, fmt.Errorf("decode pet filters: %w", err)
	}
	return pet, nil
}

func (s *PostgresStore) InsertPet(ctx context.Context, pet Pet) error {
	filters := pet.Filters
	if filters == nil {
		filters = map[string]any{}
	}
	encoded, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("encode pet filters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pets (id, species, name, lead, description, filters, image_url, institution_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, pet.ID, pet.Species, pet.Name, pet.Lead, pet.Description, encoded, pet.ImageURL, pet.InstitutionID)
	if err != nil {
		return fmt.Errorf("insert pet: %w", err)
	}
	return nil
}

// UpdatePet applies a partial patch: only provided keys change. Known
// fields map to their columns; the "filters" key replaces the filter map
// wholesale; any other key merges into it, since filters are the pet's
// open-ended attribute bag. A missing pet surfaces as sql.ErrNoRows.
func (s *PostgresStore) UpdatePet(ctx context.Context, petID string, patch map[string]any) error {
	sets, args, err := buildPetPatch(petID, patch)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		exists := false
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pets WHERE id=$1)`, petID).Scan(&exists); err != nil {
			return fmt.Errorf("check pet: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}
		return nil
	}

	query := "UPDATE pets SET " + strings.Join(sets, ", ") + ", updated_at=NOW() WHERE id=$1"
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update pet: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pet rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

var petPatchColumns = map[string]string{
	"species":       "species",
	"name":          "name",
	"lead":          "lead",
	"description":   "description",
	"imageUrl":      "image_url",
	"institutionId": "institution_id",
}

// buildPetPatch compiles a patch map into SET clauses with stable ordering.
// args[0] is reserved for the pet id.
func buildPetPatch(petID string, patch map[string]any) (sets []string, args []any, err error) {
	args = []any{petID}

	keys := make([]string, 0, len(patch))
	for key := range patch {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	extras := map[string]any{}
	for _, key := range keys {
		if column, ok := petPatchColumns[key]; ok {
			args = append(args, patch[key])
			sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
			continue
		}
		if key == "filters" {
			encoded, marshalErr := json.Marshal(patch[key])
			if marshalErr != nil {
				return nil, nil, fmt.Errorf("encode filters patch: %w", marshalErr)
			}
			args = append(args, string(encoded))
			sets = append(sets, fmt.Sprintf("filters=$%d::jsonb", len(args)))
			continue
		}
		extras[key] = patch[key]
	}

	if len(extras) > 0 {
		encoded, marshalErr := json.Marshal(extras)
		if marshalErr != nil {
			return nil, nil, fmt.Errorf("encode filters patch: %w", marshalErr)
		}
		args = append(args, string(encoded))
		sets = append(sets, fmt.Sprintf("filters=filters || $%d::jsonb", len(args)))
	}
	return sets, args, nil
}

func (s *PostgresStore) DeletePet(ctx context.Context, petID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM pets WHERE id=$1`, petID)
	if err != nil {
		return fmt.Errorf("delete pet: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pet rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ── institutions ──

func (s *PostgresStore) GetInstitution(ctx context.Context, id string) (Institution, error) {
	var institution Institution
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, city, created_at
		FROM institutions
		WHERE id=$1
	`, id).Scan(&institution.ID, &institution.Name, &institution.Email, &institution.City, &institution.CreatedAt)
	if err != nil {
		return Institution{}, err
	}
	return institution, nil
}

func (s *PostgresStore) UpsertInstitution(ctx context.Context, institution Institution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO institutions (id, name, email, city)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email, city=EXCLUDED.city
	`, institution.ID, institution.Name, institution.Email, institution.City)
	if err != nil {
		return fmt.Errorf("upsert institution: %w", err)
	}
	return nil
}

// ── users (identity provider storage) ──

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, claims, created_at
		FROM users
		WHERE id=$1
	`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, claims, created_at
		FROM users
		WHERE email=$1
	`, email))
}

func scanUser(row *sql.Row) (User, error) {
	var user User
	var claims []byte
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &claims, &user.CreatedAt); err != nil {
		return User{}, err
	}
	if err := json.Unmarshal(claims, &user.Claims); err != nil {
		return User{}, fmt.Errorf("decode user claims: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	claims := user.Claims
	if claims == nil {
		claims = map[string]bool{}
	}
	encoded, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encode user claims: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, claims)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash, encoded)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserClaims(ctx context.Context, id string, claims map[string]bool) error {
	encoded, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encode user claims: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `UPDATE users SET claims=$2 WHERE id=$1`, id, encoded)
	if err != nil {
		return fmt.Errorf("update user claims: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claims rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
