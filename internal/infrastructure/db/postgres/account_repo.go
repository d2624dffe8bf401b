package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

// Unique constraints declared in schema.go. Violations map to the same
// conflict codes as the in-transaction existence checks.
const (
	constraintCredentialEmail   = "credentials_email_key"
	constraintCredentialProfile = "credentials_profile_id_key"
	constraintProfileRegistry   = "profiles_registry_id_key"
)

type AccountRepo struct {
	gw *Gateway
}

func NewAccountRepo(gw *Gateway) *AccountRepo {
	return &AccountRepo{gw: gw}
}

// ExistsForRegistry reports whether a credential is already linked, through
// its profile, to the registry record.
func (r *AccountRepo) ExistsForRegistry(ctx context.Context, registryID int64) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1
  FROM profiles p
  JOIN credentials c ON c.profile_id = p.id
  WHERE p.registry_id = $1
);
`
	var exists bool
	if err := r.gw.QueryRow(ctx, q, []any{registryID}, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Finalize writes the profile and its credential in one transaction. The row
// lock on the registry record serializes concurrent finalizations for the
// same identity, so the second one sees the first one's profile and gets a
// conflict. Unique constraints back this up.
func (r *AccountRepo) Finalize(ctx context.Context, in domain.NewAccount) (domain.NewAccount, error) {
	p, c := in.Profile, in.Credential
	c.Email = domain.NormalizeEmail(c.Email)
	switch {
	case p.ID == "":
		return in, domain.ErrMissingField("profile_id")
	case c.ID == "":
		return in, domain.ErrMissingField("credential_id")
	case c.Email == "":
		return in, domain.ErrMissingField("email")
	case c.PasswordHash == "":
		return in, domain.ErrMissingField("password_hash")
	}
	c.ProfileID = p.ID
	if c.Status == "" {
		c.Status = domain.StatusUnverified
	}

	err := r.gw.WithTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx *sql.Tx) error {
		var locked int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM registry_records WHERE id = $1 FOR UPDATE`, p.RegistryID,
		).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrRegistryRecordNotFound()
		}
		if err != nil {
			return err
		}

		// The identity link is checked first: a replayed completion for an
		// already linked record is account_already_exists even when the
		// email is also taken.
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM profiles WHERE registry_id = $1)`, p.RegistryID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return domain.ErrAccountAlreadyExists()
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM credentials WHERE email = $1)`, c.Email,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return domain.ErrEmailAlreadyExists()
		}

		const insertProfile = `
INSERT INTO profiles (id, registry_id, category, affiliation, relationship, principal_name)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at;
`
		if err := tx.QueryRowContext(ctx, insertProfile,
			p.ID, p.RegistryID, string(p.Category),
			nullString(p.Affiliation), nullString(string(p.Relationship)), nullString(p.PrincipalName),
		).Scan(&p.CreatedAt); err != nil {
			return err
		}

		const insertCredential = `
INSERT INTO credentials (id, profile_id, email, password_hash, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at;
`
		return tx.QueryRowContext(ctx, insertCredential,
			c.ID, c.ProfileID, c.Email, c.PasswordHash, string(c.Status),
		).Scan(&c.CreatedAt)
	})
	if err != nil {
		return in, refineUniqueViolation(err)
	}
	return domain.NewAccount{Profile: p, Credential: c}, nil
}

func refineUniqueViolation(err error) error {
	if !domain.Is(err, "db_unique_violation") {
		return err
	}
	switch ConstraintName(err) {
	case constraintCredentialEmail:
		return domain.ErrEmailAlreadyExists()
	case constraintProfileRegistry, constraintCredentialProfile:
		return domain.ErrAccountAlreadyExists()
	default:
		return err
	}
}

const accountSelect = `
SELECT c.id, c.profile_id, c.email, c.password_hash, c.status, c.last_login_at, c.created_at,
       p.id, p.registry_id, p.category, p.affiliation, p.relationship, p.principal_name, p.created_at,
       r.first_name, r.last_name, r.serial_id
FROM credentials c
JOIN profiles p ON p.id = c.profile_id
JOIN registry_records r ON r.id = p.registry_id
`

// GetLoginByEmail returns the joined credential, profile and registry row.
func (r *AccountRepo) GetLoginByEmail(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.Account{}, domain.ErrMissingField("email")
	}
	return r.getOne(ctx, accountSelect+`WHERE c.email = $1 LIMIT 1;`, email)
}

// GetByID looks an account up by credential id.
func (r *AccountRepo) GetByID(ctx context.Context, credentialID string) (domain.Account, error) {
	if credentialID == "" {
		return domain.Account{}, domain.ErrMissingField("id")
	}
	return r.getOne(ctx, accountSelect+`WHERE c.id = $1 LIMIT 1;`, credentialID)
}

func (r *AccountRepo) getOne(ctx context.Context, q string, arg any) (domain.Account, error) {
	var (
		a                                     domain.Account
		status, category                      string
		lastLogin                             sql.NullTime
		affiliation, relationship, principal sql.NullString
	)
	err := r.gw.QueryRow(ctx, q, []any{arg},
		&a.Credential.ID,
		&a.Credential.ProfileID,
		&a.Credential.Email,
		&a.Credential.PasswordHash,
		&status,
		&lastLogin,
		&a.Credential.CreatedAt,
		&a.Profile.ID,
		&a.Profile.RegistryID,
		&category,
		&affiliation,
		&relationship,
		&principal,
		&a.Profile.CreatedAt,
		&a.FirstName,
		&a.LastName,
		&a.SerialID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound()
		}
		return domain.Account{}, err
	}

	a.Credential.Status = domain.AccountStatus(status)
	if lastLogin.Valid {
		t := lastLogin.Time
		a.Credential.LastLoginAt = &t
	}
	a.Profile.Category = domain.Category(category)
	a.Profile.Affiliation = affiliation.String
	a.Profile.Relationship = domain.Relationship(relationship.String)
	a.Profile.PrincipalName = principal.String
	return a, nil
}

func (r *AccountRepo) TouchLastLogin(ctx context.Context, credentialID string, at time.Time) error {
	n, err := r.gw.Exec(ctx, `UPDATE credentials SET last_login_at = $2 WHERE id = $1`, credentialID, at.UTC())
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAccountNotFound()
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
