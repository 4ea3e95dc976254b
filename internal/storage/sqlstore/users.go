package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/permission"
)

const userColumns = `id, name, email, password_hash, role, verified,
	code_purpose, code_hash, code_expires_at,
	totp_secret, totp_enabled, totp_last_counter,
	provider, provider_subject, created_at, updated_at`

var _ authsvc.UserStore = (*Store)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// unavailable tags err as a storage failure for the engine's error taxonomy.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, authsvc.ErrStoreUnavailable, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*authsvc.User, error) {
	var (
		u                      authsvc.User
		passwordHash           sql.NullString
		role                   string
		codePurpose, codeHash  sql.NullString
		codeExpiresAt          sql.NullInt64
		provider, providerSubj sql.NullString
		createdAt, updatedAt   int64
	)

	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &passwordHash, &role, &u.Verified,
		&codePurpose, &codeHash, &codeExpiresAt,
		&u.TOTPSecret, &u.TOTPEnabled, &u.TOTPLastCounter,
		&provider, &providerSubj, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.PasswordHash = passwordHash.String
	u.Role = permission.Role(role)
	if codePurpose.Valid && codeHash.Valid && codeExpiresAt.Valid {
		u.Code = &authsvc.OneTimeCode{
			Purpose:   authsvc.CodePurpose(codePurpose.String),
			Hash:      codeHash.String,
			ExpiresAt: fromMillis(codeExpiresAt.Int64),
		}
	}
	u.Provider = provider.String
	u.ProviderSubject = providerSubj.String
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)

	return &u, nil
}

// CreateUser inserts u. A duplicate email or provider identity returns
// authsvc.ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, u *authsvc.User) error {
	const op = "sqlstore.CreateUser"

	var (
		codePurpose, codeHash sql.NullString
		codeExpiresAt         sql.NullInt64
	)
	if u.Code != nil {
		codePurpose = nullString(string(u.Code.Purpose))
		codeHash = nullString(u.Code.Hash)
		codeExpiresAt = sql.NullInt64{Int64: toMillis(u.Code.ExpiresAt), Valid: true}
	}

	var secret any
	if len(u.TOTPSecret) > 0 {
		secret = u.TOTPSecret
	}

	_, err := s.exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, nullString(u.PasswordHash), string(u.Role), u.Verified,
		codePurpose, codeHash, codeExpiresAt,
		secret, u.TOTPEnabled, u.TOTPLastCounter,
		nullString(u.Provider), nullString(u.ProviderSubject),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authsvc.ErrEmailTaken
		}
		return unavailable(op, err)
	}
	return nil
}

func (s *Store) getUser(ctx context.Context, op, where string, args ...any) (*authsvc.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE `+where), args...)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authsvc.ErrUserNotFound
		}
		return nil, unavailable(op, err)
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*authsvc.User, error) {
	return s.getUser(ctx, "sqlstore.GetUserByID", "id = ?", userID)
}

// GetUserByEmail looks up by the normalised (lowercase) email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*authsvc.User, error) {
	return s.getUser(ctx, "sqlstore.GetUserByEmail", "email = ?", email)
}

func (s *Store) GetUserByProvider(ctx context.Context, provider, subject string) (*authsvc.User, error) {
	return s.getUser(ctx, "sqlstore.GetUserByProvider", "provider = ? AND provider_subject = ?", provider, subject)
}

// update runs a single-row UPDATE and reports whether a row changed. When
// none did, it distinguishes a missing user from a failed precondition.
func (s *Store) update(ctx context.Context, op, userID, query string, args ...any) (bool, error) {
	n, err := s.exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, authsvc.ErrEmailTaken
		}
		return false, unavailable(op, err)
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM users WHERE id = ?`), userID).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, authsvc.ErrUserNotFound
	case err != nil:
		return false, unavailable(op, err)
	}
	return false, nil
}

func (s *Store) SetOneTimeCode(ctx context.Context, userID string, code authsvc.OneTimeCode) error {
	_, err := s.update(ctx, "sqlstore.SetOneTimeCode", userID,
		`UPDATE users SET code_purpose = ?, code_hash = ?, code_expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(code.Purpose), code.Hash, toMillis(code.ExpiresAt), toMillis(time.Now()), userID,
	)
	return err
}

func (s *Store) ConsumeVerificationCode(ctx context.Context, userID, codeHash string, now time.Time) error {
	changed, err := s.update(ctx, "sqlstore.ConsumeVerificationCode", userID,
		`UPDATE users SET verified = ?, code_purpose = NULL, code_hash = NULL, code_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND code_purpose = ? AND code_hash = ? AND code_expires_at > ?`,
		true, toMillis(now), userID, string(authsvc.CodePurposeVerifyEmail), codeHash, toMillis(now),
	)
	if err != nil {
		return err
	}
	if !changed {
		return authsvc.ErrInvalidOrExpiredCode
	}
	return nil
}

func (s *Store) ResetPasswordWithCode(ctx context.Context, userID, codeHash, newHash string, now time.Time) error {
	changed, err := s.update(ctx, "sqlstore.ResetPasswordWithCode", userID,
		`UPDATE users SET password_hash = ?, code_purpose = NULL, code_hash = NULL, code_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND code_purpose = ? AND code_hash = ? AND code_expires_at > ?`,
		newHash, toMillis(now), userID, string(authsvc.CodePurposePasswordReset), codeHash, toMillis(now),
	)
	if err != nil {
		return err
	}
	if !changed {
		return authsvc.ErrInvalidOrExpiredCode
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, oldHash, newHash string) error {
	changed, err := s.update(ctx, "sqlstore.UpdatePasswordHash", userID,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ? AND password_hash = ?`,
		newHash, toMillis(time.Now()), userID, oldHash,
	)
	if err != nil {
		return err
	}
	if !changed {
		return authsvc.ErrInvalidCredentials
	}
	return nil
}

func (s *Store) SetPendingTOTPSecret(ctx context.Context, userID string, secret []byte) error {
	changed, err := s.update(ctx, "sqlstore.SetPendingTOTPSecret", userID,
		`UPDATE users SET totp_secret = ?, updated_at = ? WHERE id = ? AND totp_enabled = ?`,
		secret, toMillis(time.Now()), userID, false,
	)
	if err != nil {
		return err
	}
	if !changed {
		return authsvc.ErrTOTPAlreadyEnabled
	}
	return nil
}

func (s *Store) EnableTOTP(ctx context.Context, userID string, secret []byte, counter int64) error {
	if len(secret) == 0 {
		return authsvc.ErrTOTPNotConfigured
	}
	changed, err := s.update(ctx, "sqlstore.EnableTOTP", userID,
		`UPDATE users SET totp_enabled = ?, totp_last_counter = ?, updated_at = ?
		 WHERE id = ? AND totp_enabled = ? AND totp_secret = ?`,
		true, counter, toMillis(time.Now()), userID, false, secret,
	)
	if err != nil || changed {
		return err
	}

	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	switch {
	case u.TOTPEnabled:
		return authsvc.ErrTOTPAlreadyEnabled
	case len(u.TOTPSecret) == 0:
		return authsvc.ErrTOTPNotConfigured
	}
	return authsvc.ErrTOTPInvalid
}

func (s *Store) DisableTOTP(ctx context.Context, userID string) error {
	_, err := s.update(ctx, "sqlstore.DisableTOTP", userID,
		`UPDATE users SET totp_enabled = ?, totp_secret = NULL, totp_last_counter = 0, updated_at = ?
		 WHERE id = ?`,
		false, toMillis(time.Now()), userID,
	)
	return err
}

func (s *Store) AdvanceTOTPCounter(ctx context.Context, userID string, counter int64) error {
	changed, err := s.update(ctx, "sqlstore.AdvanceTOTPCounter", userID,
		`UPDATE users SET totp_last_counter = ?, updated_at = ?
		 WHERE id = ? AND totp_last_counter < ?`,
		counter, toMillis(time.Now()), userID, counter,
	)
	if err != nil {
		return err
	}
	if !changed {
		return authsvc.ErrTOTPInvalid
	}
	return nil
}

func (s *Store) LinkProvider(ctx context.Context, userID, provider, subject string) error {
	_, err := s.update(ctx, "sqlstore.LinkProvider", userID,
		`UPDATE users SET provider = ?, provider_subject = ?, verified = ?, updated_at = ?
		 WHERE id = ?`,
		provider, subject, true, toMillis(time.Now()), userID,
	)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("sqlstore.Ping", err)
	}
	return nil
}
