package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"sigepic.org/internal/auth"
)

// Store implements auth.Store on Postgres over database/sql with the pgx
// stdlib driver. Tables: usuarios, sesiones, auditoria.
type Store struct {
	db *sql.DB
}

var _ auth.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection. Test use (sqlmock).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Accounts(ctx context.Context) auth.CredentialStore { return &accounts{db: s.db} }
func (s *Store) Sessions(ctx context.Context) auth.SessionStore    { return &sessions{db: s.db} }
func (s *Store) Audit(ctx context.Context) auth.AuditStore         { return &audit{db: s.db} }

// mapErr translates driver errors into the auth sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return auth.ErrAlreadyExists
	}
	return err
}

type accounts struct {
	db *sql.DB
}

const accountColumns = `id, username, password_hash, nombre_completo, email, rol, activo,
	cambiar_password, intentos_fallidos, bloqueado_hasta, ultimo_acceso, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*auth.Account, error) {
	var (
		a      auth.Account
		email  sql.NullString
		locked sql.NullTime
		lastAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.FullName, &email, &a.Role, &a.Active,
		&a.MustChangePassword, &a.FailedAttempts, &locked, &lastAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	a.Email = email.String
	if locked.Valid {
		t := locked.Time.UTC()
		a.LockedUntil = &t
	}
	if lastAt.Valid {
		t := lastAt.Time.UTC()
		a.LastLoginAt = &t
	}
	return &a, nil
}

func (s *accounts) Create(ctx context.Context, acct *auth.Account) error {
	_, err := s.db.ExecContext(ctx, `
		insert into usuarios(id, username, password_hash, nombre_completo, email, rol, activo,
			cambiar_password, intentos_fallidos, created_at, updated_at)
		values ($1,$2,$3,$4,nullif($5,''),$6,$7,$8,0,$9,$9)
	`, acct.ID, acct.Username, acct.PasswordHash, acct.FullName, acct.Email, acct.Role,
		acct.Active, acct.MustChangePassword, acct.CreatedAt.UTC())
	return mapErr(err)
}

func (s *accounts) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from usuarios where username=$1`, username)
	return scanAccount(row)
}

func (s *accounts) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from usuarios where id=$1`, id)
	return scanAccount(row)
}

func (s *accounts) List(ctx context.Context, filter auth.AccountFilter) ([]*auth.Account, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("activo=$%d", len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		where = append(where, fmt.Sprintf("rol=$%d", len(args)))
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from usuarios where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`select %s from usuarios where %s order by username asc limit $%d offset $%d`,
		accountColumns, cond, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []*auth.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, mapErr(rows.Err())
}

func (s *accounts) Update(ctx context.Context, id string, upd auth.AccountUpdate) (*auth.Account, error) {
	set := []string{"updated_at=now()"}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if upd.FullName != nil {
		add("nombre_completo", *upd.FullName)
	}
	if upd.Email != nil {
		add("email", sql.NullString{String: *upd.Email, Valid: *upd.Email != ""})
	}
	if upd.Role != nil {
		add("rol", *upd.Role)
	}
	if upd.Active != nil {
		add("activo", *upd.Active)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	args = append(args, id)
	query := fmt.Sprintf(`update usuarios set %s where id=$%d returning %s`,
		strings.Join(set, ", "), len(args), accountColumns)
	return scanAccount(s.db.QueryRowContext(ctx, query, args...))
}

func (s *accounts) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from usuarios where id=$1`, id)
	if err != nil {
		return mapErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *accounts) UpdateLoginState(ctx context.Context, id string, state auth.LoginState) error {
	res, err := s.db.ExecContext(ctx, `
		update usuarios
		set intentos_fallidos=$2, bloqueado_hasta=$3, ultimo_acceso=$4, updated_at=now()
		where id=$1
	`, id, state.FailedAttempts, nullTime(state.LockedUntil), nullTime(state.LastLoginAt))
	if err != nil {
		return mapErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *accounts) UpdatePasswordHash(ctx context.Context, id, hash string, mustChange bool) error {
	res, err := s.db.ExecContext(ctx, `
		update usuarios set password_hash=$2, cambiar_password=$3, updated_at=now() where id=$1
	`, id, hash, mustChange)
	if err != nil {
		return mapErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

type sessions struct {
	db *sql.DB
}

func (s *sessions) Create(ctx context.Context, sess *auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sesiones(id, usuario_id, token, ip, user_agent, expira_en, revocada, created_at)
		values ($1,$2,$3,$4,$5,$6,false,$7)
	`, sess.ID, sess.AccountID, sess.Token, sess.IP, sess.UserAgent,
		sess.ExpiresAt.UTC(), sess.CreatedAt.UTC())
	return mapErr(err)
}

func (s *sessions) RevokeByToken(ctx context.Context, token string) error {
	// Zero matches is fine: logout is idempotent.
	_, err := s.db.ExecContext(ctx,
		`update sesiones set revocada=true where token=$1 and not revocada`, token)
	return mapErr(err)
}

type audit struct {
	db *sql.DB
}

func (s *audit) Append(ctx context.Context, entry *auth.AuditEntry) error {
	var metadata any
	if len(entry.Metadata) > 0 {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		metadata = b
	}
	_, err := s.db.ExecContext(ctx, `
		insert into auditoria(id, usuario_id, username, accion, tabla, ip, user_agent, metadata, created_at)
		values ($1,nullif($2,''),nullif($3,''),$4,$5,nullif($6,''),nullif($7,''),$8,$9)
	`, entry.ID, entry.AccountID, entry.Username, entry.Action, entry.Table,
		entry.IP, entry.UserAgent, metadata, entry.Timestamp.UTC())
	return mapErr(err)
}

func (s *audit) List(ctx context.Context, filter auth.AuditFilter) ([]*auth.AuditEntry, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.Table != "" {
		args = append(args, filter.Table)
		where = append(where, fmt.Sprintf("tabla=$%d", len(args)))
	}
	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		where = append(where, fmt.Sprintf("usuario_id=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, filter.From.UTC())
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from auditoria where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`
		select id, coalesce(usuario_id,''), coalesce(username,''), accion, tabla,
			coalesce(ip,''), coalesce(user_agent,''), metadata, created_at
		from auditoria where %s
		order by created_at desc
		limit $%d offset $%d
	`, cond, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []*auth.AuditEntry
	for rows.Next() {
		var (
			e        auth.AuditEntry
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Username, &e.Action, &e.Table,
			&e.IP, &e.UserAgent, &metadata, &e.Timestamp); err != nil {
			return nil, 0, mapErr(err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, 0, err
			}
		}
		out = append(out, &e)
	}
	return out, total, mapErr(rows.Err())
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
