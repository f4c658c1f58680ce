package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNoRowsAffected = errors.New("no rows affected")
	ErrUnknownRole    = errors.New("unknown role")
	ErrUserExists     = errors.New("user already exists")
)

// Role gates the API: viewers read runs and diagnostics, admins also manage
// waivers and read the audit trail.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleViewer, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w %q (viewer|admin)", ErrUnknownRole, s)
}

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

func (db *DB) CreateUser(username, passHash string, role Role) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errors.New("create user: empty username")
	}
	role, err := ParseRole(string(role))
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := db.conn.Exec(`INSERT INTO users(username, pass_hash, role, created_at) VALUES(?,?,?,?)`,
		username, passHash, string(role), now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetUserByUsername returns the user and its password hash.
func (db *DB) GetUserByUsername(username string) (User, string, error) {
	row := db.conn.QueryRow(`SELECT id, username, role, created_at, pass_hash FROM users WHERE username=?`, username)
	var u User
	var ph, created string
	if err := row.Scan(&u.ID, &u.Username, &u.Role, &created, &ph); err != nil {
		return User{}, "", err
	}
	u.CreatedAt = parseTime(created)
	return u, ph, nil
}

func (db *DB) CreateSession(userID int64, token string, expires time.Time) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return execOne(db.conn, `INSERT INTO sessions(token, user_id, expires_at, created_at) VALUES(?,?,?,?)`,
		token, userID, expires.UTC().Format(time.RFC3339Nano), now)
}

// GetSession resolves an unexpired session token to its user.
func (db *DB) GetSession(token string) (User, error) {
	row := db.conn.QueryRow(`
SELECT u.id, u.username, u.role, u.created_at
FROM sessions s JOIN users u ON s.user_id=u.id
WHERE s.token=? AND s.expires_at > ?`, token, time.Now().UTC().Format(time.RFC3339Nano))
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.Role, &created); err != nil {
		return User{}, err
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (db *DB) DeleteSession(token string) error {
	return execOne(db.conn, `DELETE FROM sessions WHERE token=?`, token)
}

// PurgeSessions deletes sessions that expired before now and reports how
// many were removed.
func (db *DB) PurgeSessions(now time.Time) (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AuditEntry is one recorded action: logins, waiver changes, CLI user
// management and authenticated API reads.
type AuditEntry struct {
	ID       int64          `json:"id"`
	At       time.Time      `json:"ts"`
	Username string         `json:"username"`
	Action   string         `json:"action"`
	Resource string         `json:"resource,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

func (db *DB) LogAudit(username, action, resource string, meta map[string]any) error {
	b, _ := json.Marshal(meta)
	_, err := db.conn.Exec(`INSERT INTO audit(ts, username, action, resource, meta_json) VALUES(?,?,?,?,?)`,
		time.Now().UTC().Format(time.RFC3339Nano), username, action, resource, string(b))
	return err
}

// ListAudit returns the newest entries first. actionPrefix narrows the
// result, e.g. "waiver:" for waiver changes.
func (db *DB) ListAudit(limit int, actionPrefix string) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.Query(`
SELECT id, ts, COALESCE(username,''), action, COALESCE(resource,''), COALESCE(meta_json,'')
FROM audit WHERE action LIKE ? ESCAPE '\'
ORDER BY id DESC LIMIT ?`, likePrefix(actionPrefix), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts, meta string
		if err := rows.Scan(&e.ID, &ts, &e.Username, &e.Action, &e.Resource, &meta); err != nil {
			return nil, err
		}
		e.At = parseTime(ts)
		if meta != "" && meta != "null" {
			_ = json.Unmarshal([]byte(meta), &e.Meta)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func likePrefix(p string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(p) + "%"
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func execOne(db *sql.DB, q string, args ...any) error {
	res, err := db.Exec(q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
