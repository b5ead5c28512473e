package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/doeshing/riskgate/internal/ports"
)

// dialect covers the few places SQLite and PostgreSQL differ.
type dialect struct {
	name     string
	blob     string
	numbered bool // $1 placeholders instead of ?
}

var (
	sqliteDialect   = dialect{name: "sqlite", blob: "BLOB"}
	postgresDialect = dialect{name: "postgres", blob: "BYTEA", numbered: true}
)

// bind rewrites ? placeholders for dialects that number them.
func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS riskgate_descriptors (
		command TEXT PRIMARY KEY,
		family TEXT NOT NULL DEFAULT '',
		tool_version TEXT NOT NULL DEFAULT '',
		record ` + d.blob + ` NOT NULL,
		audit ` + d.blob + `,
		updated_at BIGINT NOT NULL
	)`,
		`CREATE TABLE IF NOT EXISTS riskgate_families (
		family TEXT PRIMARY KEY,
		parent ` + d.blob + ` NOT NULL,
		body ` + d.blob + ` NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	}
}

// sqlStore implements ports.Store on database/sql. Timestamps are stored as
// unix nanoseconds so both dialects share every query.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *sqlStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *sqlStore) Put(ctx context.Context, d ports.StoredDescriptor) error {
	_, err := s.db.ExecContext(ctx, s.dialect.bind(`INSERT INTO riskgate_descriptors (command, family, tool_version, record, audit, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (command) DO UPDATE SET
			family = EXCLUDED.family,
			tool_version = EXCLUDED.tool_version,
			record = EXCLUDED.record,
			audit = EXCLUDED.audit,
			updated_at = EXCLUDED.updated_at`),
		d.Command, d.Family, d.ToolVersion, d.Record, d.Audit, d.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to persist descriptor %s: %w", d.Command, err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, command string) (ports.StoredDescriptor, bool, error) {
	row := s.db.QueryRowContext(ctx,
		s.dialect.bind("SELECT command, family, tool_version, record, audit, updated_at FROM riskgate_descriptors WHERE command = ?"),
		command)
	d, err := scanDescriptor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.StoredDescriptor{}, false, nil
	}
	if err != nil {
		return ports.StoredDescriptor{}, false, fmt.Errorf("failed to get descriptor %s: %w", command, err)
	}
	return d, true, nil
}

func (s *sqlStore) List(ctx context.Context) ([]ports.StoredDescriptor, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT command, family, tool_version, record, audit, updated_at FROM riskgate_descriptors ORDER BY command")
	if err != nil {
		return nil, fmt.Errorf("failed to list descriptors: %w", err)
	}
	defer rows.Close()
	var out []ports.StoredDescriptor
	for rows.Next() {
		d, err := scanDescriptor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqlStore) Delete(ctx context.Context, command string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.bind("DELETE FROM riskgate_descriptors WHERE command = ?"), command)
	if err != nil {
		return fmt.Errorf("failed to delete descriptor %s: %w", command, err)
	}
	return nil
}

func (s *sqlStore) PutFamily(ctx context.Context, f ports.StoredFamily) error {
	body, err := encodeFamilyBody(f.Members, f.Deltas)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.dialect.bind(`INSERT INTO riskgate_families (family, parent, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (family) DO UPDATE SET
			parent = EXCLUDED.parent,
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at`),
		f.Family, f.Parent, body, f.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to persist family %s: %w", f.Family, err)
	}
	return nil
}

func (s *sqlStore) GetFamily(ctx context.Context, family string) (ports.StoredFamily, bool, error) {
	row := s.db.QueryRowContext(ctx,
		s.dialect.bind("SELECT family, parent, body, updated_at FROM riskgate_families WHERE family = ?"),
		family)
	f, err := scanFamily(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.StoredFamily{}, false, nil
	}
	if err != nil {
		return ports.StoredFamily{}, false, fmt.Errorf("failed to get family %s: %w", family, err)
	}
	return f, true, nil
}

func (s *sqlStore) ListFamilies(ctx context.Context) ([]ports.StoredFamily, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT family, parent, body, updated_at FROM riskgate_families ORDER BY family")
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	defer rows.Close()
	var out []ports.StoredFamily
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDescriptor(row scanner) (ports.StoredDescriptor, error) {
	var d ports.StoredDescriptor
	var updated int64
	if err := row.Scan(&d.Command, &d.Family, &d.ToolVersion, &d.Record, &d.Audit, &updated); err != nil {
		return ports.StoredDescriptor{}, err
	}
	d.UpdatedAt = time.Unix(0, updated).UTC()
	return d, nil
}

func scanFamily(row scanner) (ports.StoredFamily, error) {
	var f ports.StoredFamily
	var body []byte
	var updated int64
	if err := row.Scan(&f.Family, &f.Parent, &body, &updated); err != nil {
		return ports.StoredFamily{}, err
	}
	members, deltas, err := decodeFamilyBody(body)
	if err != nil {
		return ports.StoredFamily{}, fmt.Errorf("family %s: %w", f.Family, err)
	}
	f.Members = members
	f.Deltas = deltas
	f.UpdatedAt = time.Unix(0, updated).UTC()
	return f, nil
}
