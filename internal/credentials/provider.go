// Package credentials resolves the e.firma material a declaration run signs
// in with: the certificate and private key files referenced by the company
// database, plus the key password.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/declaranet/declara-cli/internal/config"
)

// ErrNotFound means the database has no e.firma record for the requested
// company and branch.
var ErrNotFound = errors.New("no e.firma credentials on record")

// EFirma is one resolved credential set. Paths are absolute and verified to
// exist before a run starts; the password is never logged.
type EFirma struct {
	CompanyID       int
	BranchID        int
	RFC             string
	CertificatePath string
	KeyPath         string
	Password        string
}

// DBPool abstracts the pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Provider looks up e.firma records and binds them to files under the
// configured certificate base directory.
type Provider struct {
	pool DBPool
	base string
	log  *zap.Logger
}

// NewProvider creates a provider and verifies the database connection.
func NewProvider(ctx context.Context, pool DBPool, cfg config.DatabaseConfig, logger *zap.Logger) (*Provider, error) {
	if cfg.CertificateBase == "" {
		return nil, fmt.Errorf("database.certificate_base must not be empty")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Provider{
		pool: pool,
		base: cfg.CertificateBase,
		log:  logger.Named("credentials"),
	}, nil
}

const lookupSQL = `
        SELECT rfc, certificate_file, key_file, key_password
        FROM efirma_credentials
        WHERE company_id = $1 AND branch_id = $2 AND active;
    `

// Lookup resolves the active e.firma record for a company and branch. The
// certificate and key live under <base>/<company>/<branch>/; both must exist
// on disk or the lookup fails before any portal interaction happens.
func (p *Provider) Lookup(ctx context.Context, companyID, branchID int) (*EFirma, error) {
	rows, err := p.pool.Query(ctx, lookupSQL, companyID, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query e.firma credentials: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error during row iteration: %w", err)
		}
		return nil, fmt.Errorf("company %d branch %d: %w", companyID, branchID, ErrNotFound)
	}

	var rfc, certFile, keyFile, password string
	if err := rows.Scan(&rfc, &certFile, &keyFile, &password); err != nil {
		return nil, fmt.Errorf("failed to scan credential row: %w", err)
	}

	dir := filepath.Join(p.base, strconv.Itoa(companyID), strconv.Itoa(branchID))
	cred := &EFirma{
		CompanyID:       companyID,
		BranchID:        branchID,
		RFC:             rfc,
		CertificatePath: filepath.Join(dir, certFile),
		KeyPath:         filepath.Join(dir, keyFile),
		Password:        password,
	}

	for _, path := range []string{cred.CertificatePath, cred.KeyPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("e.firma file missing for company %d branch %d: %w", companyID, branchID, err)
		}
	}

	p.log.Info("E.firma credentials resolved.",
		zap.Int("company_id", companyID),
		zap.Int("branch_id", branchID),
		zap.String("rfc", rfc),
		zap.String("certificate", cred.CertificatePath))
	return cred, nil
}
