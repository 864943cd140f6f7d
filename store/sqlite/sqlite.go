/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces consumed by the pricing and claims engines.

PURPOSE:
  Implements pricing.ConfigurationStore and accumulator.Store against a
  single SQLite database. PolicyConfig and its owned children (benefit
  selections, T&C selections, overrides, members, approval workflow,
  calculation log) persist as a config_id-scoped row family; every mutation
  serializes per config_id, same as the in-memory store, but here the
  exclusivity additionally comes from a SQL transaction.

CONCURRENCY:
  A single sync.RWMutex guards the *sql.DB the same way the teacher's store
  does: SQLite itself serializes writers, but the mutex additionally
  serializes the read-modify-write sequences WithLock needs (load full
  aggregate, mutate in Go, write it back) so two goroutines can never
  interleave on the same config_id. WAL mode keeps readers unblocked by a
  writer mid-transaction.

MIGRATIONS:
  Schema is created in migrate() on New(), the same auto-migration-on-open
  approach as the teacher. A real deployment would use a versioned migration
  tool instead of a single idempotent CREATE TABLE IF NOT EXISTS block.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/salamenterprise/claims-askes/internal/accumulator"
	"github.com/salamenterprise/claims-askes/internal/apperr"
	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/pricing"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

// Store is a SQLite-backed pricing.ConfigurationStore; AccumulatorStore
// (below) implements accumulator.Store over the same database.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (creating if needed) the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// PolicyConfig mutations already serialize through Store.mu; a single
	// connection avoids SQLITE_BUSY from overlapping writers entirely.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for readiness pings and for building
// an AccumulatorStore over the same database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS policy_configs (
		id TEXT PRIMARY KEY,
		quote_number TEXT NOT NULL UNIQUE,
		policy_number TEXT UNIQUE,
		company_name TEXT NOT NULL,
		participant_count INTEGER NOT NULL,
		coverage_start TEXT NOT NULL,
		coverage_end TEXT NOT NULL,
		pricing_method TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		base_premium_total TEXT NOT NULL DEFAULT '0',
		total_multiplier TEXT NOT NULL DEFAULT '1',
		adjusted_premium TEXT NOT NULL DEFAULT '0',
		admin_fee TEXT NOT NULL DEFAULT '0',
		tpa_fee TEXT NOT NULL DEFAULT '0',
		total_premium TEXT NOT NULL DEFAULT '0',
		monthly_premium TEXT NOT NULL DEFAULT '0',
		per_member_average TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policy_configs_status ON policy_configs(status);
	CREATE INDEX IF NOT EXISTS idx_policy_configs_company ON policy_configs(company_name);
	CREATE INDEX IF NOT EXISTS idx_policy_configs_created ON policy_configs(created_at DESC);

	-- Owned children: each keyed by policy_config_id, replaced wholesale on
	-- every write (see replaceChildren) rather than diffed row by row, since
	-- a PolicyConfig's children are always rewritten together under its lock.
	CREATE TABLE IF NOT EXISTS benefit_selections (
		policy_config_id TEXT NOT NULL REFERENCES policy_configs(id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		template_code TEXT NOT NULL DEFAULT '',
		is_selected BOOLEAN NOT NULL,
		category_factor TEXT NOT NULL,
		PRIMARY KEY (policy_config_id, category)
	);

	CREATE TABLE IF NOT EXISTS policy_tc_selections (
		policy_config_id TEXT NOT NULL REFERENCES policy_configs(id) ON DELETE CASCADE,
		factor_code TEXT NOT NULL,
		option_value TEXT NOT NULL,
		applied_multiplier TEXT NOT NULL,
		PRIMARY KEY (policy_config_id, factor_code)
	);

	CREATE TABLE IF NOT EXISTS policy_benefit_overrides (
		policy_config_id TEXT NOT NULL REFERENCES policy_configs(id) ON DELETE CASCADE,
		benefit_code TEXT NOT NULL,
		original_limit TEXT NOT NULL,
		override_limit TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (policy_config_id, benefit_code)
	);

	CREATE TABLE IF NOT EXISTS policy_members (
		policy_config_id TEXT NOT NULL REFERENCES policy_configs(id) ON DELETE CASCADE,
		member_number INTEGER NOT NULL,
		full_name TEXT NOT NULL,
		dob TEXT NOT NULL,
		gender TEXT NOT NULL,
		member_type TEXT NOT NULL,
		class_code TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		base_premium TEXT NOT NULL DEFAULT '0',
		age_band TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (policy_config_id, member_number)
	);

	CREATE INDEX IF NOT EXISTS idx_policy_members_status
		ON policy_members(policy_config_id, status);

	CREATE TABLE IF NOT EXISTS approval_workflows (
		policy_config_id TEXT NOT NULL REFERENCES policy_configs(id) ON DELETE CASCADE,
		step_name TEXT NOT NULL,
		step_order INTEGER NOT NULL,
		threshold TEXT NOT NULL,
		status TEXT NOT NULL,
		approver_id TEXT NOT NULL DEFAULT '',
		comments TEXT NOT NULL DEFAULT '',
		processed_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (policy_config_id, step_order)
	);

	-- Premium calculation log is append-only; never updated after insert.
	CREATE TABLE IF NOT EXISTS premium_calculation_logs (
		policy_config_id TEXT NOT NULL REFERENCES policy_configs(id) ON DELETE CASCADE,
		sequence INTEGER NOT NULL,
		base_premium_total TEXT NOT NULL,
		total_multiplier TEXT NOT NULL,
		adjusted_premium TEXT NOT NULL,
		admin_fee TEXT NOT NULL,
		tpa_fee TEXT NOT NULL,
		total_premium TEXT NOT NULL,
		monthly_premium TEXT NOT NULL,
		per_member_average TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (policy_config_id, sequence)
	);

	-- Sequence counters backing Q<YYYYMMDD><NNNN> and PGH<YYYYMM><NNNNN>
	-- numbering; the UNIQUE constraint on policy_configs.quote_number/
	-- policy_number is the store-level uniqueness backstop §9 calls for.
	CREATE TABLE IF NOT EXISTS quote_sequences (
		day_key TEXT PRIMARY KEY,
		next_seq INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policy_sequences (
		month_key TEXT PRIMARY KEY,
		next_seq INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accumulators (
		member_id TEXT NOT NULL,
		benefit_code TEXT NOT NULL,
		period TEXT NOT NULL,
		used_amount TEXT NOT NULL DEFAULT '0',
		used_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (member_id, benefit_code, period)
	);

	-- Applied claim IDs per bucket, enforcing the idempotent-increment
	-- guarantee the same way transactions.idempotency_key does for the
	-- teacher's ledger.
	CREATE TABLE IF NOT EXISTS accumulator_applied_claims (
		member_id TEXT NOT NULL,
		benefit_code TEXT NOT NULL,
		period TEXT NOT NULL,
		claim_id TEXT NOT NULL,
		PRIMARY KEY (member_id, benefit_code, period, claim_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONFIGURATION STORE (pricing.ConfigurationStore)
// =============================================================================

// Create persists a brand-new PolicyConfig and its (typically default)
// children in one transaction.
func (s *Store) Create(ctx context.Context, cfg *pricing.PolicyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO policy_configs
		(id, quote_number, policy_number, company_name, participant_count,
		 coverage_start, coverage_end, pricing_method, status,
		 base_premium_total, total_multiplier, adjusted_premium, admin_fee,
		 tpa_fee, total_premium, monthly_premium, per_member_average, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		cfg.ID, cfg.QuoteNumber, nullableString(cfg.PolicyNumber), cfg.CompanyName, cfg.ParticipantCount,
		cfg.CoverageStart.String(), cfg.CoverageEnd.String(), cfg.PricingMethod, string(cfg.Status),
		cfg.BasePremiumTotal.String(), cfg.TotalMultiplier.String(), cfg.AdjustedPremium.String(), cfg.AdminFee.String(),
		cfg.TPAFee.String(), cfg.TotalPremium.String(), cfg.MonthlyPremium.String(), cfg.PerMemberAverage.String(), cfg.CreatedAt.String(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return apperr.NewStateConflict("PolicyConfig", string(cfg.Status), "config %s already exists", cfg.ID)
		}
		return fmt.Errorf("insert policy_config: %w", err)
	}

	if err := replaceChildren(ctx, tx, cfg); err != nil {
		return err
	}

	return tx.Commit()
}

// Get loads a PolicyConfig and all its children.
func (s *Store) Get(ctx context.Context, id string) (*pricing.PolicyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadConfig(ctx, s.db, id)
}

// List returns configs matching filter, newest first.
func (s *Store) List(ctx context.Context, filter pricing.ListFilter) ([]*pricing.PolicyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id FROM policy_configs WHERE 1 = 1"
	var args []any
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.CompanyName != "" {
		query += " AND company_name = ?"
		args = append(args, filter.CompanyName)
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list policy_configs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*pricing.PolicyConfig, 0, len(ids))
	for _, id := range ids {
		cfg, err := s.loadConfig(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// WithLock loads cfg, runs fn, and writes the mutated aggregate back, all
// inside one transaction under Store.mu so no other goroutine can observe or
// mutate the same config_id concurrently (§5).
func (s *Store) WithLock(ctx context.Context, id string, fn func(cfg *pricing.PolicyConfig) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	cfg, err := s.loadConfig(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := fn(cfg); err != nil {
		return err
	}

	if err := s.saveConfig(ctx, tx, cfg); err != nil {
		return err
	}
	if err := replaceChildren(ctx, tx, cfg); err != nil {
		return err
	}

	return tx.Commit()
}

// NextQuoteNumber mints Q<YYYYMMDD><NNNN>. The sequence table plus the
// UNIQUE constraint on policy_configs.quote_number is the uniqueness
// backstop §9 requires beyond an in-process counter.
func (s *Store) NextQuoteNumber(ctx context.Context, day timeutil.Date) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%04d%02d%02d", day.Year(), int(day.Month()), day.Day())
	n, err := s.nextSeq(ctx, "quote_sequences", "day_key", key)
	if err != nil {
		return "", err
	}
	if n > 9999 {
		return "", apperr.NewDependencyMissing("quote-sequence", key)
	}
	return fmt.Sprintf("Q%s%04d", key, n), nil
}

// NextPolicyNumber mints PGH<YYYYMM><NNNNN>, same uniqueness guarantee.
func (s *Store) NextPolicyNumber(ctx context.Context, month timeutil.Date) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%04d%02d", month.Year(), int(month.Month()))
	n, err := s.nextSeq(ctx, "policy_sequences", "month_key", key)
	if err != nil {
		return "", err
	}
	if n > 99999 {
		return "", apperr.NewDependencyMissing("policy-sequence", key)
	}
	return fmt.Sprintf("PGH%s%05d", key, n), nil
}

func (s *Store) nextSeq(ctx context.Context, table, keyCol, key string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT next_seq FROM %s WHERE %s = ?", table, keyCol), key).Scan(&current)
	if err == sql.ErrNoRows {
		current = 0
	} else if err != nil {
		return 0, err
	}
	next := current + 1

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s, next_seq) VALUES (?, ?)
		ON CONFLICT(%s) DO UPDATE SET next_seq = excluded.next_seq
	`, table, keyCol, keyCol), key, next)
	if err != nil {
		return 0, err
	}

	return next, tx.Commit()
}

// AppendCalculationLog inserts an immutable calculation snapshot.
func (s *Store) AppendCalculationLog(ctx context.Context, configID string, entry pricing.PremiumCalculationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxSeq sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		"SELECT MAX(sequence) FROM premium_calculation_logs WHERE policy_config_id = ?", configID,
	).Scan(&maxSeq); err != nil {
		return err
	}
	entry.Sequence = int(maxSeq.Int64) + 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO premium_calculation_logs
		(policy_config_id, sequence, base_premium_total, total_multiplier, adjusted_premium,
		 admin_fee, tpa_fee, total_premium, monthly_premium, per_member_average, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		configID, entry.Sequence, entry.BasePremiumTotal.String(), entry.TotalMultiplier.String(), entry.AdjustedPremium.String(),
		entry.AdminFee.String(), entry.TPAFee.String(), entry.TotalPremium.String(), entry.MonthlyPremium.String(),
		entry.PerMemberAverage.String(), entry.CreatedAt.String(),
	)
	return err
}

// CalculationHistory returns entries for configID, most recent first.
func (s *Store) CalculationHistory(ctx context.Context, configID string, limit int) ([]pricing.PremiumCalculationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, base_premium_total, total_multiplier, adjusted_premium,
		       admin_fee, tpa_fee, total_premium, monthly_premium, per_member_average, created_at
		FROM premium_calculation_logs
		WHERE policy_config_id = ?
		ORDER BY sequence DESC
		LIMIT ?
	`, configID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.PremiumCalculationLog
	for rows.Next() {
		var (
			e                                                                       pricing.PremiumCalculationLog
			basePremiumTotal, totalMultiplier, adjustedPremium, adminFee            string
			tpaFee, totalPremium, monthlyPremium, perMemberAverage, createdAt       string
		)
		if err := rows.Scan(&e.Sequence, &basePremiumTotal, &totalMultiplier, &adjustedPremium,
			&adminFee, &tpaFee, &totalPremium, &monthlyPremium, &perMemberAverage, &createdAt); err != nil {
			return nil, err
		}
		e.BasePremiumTotal = money.Parse(basePremiumTotal)
		e.TotalMultiplier = money.Parse(totalMultiplier)
		e.AdjustedPremium = money.Parse(adjustedPremium)
		e.AdminFee = money.Parse(adminFee)
		e.TPAFee = money.Parse(tpaFee)
		e.TotalPremium = money.Parse(totalPremium)
		e.MonthlyPremium = money.Parse(monthlyPremium)
		e.PerMemberAverage = money.Parse(perMemberAverage)
		e.CreatedAt = parseDate(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// execer is the subset of *sql.DB / *sql.Tx this store needs, letting
// loadConfig/saveConfig run against either a bare connection or a
// transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) loadConfig(ctx context.Context, db execer, id string) (*pricing.PolicyConfig, error) {
	cfg := &pricing.PolicyConfig{ID: id}
	var (
		policyNumber                                                                                           sql.NullString
		coverageStart, coverageEnd, status, createdAt                                                          string
		basePremiumTotal, totalMultiplier, adjustedPremium, adminFee, tpaFee, totalPremium, monthlyPremium, avg string
	)
	err := db.QueryRowContext(ctx, `
		SELECT quote_number, policy_number, company_name, participant_count, coverage_start,
		       coverage_end, pricing_method, status, base_premium_total, total_multiplier,
		       adjusted_premium, admin_fee, tpa_fee, total_premium, monthly_premium,
		       per_member_average, created_at
		FROM policy_configs WHERE id = ?
	`, id).Scan(
		&cfg.QuoteNumber, &policyNumber, &cfg.CompanyName, &cfg.ParticipantCount, &coverageStart,
		&coverageEnd, &cfg.PricingMethod, &status, &basePremiumTotal, &totalMultiplier,
		&adjustedPremium, &adminFee, &tpaFee, &totalPremium, &monthlyPremium,
		&avg, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NewNotFound("PolicyConfig", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load policy_config: %w", err)
	}

	cfg.PolicyNumber = policyNumber.String
	cfg.CoverageStart = parseDate(coverageStart)
	cfg.CoverageEnd = parseDate(coverageEnd)
	cfg.Status = pricing.ConfigStatus(status)
	cfg.BasePremiumTotal = money.Parse(basePremiumTotal)
	cfg.TotalMultiplier = money.Parse(totalMultiplier)
	cfg.AdjustedPremium = money.Parse(adjustedPremium)
	cfg.AdminFee = money.Parse(adminFee)
	cfg.TPAFee = money.Parse(tpaFee)
	cfg.TotalPremium = money.Parse(totalPremium)
	cfg.MonthlyPremium = money.Parse(monthlyPremium)
	cfg.PerMemberAverage = money.Parse(avg)
	cfg.CreatedAt = parseDate(createdAt)

	if err := s.loadBenefits(ctx, db, cfg); err != nil {
		return nil, err
	}
	if err := s.loadTCs(ctx, db, cfg); err != nil {
		return nil, err
	}
	if err := s.loadOverrides(ctx, db, cfg); err != nil {
		return nil, err
	}
	if err := s.loadMembers(ctx, db, cfg); err != nil {
		return nil, err
	}
	if err := s.loadApprovals(ctx, db, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Store) loadBenefits(ctx context.Context, db execer, cfg *pricing.PolicyConfig) error {
	rows, err := db.QueryContext(ctx, `
		SELECT category, template_code, is_selected, category_factor
		FROM benefit_selections WHERE policy_config_id = ? ORDER BY category
	`, cfg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	cfg.Benefits = nil
	for rows.Next() {
		var sel pricing.BenefitSelection
		var category, factor string
		if err := rows.Scan(&category, &sel.TemplateCode, &sel.IsSelected, &factor); err != nil {
			return err
		}
		sel.Category = catalog.BenefitCategory(category)
		sel.CategoryFactor = money.Parse(factor)
		cfg.Benefits = append(cfg.Benefits, sel)
	}
	return rows.Err()
}

func (s *Store) loadTCs(ctx context.Context, db execer, cfg *pricing.PolicyConfig) error {
	rows, err := db.QueryContext(ctx, `
		SELECT factor_code, option_value, applied_multiplier
		FROM policy_tc_selections WHERE policy_config_id = ? ORDER BY factor_code
	`, cfg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	cfg.TCs = nil
	for rows.Next() {
		var tc pricing.PolicyTCSelection
		var multiplier string
		if err := rows.Scan(&tc.FactorCode, &tc.OptionValue, &multiplier); err != nil {
			return err
		}
		tc.AppliedMultiplier = money.Parse(multiplier)
		cfg.TCs = append(cfg.TCs, tc)
	}
	return rows.Err()
}

func (s *Store) loadOverrides(ctx context.Context, db execer, cfg *pricing.PolicyConfig) error {
	rows, err := db.QueryContext(ctx, `
		SELECT benefit_code, original_limit, override_limit, reason
		FROM policy_benefit_overrides WHERE policy_config_id = ? ORDER BY benefit_code
	`, cfg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	cfg.Overrides = nil
	for rows.Next() {
		var o pricing.PolicyBenefitOverride
		var original, override string
		if err := rows.Scan(&o.BenefitCode, &original, &override, &o.Reason); err != nil {
			return err
		}
		o.OriginalLimit = money.Parse(original)
		o.OverrideLimit = money.Parse(override)
		cfg.Overrides = append(cfg.Overrides, o)
	}
	return rows.Err()
}

func (s *Store) loadMembers(ctx context.Context, db execer, cfg *pricing.PolicyConfig) error {
	rows, err := db.QueryContext(ctx, `
		SELECT member_number, full_name, dob, gender, member_type, class_code, status, base_premium, age_band
		FROM policy_members WHERE policy_config_id = ? ORDER BY member_number
	`, cfg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	cfg.Members = nil
	for rows.Next() {
		var m pricing.PolicyMember
		var dob, gender, memberType, status, basePremium string
		if err := rows.Scan(&m.MemberNumber, &m.FullName, &dob, &gender, &memberType, &m.ClassCode, &status, &basePremium, &m.AgeBand); err != nil {
			return err
		}
		m.DOB = parseDate(dob)
		m.Gender = catalog.Gender(gender)
		m.MemberType = pricing.MemberType(memberType)
		m.Status = pricing.MemberStatus(status)
		m.BasePremium = money.Parse(basePremium)
		cfg.Members = append(cfg.Members, m)
	}
	return rows.Err()
}

func (s *Store) loadApprovals(ctx context.Context, db execer, cfg *pricing.PolicyConfig) error {
	rows, err := db.QueryContext(ctx, `
		SELECT step_name, step_order, threshold, status, approver_id, comments, processed_at
		FROM approval_workflows WHERE policy_config_id = ? ORDER BY step_order
	`, cfg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	cfg.Approvals = nil
	for rows.Next() {
		var a pricing.ApprovalWorkflow
		var threshold, status, processedAt string
		if err := rows.Scan(&a.StepName, &a.StepOrder, &threshold, &status, &a.ApproverID, &a.Comments, &processedAt); err != nil {
			return err
		}
		a.Threshold = money.Parse(threshold)
		a.Status = pricing.ApprovalStepStatus(status)
		if processedAt != "" {
			a.ProcessedAt = parseDate(processedAt)
		}
		cfg.Approvals = append(cfg.Approvals, a)
	}
	return rows.Err()
}

func (s *Store) saveConfig(ctx context.Context, tx *sql.Tx, cfg *pricing.PolicyConfig) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE policy_configs SET
			policy_number = ?, company_name = ?, participant_count = ?, coverage_start = ?,
			coverage_end = ?, pricing_method = ?, status = ?, base_premium_total = ?,
			total_multiplier = ?, adjusted_premium = ?, admin_fee = ?, tpa_fee = ?,
			total_premium = ?, monthly_premium = ?, per_member_average = ?
		WHERE id = ?
	`,
		nullableString(cfg.PolicyNumber), cfg.CompanyName, cfg.ParticipantCount, cfg.CoverageStart.String(),
		cfg.CoverageEnd.String(), cfg.PricingMethod, string(cfg.Status), cfg.BasePremiumTotal.String(),
		cfg.TotalMultiplier.String(), cfg.AdjustedPremium.String(), cfg.AdminFee.String(), cfg.TPAFee.String(),
		cfg.TotalPremium.String(), cfg.MonthlyPremium.String(), cfg.PerMemberAverage.String(), cfg.ID,
	)
	if err != nil && isUniqueConstraintError(err) {
		return apperr.NewStateConflict("PolicyConfig", string(cfg.Status), "policy_number %s already assigned", cfg.PolicyNumber)
	}
	return err
}

// replaceChildren rewrites every owned-child table for cfg wholesale. A
// PolicyConfig's children are always produced fresh from the in-memory
// aggregate after a mutation, so a delete-then-reinsert is simpler and just
// as correct as a row-by-row diff, and every call already runs inside the
// WithLock/Create transaction.
func replaceChildren(ctx context.Context, tx *sql.Tx, cfg *pricing.PolicyConfig) error {
	for _, table := range []string{"benefit_selections", "policy_tc_selections", "policy_benefit_overrides", "policy_members", "approval_workflows"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE policy_config_id = ?", cfg.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, sel := range cfg.Benefits {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO benefit_selections (policy_config_id, category, template_code, is_selected, category_factor)
			VALUES (?, ?, ?, ?, ?)
		`, cfg.ID, string(sel.Category), sel.TemplateCode, sel.IsSelected, sel.CategoryFactor.String()); err != nil {
			return fmt.Errorf("insert benefit_selection: %w", err)
		}
	}
	for _, tc := range cfg.TCs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO policy_tc_selections (policy_config_id, factor_code, option_value, applied_multiplier)
			VALUES (?, ?, ?, ?)
		`, cfg.ID, tc.FactorCode, tc.OptionValue, tc.AppliedMultiplier.String()); err != nil {
			return fmt.Errorf("insert policy_tc_selection: %w", err)
		}
	}
	for _, o := range cfg.Overrides {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO policy_benefit_overrides (policy_config_id, benefit_code, original_limit, override_limit, reason)
			VALUES (?, ?, ?, ?, ?)
		`, cfg.ID, o.BenefitCode, o.OriginalLimit.String(), o.OverrideLimit.String(), o.Reason); err != nil {
			return fmt.Errorf("insert policy_benefit_override: %w", err)
		}
	}
	for _, m := range cfg.Members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO policy_members
			(policy_config_id, member_number, full_name, dob, gender, member_type, class_code, status, base_premium, age_band)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, cfg.ID, m.MemberNumber, m.FullName, m.DOB.String(), string(m.Gender), string(m.MemberType), m.ClassCode, string(m.Status), m.BasePremium.String(), m.AgeBand); err != nil {
			return fmt.Errorf("insert policy_member: %w", err)
		}
	}
	for _, a := range cfg.Approvals {
		processedAt := ""
		if !a.ProcessedAt.IsZero() {
			processedAt = a.ProcessedAt.String()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO approval_workflows (policy_config_id, step_name, step_order, threshold, status, approver_id, comments, processed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, cfg.ID, a.StepName, a.StepOrder, a.Threshold.String(), string(a.Status), a.ApproverID, a.Comments, processedAt); err != nil {
			return fmt.Errorf("insert approval_workflow: %w", err)
		}
	}
	return nil
}

// =============================================================================
// ACCUMULATOR STORE (accumulator.Store)
// =============================================================================

// AccumulatorStore is a SQLite-backed accumulator.Store sharing Store's
// connection (it serializes its own writes with its own mutex, not
// Store.mu), keeping catalog-adjacent durable state in
// the same database file as pricing.
type AccumulatorStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewAccumulatorStore wraps the same *sql.DB the ConfigurationStore uses.
func NewAccumulatorStore(s *Store) *AccumulatorStore {
	return &AccumulatorStore{db: s.db}
}

func (a *AccumulatorStore) Get(ctx context.Context, key accumulator.Key) (accumulator.Totals, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var usedAmount string
	var usedCount int
	err := a.db.QueryRowContext(ctx, `
		SELECT used_amount, used_count FROM accumulators
		WHERE member_id = ? AND benefit_code = ? AND period = ?
	`, key.MemberID, key.BenefitCode, key.Period).Scan(&usedAmount, &usedCount)
	if err == sql.ErrNoRows {
		return accumulator.Totals{}, nil
	}
	if err != nil {
		return accumulator.Totals{}, err
	}
	return accumulator.Totals{UsedAmount: money.Parse(usedAmount), UsedCount: usedCount}, nil
}

// Increment applies amount/count to the bucket exactly once per claimID,
// enforced by accumulator_applied_claims' primary key rather than an
// in-memory set — a retried call from another process observes the same
// idempotency guarantee.
func (a *AccumulatorStore) Increment(ctx context.Context, key accumulator.Key, claimID string, amount money.Decimal, count int) (accumulator.Totals, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return accumulator.Totals{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accumulator_applied_claims (member_id, benefit_code, period, claim_id)
		VALUES (?, ?, ?, ?)
	`, key.MemberID, key.BenefitCode, key.Period, claimID)
	if isUniqueConstraintError(err) {
		// Already applied: return the current totals unchanged.
		current, getErr := a.currentTotals(ctx, tx, key)
		if getErr != nil {
			return accumulator.Totals{}, getErr
		}
		return current, tx.Commit()
	}
	if err != nil {
		return accumulator.Totals{}, err
	}

	current, err := a.currentTotals(ctx, tx, key)
	if err != nil {
		return accumulator.Totals{}, err
	}
	next := accumulator.Totals{
		UsedAmount: current.UsedAmount.Add(amount),
		UsedCount:  current.UsedCount + count,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accumulators (member_id, benefit_code, period, used_amount, used_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(member_id, benefit_code, period) DO UPDATE SET
			used_amount = excluded.used_amount, used_count = excluded.used_count
	`, key.MemberID, key.BenefitCode, key.Period, next.UsedAmount.String(), next.UsedCount)
	if err != nil {
		return accumulator.Totals{}, err
	}

	return next, tx.Commit()
}

func (a *AccumulatorStore) currentTotals(ctx context.Context, tx *sql.Tx, key accumulator.Key) (accumulator.Totals, error) {
	var usedAmount string
	var usedCount int
	err := tx.QueryRowContext(ctx, `
		SELECT used_amount, used_count FROM accumulators
		WHERE member_id = ? AND benefit_code = ? AND period = ?
	`, key.MemberID, key.BenefitCode, key.Period).Scan(&usedAmount, &usedCount)
	if err == sql.ErrNoRows {
		return accumulator.Totals{}, nil
	}
	if err != nil {
		return accumulator.Totals{}, err
	}
	return accumulator.Totals{UsedAmount: money.Parse(usedAmount), UsedCount: usedCount}, nil
}

// =============================================================================
// Helpers
// =============================================================================

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDate(s string) timeutil.Date {
	if s == "" {
		return timeutil.Date{}
	}
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return timeutil.Date{}
	}
	year, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	day, _ := strconv.Atoi(parts[2])
	return timeutil.NewDate(year, time.Month(month), day)
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
