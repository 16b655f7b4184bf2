// Package postgres implements PostgreSQL persistence layer for Kopilka.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create achievement tables
-- Version: 001

-- Savings goals: one active goal per user, escrow lives on the row
CREATE TABLE IF NOT EXISTS savings_goals (
    user_id UUID PRIMARY KEY,
    target_amount BIGINT NOT NULL,
    deadline TIMESTAMP WITH TIME ZONE,
    saved_amount BIGINT NOT NULL DEFAULT 0,
    achieved BOOLEAN NOT NULL DEFAULT FALSE,
    proof_id BYTEA,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_target_amount CHECK (target_amount > 0),
    CONSTRAINT valid_saved_amount CHECK (saved_amount >= 0),
    CONSTRAINT valid_proof_id CHECK (proof_id IS NULL OR octet_length(proof_id) = 32)
);

CREATE INDEX IF NOT EXISTS idx_savings_goals_achieved ON savings_goals(achieved) WHERE achieved = TRUE;
CREATE INDEX IF NOT EXISTS idx_savings_goals_deadline ON savings_goals(deadline) WHERE deadline IS NOT NULL;

-- Course completions: one row per (user, course)
CREATE TABLE IF NOT EXISTS course_completions (
    user_id UUID NOT NULL,
    course_id VARCHAR(100) NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    badge_level SMALLINT NOT NULL DEFAULT 0,
    proof_id BYTEA,
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, course_id),

    CONSTRAINT valid_badge_level CHECK (badge_level BETWEEN 0 AND 3),
    CONSTRAINT valid_completion_proof CHECK (proof_id IS NULL OR octet_length(proof_id) = 32)
);

CREATE INDEX IF NOT EXISTS idx_course_completions_user ON course_completions(user_id);
CREATE INDEX IF NOT EXISTS idx_course_completions_completed ON course_completions(user_id) WHERE completed = TRUE;

-- Per-user achievement counters, bumped in the same transaction that
-- flips the achievement flag
CREATE TABLE IF NOT EXISTS achievement_counters (
    user_id UUID PRIMARY KEY,
    goals_achieved INTEGER NOT NULL DEFAULT 0,
    courses_completed INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_counters CHECK (goals_achieved >= 0 AND courses_completed >= 0)
);
`

const migration001Down = `
DROP TABLE IF EXISTS achievement_counters;
DROP TABLE IF EXISTS course_completions;
DROP TABLE IF EXISTS savings_goals;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE LEVELS AND SAVINGS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create user level and savings position tables
-- Version: 002

-- Persisted tier classification (recomputed on demand from counters)
CREATE TABLE IF NOT EXISTS user_levels (
    user_id UUID PRIMARY KEY,
    tier SMALLINT NOT NULL DEFAULT 1,
    goals_achieved INTEGER NOT NULL DEFAULT 0,
    courses_completed INTEGER NOT NULL DEFAULT 0,
    last_updated TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_tier CHECK (tier BETWEEN 1 AND 4)
);

CREATE INDEX IF NOT EXISTS idx_user_levels_tier ON user_levels(tier);

-- Interest-bearing savings positions
CREATE TABLE IF NOT EXISTS savings_positions (
    user_id UUID PRIMARY KEY,
    principal BIGINT NOT NULL DEFAULT 0,
    interest_earned BIGINT NOT NULL DEFAULT 0,
    tier SMALLINT NOT NULL DEFAULT 1,
    apy_bps BIGINT NOT NULL DEFAULT 200,
    last_updated TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_principal CHECK (principal >= 0),
    CONSTRAINT valid_interest CHECK (interest_earned >= 0),
    CONSTRAINT valid_position_tier CHECK (tier BETWEEN 1 AND 4),
    CONSTRAINT valid_apy CHECK (apy_bps >= 0)
);

CREATE INDEX IF NOT EXISTS idx_savings_positions_tier ON savings_positions(tier);
`

const migration002Down = `
DROP TABLE IF EXISTS savings_positions;
DROP TABLE IF EXISTS user_levels;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE PROOFS AND ADMIN
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create proof records, verifying material and admin markers
-- Version: 003

-- Append-only registry of verified proofs, keyed by content hash
CREATE TABLE IF NOT EXISTS proof_records (
    proof_id BYTEA PRIMARY KEY,
    verified BOOLEAN NOT NULL DEFAULT TRUE,
    blob_size INTEGER NOT NULL,
    verified_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_record_proof_id CHECK (octet_length(proof_id) = 32),
    CONSTRAINT valid_blob_size CHECK (blob_size > 0)
);

CREATE INDEX IF NOT EXISTS idx_proof_records_verified_at ON proof_records(verified_at DESC);

-- Verifying material: single current row, content-addressed
CREATE TABLE IF NOT EXISTS verifying_material (
    singleton BOOLEAN PRIMARY KEY DEFAULT TRUE,
    content_hash BYTEA NOT NULL,
    data BYTEA NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT single_row CHECK (singleton),
    CONSTRAINT valid_content_hash CHECK (octet_length(content_hash) = 32)
);

-- Admin markers: one per component, write-once
CREATE TABLE IF NOT EXISTS admin_markers (
    component VARCHAR(30) PRIMARY KEY,
    admin_id UUID NOT NULL,
    bootstrapped BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_component CHECK (component IN ('verifier', 'achievements', 'levels', 'savings'))
);
`

const migration003Down = `
DROP TABLE IF EXISTS admin_markers;
DROP TABLE IF EXISTS verifying_material;
DROP TABLE IF EXISTS proof_records;
`
