package postgres

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_programs",
			UpSQL:   migration001Up,
		},
		{
			Version: 2,
			Name:    "create_enrollments_submissions",
			UpSQL:   migration002Up,
		},
		{
			Version: 3,
			Name:    "create_task_unlocks",
			UpSQL:   migration003Up,
		},
		{
			Version: 4,
			Name:    "create_certificate_workflow",
			UpSQL:   migration004Up,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROGRAMS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create programs and tasks tables
-- Version: 001

CREATE TABLE IF NOT EXISTS programs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(200) NOT NULL,
    pass_threshold DECIMAL(5,2) NOT NULL DEFAULT 70.00,
    max_attempts INTEGER NOT NULL DEFAULT 3,
    certificate_fee DECIMAL(10,2) NOT NULL DEFAULT 0.00,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_threshold CHECK (pass_threshold >= 0 AND pass_threshold <= 100),
    CONSTRAINT valid_max_attempts CHECK (max_attempts >= 1)
);

CREATE TABLE IF NOT EXISTS tasks (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    program_id UUID NOT NULL REFERENCES programs(id) ON DELETE CASCADE,
    number INTEGER NOT NULL,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    max_points DECIMAL(8,2) NOT NULL,
    wait_after_approval_seconds BIGINT NOT NULL DEFAULT 0,
    submission_window_seconds BIGINT NOT NULL DEFAULT 0,
    mandatory BOOLEAN NOT NULL DEFAULT TRUE,
    premium BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(program_id, number),
    CONSTRAINT valid_task_number CHECK (number >= 1),
    CONSTRAINT valid_max_points CHECK (max_points > 0)
);

CREATE INDEX IF NOT EXISTS idx_tasks_program_number ON tasks(program_id, number);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ENROLLMENTS AND SUBMISSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create enrollments and submissions tables
-- Version: 002

CREATE TABLE IF NOT EXISTS enrollments (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    intern_id UUID NOT NULL,
    program_id UUID NOT NULL REFERENCES programs(id),
    running_score DECIMAL(5,2) NOT NULL DEFAULT 0.00,
    final_score DECIMAL(5,2),
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMP WITH TIME ZONE,
    certificate_eligible BOOLEAN NOT NULL DEFAULT FALSE,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(intern_id, program_id),
    CONSTRAINT valid_running_score CHECK (running_score >= 0 AND running_score <= 100)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_program ON enrollments(program_id);
CREATE INDEX IF NOT EXISTS idx_enrollments_leaderboard ON enrollments(program_id, running_score DESC);
CREATE INDEX IF NOT EXISTS idx_enrollments_global_leaderboard ON enrollments(running_score DESC);

CREATE TABLE IF NOT EXISTS submissions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    enrollment_id UUID NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
    task_id UUID NOT NULL REFERENCES tasks(id),
    task_number INTEGER NOT NULL,
    attempt_number INTEGER NOT NULL,
    artifact_kind VARCHAR(10) NOT NULL,
    artifact_locator TEXT NOT NULL,
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
    due_at TIMESTAMP WITH TIME ZONE,
    late BOOLEAN NOT NULL DEFAULT FALSE,
    late_by_seconds BIGINT NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'submitted',
    exhausted BOOLEAN NOT NULL DEFAULT FALSE,
    score DECIMAL(8,2),
    feedback TEXT NOT NULL DEFAULT '',
    reviewer_id UUID,
    reviewed_at TIMESTAMP WITH TIME ZONE,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(enrollment_id, task_number, attempt_number),
    CONSTRAINT valid_status CHECK (status IN ('submitted', 'resubmitted', 'approved', 'rejected')),
    CONSTRAINT valid_artifact_kind CHECK (artifact_kind IN ('repo', 'form', 'file')),
    CONSTRAINT valid_attempt CHECK (attempt_number >= 1)
);

CREATE INDEX IF NOT EXISTS idx_submissions_enrollment ON submissions(enrollment_id, submitted_at);
CREATE INDEX IF NOT EXISTS idx_submissions_enrollment_task ON submissions(enrollment_id, task_number, attempt_number);
CREATE INDEX IF NOT EXISTS idx_submissions_open ON submissions(enrollment_id, task_number)
    WHERE status IN ('submitted', 'resubmitted');
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE TASK UNLOCKS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create task unlock records
-- Version: 003
-- The unlocked flag is derived state: reads lazily flip due records, the
-- background sweep does the same. One record per (enrollment, task).

CREATE TABLE IF NOT EXISTS task_unlocks (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    enrollment_id UUID NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
    task_id UUID NOT NULL REFERENCES tasks(id),
    task_number INTEGER NOT NULL,
    unlock_eligible_at TIMESTAMP WITH TIME ZONE NOT NULL,
    unlocked BOOLEAN NOT NULL DEFAULT FALSE,
    unlocked_at TIMESTAMP WITH TIME ZONE,
    notified BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(enrollment_id, task_number)
);

CREATE INDEX IF NOT EXISTS idx_task_unlocks_due ON task_unlocks(unlock_eligible_at)
    WHERE NOT unlocked;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE CERTIFICATE WORKFLOW
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create certificate workflow tables
-- Version: 004

CREATE TABLE IF NOT EXISTS certificate_payments (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    enrollment_id UUID NOT NULL REFERENCES enrollments(id) UNIQUE,
    amount DECIMAL(10,2) NOT NULL,
    external_ref TEXT NOT NULL DEFAULT '',
    proof_kind VARCHAR(10),
    proof_locator TEXT,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    attempt_count INTEGER NOT NULL DEFAULT 0,
    verifier_id UUID,
    verified_at TIMESTAMP WITH TIME ZONE,
    rejection_reason TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_payment_status CHECK (status IN ('pending', 'verified', 'rejected'))
);

CREATE TABLE IF NOT EXISTS certificate_sessions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    enrollment_id UUID NOT NULL REFERENCES enrollments(id) UNIQUE,
    payment_id UUID NOT NULL REFERENCES certificate_payments(id),
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    expected_delivery_at TIMESTAMP WITH TIME ZONE NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending_upload',
    certificate_number VARCHAR(50) NOT NULL DEFAULT '',
    artifact_kind VARCHAR(10),
    artifact_locator TEXT,
    uploader_id UUID,
    completed_at TIMESTAMP WITH TIME ZONE,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_session_status CHECK (status IN ('pending_upload', 'completed'))
);

CREATE INDEX IF NOT EXISTS idx_certificate_sessions_overdue
    ON certificate_sessions(expected_delivery_at)
    WHERE status = 'pending_upload';

CREATE TABLE IF NOT EXISTS certificate_validations (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    enrollment_id UUID NOT NULL REFERENCES enrollments(id) UNIQUE,
    certificate_number VARCHAR(50) NOT NULL,
    artifact_kind VARCHAR(10) NOT NULL,
    artifact_locator TEXT NOT NULL,
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    reviewer_id UUID,
    reviewer_message TEXT NOT NULL DEFAULT '',
    reviewed_at TIMESTAMP WITH TIME ZONE,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_validation_status CHECK (status IN ('pending', 'approved', 'rejected'))
);

-- Monotonic, globally unique certificate numbers. A native sequence keeps
-- allocation atomic under concurrent uploads from multiple processes.
CREATE SEQUENCE IF NOT EXISTS certificate_number_seq START 1;
`

