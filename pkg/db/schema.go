package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- Runs: one row per scan of the site
CREATE TABLE IF NOT EXISTS runs (
    run_id INTEGER PRIMARY KEY AUTOINCREMENT,
    trigger_kind TEXT NOT NULL,     -- initial-load, navigation-changed, content-mutated, manual
    dry_run BOOLEAN DEFAULT 0,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    page_count INTEGER DEFAULT 0,
    written_count INTEGER DEFAULT 0,
    failed_count INTEGER DEFAULT 0,
    badge_count INTEGER DEFAULT 0,
    visible_count INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

-- Badges: every marked element seen during a run and its expiry decision
CREATE TABLE IF NOT EXISTS badges (
    badge_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL,
    page TEXT NOT NULL,
    role TEXT NOT NULL,             -- heading, outline, sidebar
    title TEXT NOT NULL,
    badge_type TEXT NOT NULL,       -- new, updated, hot, beta
    visible BOOLEAN NOT NULL,
    expires_at TIMESTAMP,
    rule TEXT NOT NULL,             -- specific-until, policy-days
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_badges_run ON badges(run_id);
CREATE INDEX IF NOT EXISTS idx_badges_page ON badges(page);
CREATE INDEX IF NOT EXISTS idx_badges_visible ON badges(visible);
`
