package contest

// schema is valid for both SQLite and PostgreSQL. Timestamps are stored as
// Unix nanoseconds so ordering and scanning behave the same on both drivers.
const schema = `
CREATE TABLE IF NOT EXISTS video_contest (
    id TEXT PRIMARY KEY,
    video_title TEXT NOT NULL,
    team_count INTEGER NOT NULL CHECK (team_count >= 1),
    video_url TEXT NOT NULL,
    video_key TEXT NOT NULL DEFAULT '',
    full_name TEXT NOT NULL DEFAULT '',
    username TEXT NOT NULL DEFAULT '',
    tg_id TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_video_contest_created_at ON video_contest(created_at);

CREATE TABLE IF NOT EXISTS contest_users (
    tg_id TEXT PRIMARY KEY,
    full_name TEXT NOT NULL DEFAULT '',
    username TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);
`
