package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// IMPORTANT: groups and expenses tables must be created BEFORE their child
// tables due to foreign key constraints.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    auth_subject TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    canonical_member_id TEXT NOT NULL UNIQUE,
    linked_member_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS account_alias_cache (
    account_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    PRIMARY KEY (account_id, member_id),
    FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS member_aliases (
    alias_member_id TEXT PRIMARY KEY,
    canonical_member_id TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS account_friends (
    owner_email TEXT NOT NULL,
    member_id TEXT NOT NULL,
    display_name TEXT NOT NULL,
    nickname TEXT NOT NULL DEFAULT '',
    original_nickname TEXT NOT NULL DEFAULT '',
    has_linked_account INTEGER NOT NULL DEFAULT 0,
    linked_account_id TEXT NOT NULL DEFAULT '',
    linked_account_email TEXT NOT NULL DEFAULT '',
    linked_member_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (owner_email, member_id)
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    owner_email TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    name TEXT NOT NULL,
    linked_email TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (group_id, member_id),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL,
    amount REAL NOT NULL,
    payer_member_id TEXT NOT NULL DEFAULT '',
    owner_email TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS expense_participants (
    expense_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    name TEXT NOT NULL,
    share REAL NOT NULL DEFAULT 0,
    linked_email TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (expense_id, member_id),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS expense_emails (
    expense_id TEXT NOT NULL,
    email TEXT NOT NULL,
    PRIMARY KEY (expense_id, email),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS user_expenses (
    user_id TEXT NOT NULL,
    expense_id TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, expense_id)
);

CREATE TABLE IF NOT EXISTS invite_tokens (
    id TEXT PRIMARY KEY,
    creator_account_id TEXT NOT NULL,
    creator_email TEXT NOT NULL,
    target_member_id TEXT NOT NULL,
    target_name TEXT NOT NULL DEFAULT '',
    claimed_by TEXT NOT NULL DEFAULT '',
    claimed_at INTEGER NOT NULL DEFAULT 0,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_linked_member ON accounts(linked_member_id);
CREATE INDEX IF NOT EXISTS idx_alias_cache_member ON account_alias_cache(member_id);
CREATE INDEX IF NOT EXISTS idx_member_aliases_canonical ON member_aliases(canonical_member_id);
CREATE INDEX IF NOT EXISTS idx_account_friends_member ON account_friends(member_id);
CREATE INDEX IF NOT EXISTS idx_account_friends_linked_email ON account_friends(linked_account_email);
CREATE INDEX IF NOT EXISTS idx_group_members_member ON group_members(member_id);
CREATE INDEX IF NOT EXISTS idx_groups_owner ON groups(owner_email);
CREATE INDEX IF NOT EXISTS idx_expenses_group ON expenses(group_id);
CREATE INDEX IF NOT EXISTS idx_expenses_owner ON expenses(owner_email);
CREATE INDEX IF NOT EXISTS idx_expense_participants_member ON expense_participants(member_id);
CREATE INDEX IF NOT EXISTS idx_expense_emails_email ON expense_emails(email);
CREATE INDEX IF NOT EXISTS idx_invite_tokens_creator ON invite_tokens(creator_account_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
