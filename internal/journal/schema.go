package journal

// Schema mirrors ledger records. (identity, id) is the ledger's own key, so
// re-mirroring a ledger is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	identity   TEXT    NOT NULL,
	id         INTEGER NOT NULL,
	date       TEXT    NOT NULL,
	action     TEXT    NOT NULL,
	symbol     TEXT,
	amount     REAL,
	price      REAL,
	source     TEXT,
	PRIMARY KEY (identity, id)
);

CREATE TABLE IF NOT EXISTS holdings (
	identity   TEXT    NOT NULL,
	id         INTEGER NOT NULL,
	symbol     TEXT    NOT NULL,
	qty        REAL    NOT NULL,
	PRIMARY KEY (identity, id, symbol)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_date ON snapshots (identity, date);
`
