package history

// schemaSQL is valid for both sqlite and postgres. Amounts and timestamps
// are stored as text so decimals round-trip exactly.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS predictions (
    run_id        TEXT PRIMARY KEY,
    recorded_at   TEXT NOT NULL,
    basis_date    TEXT NOT NULL,
    target_date   TEXT NOT NULL,
    balance       TEXT NOT NULL,
    past          INTEGER NOT NULL DEFAULT 0,
    checkpoints   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_predictions_recorded ON predictions(recorded_at);
CREATE INDEX IF NOT EXISTS idx_predictions_target ON predictions(target_date);
`
